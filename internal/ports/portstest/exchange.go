// Package portstest provides a call-counting in-memory Exchange for tests.
package portstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/internal/ports"
)

// Exchange is keyed by instrument. After PlaceOrder the position moves by the
// signed order quantity, so a re-query observes the fill. Per-instrument
// errors can be injected through the *Err maps.
type Exchange struct {
	mu sync.Mutex

	Positions  map[string]float64
	Increments map[string]float64
	Bids       map[string]float64

	PositionErr  map[string]error
	IncrementErr map[string]error
	PlaceErr     map[string]error

	// OnPlace, if set, runs inside PlaceOrder before the fill is applied.
	OnPlace func(req domain.OrderRequest)

	Orders []domain.OrderRequest
	Calls  map[string]int
	// InstrumentCalls counts every call per instrument.
	InstrumentCalls map[string]int
}

var _ ports.Exchange = (*Exchange)(nil)

func New() *Exchange {
	return &Exchange{
		Positions:    make(map[string]float64),
		Increments:   make(map[string]float64),
		Bids:         make(map[string]float64),
		PositionErr:  make(map[string]error),
		IncrementErr: make(map[string]error),
		PlaceErr:     make(map[string]error),
	}
}

func (e *Exchange) FetchCurrentPosition(_ context.Context, instrument string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count("FetchCurrentPosition", instrument)
	if err := e.PositionErr[instrument]; err != nil {
		return 0, err
	}
	return e.Positions[instrument], nil
}

func (e *Exchange) MinimumIncrement(_ context.Context, instrument string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count("MinimumIncrement", instrument)
	if err := e.IncrementErr[instrument]; err != nil {
		return 0, err
	}
	inc, ok := e.Increments[instrument]
	if !ok {
		return 0, fmt.Errorf("unknown instrument %s", instrument)
	}
	return inc, nil
}

func (e *Exchange) BestBid(_ context.Context, instrument string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count("BestBid", instrument)
	bid, ok := e.Bids[instrument]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrNoLiquidity, instrument)
	}
	return bid, nil
}

func (e *Exchange) PlaceOrder(_ context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error) {
	e.mu.Lock()
	hook := e.OnPlace
	e.mu.Unlock()
	if hook != nil {
		hook(req)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.count("PlaceOrder", req.Instrument)
	if err := e.PlaceErr[req.Instrument]; err != nil {
		return nil, err
	}
	e.Orders = append(e.Orders, req)
	if req.Side == domain.SideBuy {
		e.Positions[req.Instrument] += req.Quantity
	} else {
		e.Positions[req.Instrument] -= req.Quantity
	}
	return &domain.OrderConfirmation{
		OrderID:       fmt.Sprintf("fake-%d", len(e.Orders)),
		ClientOrderID: req.ClientOrderID,
		Request:       req,
		CreatedAt:     time.Now(),
	}, nil
}

// CallCount returns the number of calls to method across instruments.
func (e *Exchange) CallCount(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Calls[method]
}

// CallsFor returns the number of calls of any method for instrument.
func (e *Exchange) CallsFor(instrument string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.InstrumentCalls[instrument]
}

// PlacedOrders returns a copy of the accepted orders.
func (e *Exchange) PlacedOrders() []domain.OrderRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.OrderRequest(nil), e.Orders...)
}

func (e *Exchange) count(method, instrument string) {
	if e.Calls == nil {
		e.Calls = make(map[string]int)
	}
	if e.InstrumentCalls == nil {
		e.InstrumentCalls = make(map[string]int)
	}
	e.Calls[method]++
	e.InstrumentCalls[instrument]++
}
