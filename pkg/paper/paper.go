// Package paper simulates order execution for dry-run mode. Quotes and
// instrument metadata come from a real venue; positions live in memory.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/quanttrader/internal/domain"
)

var log = logrus.WithField("component", "paper")

// Quotes is the read-only part of a venue the simulator borrows.
type Quotes interface {
	MinimumIncrement(ctx context.Context, instrument string) (float64, error)
	BestBid(ctx context.Context, instrument string) (float64, error)
}

// Fill is one simulated execution.
type Fill struct {
	OrderID    string
	Instrument string
	Side       domain.Side
	Type       domain.OrderType
	Quantity   float64
	Price      float64
	Time       time.Time
}

type Exchange struct {
	quotes Quotes
	now    func() time.Time

	mu        sync.Mutex
	positions map[string]decimal.Decimal
	fills     []Fill
}

func New(quotes Quotes) *Exchange {
	return &Exchange{
		quotes:    quotes,
		now:       time.Now,
		positions: make(map[string]decimal.Decimal),
	}
}

// SetPosition seeds a starting position.
func (e *Exchange) SetPosition(instrument string, qty float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions[instrument] = decimal.NewFromFloat(qty)
}

func (e *Exchange) FetchCurrentPosition(ctx context.Context, instrument string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, _ := e.positions[instrument].Float64()
	return f, nil
}

func (e *Exchange) MinimumIncrement(ctx context.Context, instrument string) (float64, error) {
	return e.quotes.MinimumIncrement(ctx, instrument)
}

func (e *Exchange) BestBid(ctx context.Context, instrument string) (float64, error) {
	return e.quotes.BestBid(ctx, instrument)
}

// PlaceOrder fills immediately: market orders at the best bid, limit orders at
// their own price.
func (e *Exchange) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("paper: order quantity must be positive, got %v", req.Quantity)
	}
	price := req.Price
	switch req.Type {
	case domain.OrderTypeMarket:
		px, err := e.quotes.BestBid(ctx, req.Instrument)
		if err != nil {
			return nil, err
		}
		price = px
	case domain.OrderTypeLimit:
		if price <= 0 {
			return nil, fmt.Errorf("paper: limit order needs a positive price, got %v", price)
		}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOrderType, req.Type)
	}

	qty := decimal.NewFromFloat(req.Quantity)
	if req.Side == domain.SideSell {
		qty = qty.Neg()
	}
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}
	fill := Fill{
		OrderID:    "paper-" + uuid.NewString(),
		Instrument: req.Instrument,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Price:      price,
		Time:       e.now().UTC(),
	}

	e.mu.Lock()
	e.positions[req.Instrument] = e.positions[req.Instrument].Add(qty)
	e.fills = append(e.fills, fill)
	pos := e.positions[req.Instrument]
	e.mu.Unlock()

	log.WithFields(logrus.Fields{
		"instrument": req.Instrument,
		"side":       req.Side,
		"qty":        req.Quantity,
		"price":      price,
		"position":   pos.String(),
	}).Info("📝 [dry-run] 模拟成交")

	return &domain.OrderConfirmation{
		OrderID:       fill.OrderID,
		ClientOrderID: req.ClientOrderID,
		Request:       req,
		CreatedAt:     fill.Time,
	}, nil
}

// Fills returns a copy of every simulated execution so far.
func (e *Exchange) Fills() []Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Fill, len(e.fills))
	copy(out, e.fills)
	return out
}
