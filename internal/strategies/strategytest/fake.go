// Package strategytest provides an in-memory Strategy for tests.
package strategytest

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/pkg/timeframe"
)

// Fake returns Live from Signal and remembers it as the cached value, the way
// a real strategy persists its aggregate. Cached starts out as NaN with
// HasCache false, i.e. never warmed up.
type Fake struct {
	IDValue   int
	NameValue string
	Symbol    string
	TF        timeframe.Timeframe
	MaxPos    float64
	Type      domain.OrderType

	Live     float64
	LiveErr  error
	Cached   float64
	HasCache bool

	mu    sync.Mutex
	Calls map[string]int
}

var _ strategies.Strategy = (*Fake)(nil)

// New builds a market-order fake.
func New(name, symbol string, tf timeframe.Timeframe, maxPos, live float64) *Fake {
	return &Fake{
		NameValue: name,
		Symbol:    symbol,
		TF:        tf,
		MaxPos:    maxPos,
		Type:      domain.OrderTypeMarket,
		Live:      live,
		Cached:    math.NaN(),
	}
}

// WithCache marks the fake as warmed up with the given persisted value.
func (f *Fake) WithCache(v float64) *Fake {
	f.Cached = v
	f.HasCache = true
	return f
}

func (f *Fake) ID() int                        { return f.IDValue }
func (f *Fake) Name() string                   { return f.NameValue }
func (f *Fake) Key() string                    { return fmt.Sprintf("%s_%s_%s", f.NameValue, f.Symbol, f.TF) }
func (f *Fake) Instrument() string             { return f.Symbol }
func (f *Fake) Timeframe() timeframe.Timeframe { return f.TF }
func (f *Fake) MaxPosition() float64           { return f.MaxPos }
func (f *Fake) OrderType() domain.OrderType    { return f.Type }

func (f *Fake) Signal(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Signal")
	if f.LiveErr != nil {
		return math.NaN(), f.LiveErr
	}
	f.Cached = f.Live
	f.HasCache = true
	return f.Live, nil
}

func (f *Fake) CachedSignal(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CachedSignal")
	if !f.HasCache {
		return math.NaN(), fmt.Errorf("%w: %s", domain.ErrMissingCache, f.Key())
	}
	return f.Cached, nil
}

// CallCount is safe to use while other goroutines drive the fake.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

func (f *Fake) count(method string) {
	if f.Calls == nil {
		f.Calls = make(map[string]int)
	}
	f.Calls[method]++
}
