package position

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/internal/pool"
	"github.com/betbot/quanttrader/internal/ports/portstest"
	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/internal/strategies/strategytest"
	"github.com/betbot/quanttrader/pkg/timeframe"
)

func TestNetDeltaSingleStrategy(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1)
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	e := NewEngine(pool.FromStrategies([]strategies.Strategy{s}), ex)

	n, err := e.NetDeltaFor(context.Background(), "BTCUSDT", []timeframe.Timeframe{timeframe.M1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.1, n.Target)
	assert.Equal(t, 0.0, n.Current)
	assert.Equal(t, 0.1, n.Delta)
	assert.Equal(t, 1, s.CallCount("Signal"))
}

func TestNetDeltaTwoStrategies(t *testing.T) {
	p := pool.FromStrategies([]strategies.Strategy{
		strategytest.New("long", "X", timeframe.M1, 0.05, 1),
		strategytest.New("short", "X", timeframe.M1, 0.03, -1),
	})
	ex := portstest.New()
	ex.Positions["X"] = 0.01
	ex.Increments["X"] = 0.0001

	n, err := NewEngine(p, ex).NetDeltaFor(context.Background(), "X", []timeframe.Timeframe{timeframe.M1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, n.Target, 1e-12)
	// 0.05 - 0.03 - 0.01 在 float64 下是 0.010000000000000004，按步长取整后为 0.01
	assert.Equal(t, 0.01, n.Delta)
}

func TestNetDeltaMixesLiveAndCached(t *testing.T) {
	fast := strategytest.New("fast", "BTCUSDT", timeframe.M3, 0.2, 1)
	slow := strategytest.New("slow", "BTCUSDT", timeframe.D1, 0.5, 1).WithCache(-1)
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	e := NewEngine(pool.FromStrategies([]strategies.Strategy{fast, slow}), ex)

	n, err := e.NetDeltaFor(context.Background(), "BTCUSDT",
		[]timeframe.Timeframe{timeframe.M3}, []timeframe.Timeframe{timeframe.D1})
	require.NoError(t, err)
	assert.InDelta(t, -0.3, n.Target, 1e-12)
	assert.Equal(t, -0.3, n.Delta)
	assert.Equal(t, 1, fast.CallCount("Signal"))
	assert.Equal(t, 0, slow.CallCount("Signal"))
	assert.Equal(t, 1, slow.CallCount("CachedSignal"))
}

func TestNetDeltaClampsBelowIncrement(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1)
	ex := portstest.New()
	ex.Positions["BTCUSDT"] = 0.0995
	ex.Increments["BTCUSDT"] = 0.001

	n, err := NewEngine(pool.FromStrategies([]strategies.Strategy{s}), ex).
		NetDeltaFor(context.Background(), "BTCUSDT", []timeframe.Timeframe{timeframe.M1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, n.Delta)
	assert.Equal(t, 0, ex.CallCount("PlaceOrder"))
}

func TestMissingCachePropagates(t *testing.T) {
	fast := strategytest.New("fast", "BTCUSDT", timeframe.M1, 0.1, 1)
	cold := strategytest.New("cold", "BTCUSDT", timeframe.H4, 0.1, 1)
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001

	_, err := NewEngine(pool.FromStrategies([]strategies.Strategy{fast, cold}), ex).
		NetDeltaFor(context.Background(), "BTCUSDT", []timeframe.Timeframe{timeframe.M1}, []timeframe.Timeframe{timeframe.H4})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingCache)
	assert.Equal(t, 0, ex.CallCount("FetchCurrentPosition"), "no exchange call once netting failed")
}

func TestTargetPositionRejectsNaN(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, math.NaN())
	e := NewEngine(pool.New(), portstest.New())

	_, err := e.TargetPositionFor(context.Background(), s, true)
	assert.ErrorIs(t, err, domain.ErrInvalidSignal)

	s.Live = math.Inf(1)
	_, err = e.TargetPositionFor(context.Background(), s, true)
	assert.ErrorIs(t, err, domain.ErrInvalidSignal)
}

func TestTargetPositionScalesByMaxPosition(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M1, 0.4, 0.5).WithCache(-0.5)
	e := NewEngine(pool.New(), portstest.New())

	live, err := e.TargetPositionFor(context.Background(), s, true)
	require.NoError(t, err)
	assert.Equal(t, 0.2, live)

	// live 计算后缓存已被刷新为 0.5
	cached, err := e.TargetPositionFor(context.Background(), s, false)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cached)
}

func TestExchangeErrorPropagates(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1)
	ex := portstest.New()
	ex.PositionErr["BTCUSDT"] = domain.ErrExchangeConnectivity

	_, err := NewEngine(pool.FromStrategies([]strategies.Strategy{s}), ex).
		NetDeltaFor(context.Background(), "BTCUSDT", []timeframe.Timeframe{timeframe.M1}, nil)
	assert.True(t, errors.Is(err, domain.ErrExchangeConnectivity))
}

func TestRoundToStep(t *testing.T) {
	tests := []struct {
		delta, step, want float64
	}{
		{0.1, 0.001, 0.1},
		{0.0009, 0.001, 0},
		{-0.0009, 0.001, 0},
		{0.001, 0.001, 0.001},
		{0.010000000000000004, 0.0001, 0.01},
		{-0.12345, 0.01, -0.12},
		{2.6, 1, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundToStep(tt.delta, tt.step), "delta=%v step=%v", tt.delta, tt.step)
	}
}
