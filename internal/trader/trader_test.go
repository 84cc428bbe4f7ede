package trader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/internal/pool"
	"github.com/betbot/quanttrader/internal/ports/portstest"
	"github.com/betbot/quanttrader/internal/position"
	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/internal/strategies/strategytest"
	"github.com/betbot/quanttrader/pkg/timeframe"
)

func newTrader(ex *portstest.Exchange, ss ...strategies.Strategy) *Trader {
	p := pool.FromStrategies(ss)
	return New(p, position.NewEngine(p, ex), ex)
}

func TestActivateCoalesces(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M3, 0.1, 1)
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	tr := newTrader(ex, s)

	require.NoError(t, tr.Activate(timeframe.M3))
	require.NoError(t, tr.Activate(timeframe.M3))
	assert.Equal(t, []timeframe.Timeframe{timeframe.M3}, tr.ActiveTimeframes())

	_, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.CallCount("Signal"), "two activations collapse into one evaluation")
	assert.Len(t, ex.PlacedOrders(), 1)
	assert.Empty(t, tr.ActiveTimeframes())
}

func TestActivateRejectsUnknownTimeframe(t *testing.T) {
	tr := newTrader(portstest.New())
	assert.Error(t, tr.Activate(timeframe.Timeframe("2m")))
	assert.Empty(t, tr.ActiveTimeframes())
}

func TestIdleCycleMakesNoCalls(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M3, 0.1, 1)
	ex := portstest.New()
	tr := newTrader(ex, s)

	report, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Empty(t, report.Active)
	assert.Empty(t, ex.Calls)
	assert.Equal(t, 0, s.CallCount("Signal"))
}

func TestSkipInstrumentWithoutActiveTimeframe(t *testing.T) {
	btc := strategytest.New("a", "BTCUSDT", timeframe.M3, 0.1, 1)
	eth := strategytest.New("b", "ETHUSDT", timeframe.H4, 0.1, 1).WithCache(1)
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	ex.Increments["ETHUSDT"] = 0.01
	tr := newTrader(ex, btc, eth)

	require.NoError(t, tr.Activate(timeframe.M3))
	report, err := tr.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, ex.CallsFor("ETHUSDT"))
	assert.Equal(t, 0, eth.CallCount("Signal"))
	assert.Equal(t, 0, eth.CallCount("CachedSignal"))
	require.Len(t, report.Instruments, 2)
	assert.True(t, report.Instruments[1].Skipped)
}

func TestUnusedTimeframeIsNoop(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M3, 0.1, 1)
	ex := portstest.New()
	tr := newTrader(ex, s)

	require.NoError(t, tr.Activate(timeframe.H8))
	_, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ex.Calls)
	assert.Empty(t, tr.ActiveTimeframes())
}

func TestClampedDeltaPlacesNoOrder(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1)
	ex := portstest.New()
	ex.Positions["BTCUSDT"] = 0.0995
	ex.Increments["BTCUSDT"] = 0.001
	tr := newTrader(ex, s)

	require.NoError(t, tr.Activate(timeframe.M1))
	report, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ex.CallCount("PlaceOrder"))
	assert.Equal(t, 0.0, report.Instruments[0].Delta)
	assert.Nil(t, report.Instruments[0].PositionAfter)
}

func TestEndToEndNetting(t *testing.T) {
	ex := portstest.New()
	ex.Positions["X"] = 0.01
	ex.Increments["X"] = 0.0001
	tr := newTrader(ex,
		strategytest.New("long", "X", timeframe.M1, 0.05, 1),
		strategytest.New("short", "X", timeframe.M1, 0.03, -1),
	)

	require.NoError(t, tr.Activate(timeframe.M1))
	report, err := tr.RunCycle(context.Background())
	require.NoError(t, err)

	orders := ex.PlacedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.SideBuy, orders[0].Side)
	assert.Equal(t, domain.OrderTypeMarket, orders[0].Type)
	assert.Equal(t, 0.01, orders[0].Quantity)
	assert.Zero(t, orders[0].Price)

	res := report.Instruments[0]
	assert.Equal(t, "fake-1", res.OrderID)
	require.NotNil(t, res.PositionAfter)
	assert.InDelta(t, 0.02, *res.PositionAfter, 1e-12)
	assert.Equal(t, 2, ex.CallCount("FetchCurrentPosition"), "position is re-queried after the order")
}

func TestSellUsesAbsoluteQuantity(t *testing.T) {
	ex := portstest.New()
	ex.Positions["BTCUSDT"] = 0.3
	ex.Increments["BTCUSDT"] = 0.001
	tr := newTrader(ex, strategytest.New("a", "BTCUSDT", timeframe.M5, 0.1, -1))

	require.NoError(t, tr.Activate(timeframe.M5))
	_, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	orders := ex.PlacedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.SideSell, orders[0].Side)
	assert.InDelta(t, 0.4, orders[0].Quantity, 1e-12)
}

func TestLimitOrderUsesBestBid(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1)
	s.Type = domain.OrderTypeLimit
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	ex.Bids["BTCUSDT"] = 65000.5
	tr := newTrader(ex, s)

	require.NoError(t, tr.Activate(timeframe.M1))
	_, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	orders := ex.PlacedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderTypeLimit, orders[0].Type)
	assert.Equal(t, 65000.5, orders[0].Price)
}

func TestLimitOrderWithoutBids(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1)
	s.Type = domain.OrderTypeLimit
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	tr := newTrader(ex, s)

	require.NoError(t, tr.Activate(timeframe.M1))
	_, err := tr.RunCycle(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoLiquidity)
	assert.Equal(t, 0, ex.CallCount("PlaceOrder"))
	assert.Empty(t, tr.ActiveTimeframes())
}

func TestInvalidOrderType(t *testing.T) {
	s := strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1)
	s.Type = domain.OrderType("stop")
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	tr := newTrader(ex, s)

	require.NoError(t, tr.Activate(timeframe.M1))
	_, err := tr.RunCycle(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidOrderType)
	assert.Equal(t, 0, ex.CallCount("PlaceOrder"))
}

func TestInstrumentFailureIsIsolated(t *testing.T) {
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	ex.Increments["ETHUSDT"] = 0.01
	ex.PositionErr["BTCUSDT"] = domain.ErrExchangeConnectivity
	tr := newTrader(ex,
		strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1),
		strategytest.New("b", "ETHUSDT", timeframe.M1, 0.5, 1),
	)

	require.NoError(t, tr.Activate(timeframe.M1))
	report, err := tr.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExchangeConnectivity)
	assert.Contains(t, err.Error(), "BTCUSDT")

	orders := ex.PlacedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, "ETHUSDT", orders[0].Instrument)
	assert.NotEmpty(t, report.Instruments[0].Error)
	assert.Empty(t, report.Instruments[1].Error)
	assert.NotEmpty(t, report.Error)
	assert.Empty(t, tr.ActiveTimeframes(), "flags reset even when an instrument failed")
}

func TestMissingCacheFailsInstrument(t *testing.T) {
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	tr := newTrader(ex,
		strategytest.New("fast", "BTCUSDT", timeframe.M1, 0.1, 1),
		strategytest.New("cold", "BTCUSDT", timeframe.D1, 0.1, 1),
	)

	require.NoError(t, tr.Activate(timeframe.M1))
	_, err := tr.RunCycle(context.Background())
	assert.ErrorIs(t, err, domain.ErrMissingCache)
	assert.Equal(t, 0, ex.CallCount("PlaceOrder"))
}

func TestOverlappingCycleIsRejected(t *testing.T) {
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	tr := newTrader(ex, strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1))

	var nestedErr error
	ex.OnPlace = func(domain.OrderRequest) {
		_, nestedErr = tr.RunCycle(context.Background())
		// 周期进行中到达的激活留给下一周期
		_ = tr.Activate(timeframe.M1)
	}

	require.NoError(t, tr.Activate(timeframe.M1))
	_, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrCycleInProgress)
	assert.Equal(t, 1, ex.CallCount("PlaceOrder"))
	assert.Equal(t, []timeframe.Timeframe{timeframe.M1}, tr.ActiveTimeframes())
}

func TestConcurrentActivateAndRunCycle(t *testing.T) {
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	tr := newTrader(ex, strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = tr.Activate(timeframe.M1)
		}()
		go func() {
			defer wg.Done()
			_, err := tr.RunCycle(context.Background())
			if err != nil {
				assert.ErrorIs(t, err, ErrCycleInProgress)
			}
		}()
	}
	wg.Wait()

	_, err := tr.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tr.ActiveTimeframes())
	assert.Equal(t, 0, ex.CallCount("PlaceOrder"))
}

type memRecorder struct {
	reqs []domain.OrderRequest
	errs []error
}

func (m *memRecorder) RecordOrder(_ context.Context, req domain.OrderRequest, _ *domain.OrderConfirmation, orderErr error) error {
	m.reqs = append(m.reqs, req)
	m.errs = append(m.errs, orderErr)
	return nil
}

type memNotifier struct {
	msgs []string
	err  error
}

func (m *memNotifier) Notify(_ context.Context, text string) error {
	m.msgs = append(m.msgs, text)
	return m.err
}

func TestRecorderAndNotifier(t *testing.T) {
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	ex.Increments["ETHUSDT"] = 0.01
	ex.PlaceErr["ETHUSDT"] = errors.New("rejected")
	tr := newTrader(ex,
		strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1),
		strategytest.New("b", "ETHUSDT", timeframe.M1, 0.5, 1),
	)
	rec := &memRecorder{}
	note := &memNotifier{err: errors.New("telegram down")}
	tr.SetRecorder(rec)
	tr.SetNotifier(note)

	require.NoError(t, tr.Activate(timeframe.M1))
	_, err := tr.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	assert.NotContains(t, err.Error(), "telegram")

	require.Len(t, rec.reqs, 2)
	assert.NoError(t, rec.errs[0])
	assert.Error(t, rec.errs[1])
	require.Len(t, note.msgs, 2)
	assert.Contains(t, note.msgs[0], "BTCUSDT")
	assert.Contains(t, note.msgs[1], "ETHUSDT")
}

func TestSnapshotKeepsLastCycle(t *testing.T) {
	ex := portstest.New()
	ex.Increments["BTCUSDT"] = 0.001
	tr := newTrader(ex, strategytest.New("a", "BTCUSDT", timeframe.M1, 0.1, 1))

	require.Nil(t, tr.Snapshot().LastCycle)
	require.NoError(t, tr.Activate(timeframe.M1))
	_, err := tr.RunCycle(context.Background())
	require.NoError(t, err)

	st := tr.Snapshot()
	require.NotNil(t, st.LastCycle)
	assert.Equal(t, []timeframe.Timeframe{timeframe.M1}, st.LastCycle.Active)
	assert.False(t, st.InCycle)
	assert.Equal(t, []string{"a_BTCUSDT_1m"}, st.Pool["BTCUSDT"][timeframe.M1])
}
