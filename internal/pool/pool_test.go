package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/internal/strategies/strategytest"
	"github.com/betbot/quanttrader/pkg/timeframe"
)

func newPool() *StrategyPool {
	return FromStrategies([]strategies.Strategy{
		strategytest.New("a", "BTCUSDT", timeframe.D1, 0.1, 0),
		strategytest.New("b", "BTCUSDT", timeframe.M3, 0.1, 0),
		strategytest.New("c", "ETHUSDT", timeframe.H4, 0.1, 0),
		strategytest.New("d", "BTCUSDT", timeframe.M3, 0.1, 0),
		strategytest.New("e", "ETHUSDT", timeframe.M3, 0.1, 0),
	})
}

func TestTimeframesForSortedByDuration(t *testing.T) {
	p := newPool()
	assert.Equal(t, []timeframe.Timeframe{timeframe.M3, timeframe.D1}, p.TimeframesFor("BTCUSDT"))
	assert.Equal(t, []timeframe.Timeframe{timeframe.M3, timeframe.H4}, p.TimeframesFor("ETHUSDT"))
}

func TestTimeframesForUnknownInstrument(t *testing.T) {
	p := newPool()
	got := p.TimeframesFor("SOLUSDT")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAllTimeframesDeduped(t *testing.T) {
	p := newPool()
	assert.Equal(t, []timeframe.Timeframe{timeframe.M3, timeframe.H4, timeframe.D1}, p.AllTimeframes())
	assert.Empty(t, New().AllTimeframes())
}

func TestBucketKeepsInsertionOrder(t *testing.T) {
	p := newPool()
	ss := p.Strategies("BTCUSDT", timeframe.M3)
	require.Len(t, ss, 2)
	assert.Equal(t, "b", ss[0].Name())
	assert.Equal(t, "d", ss[1].Name())

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, p.Instruments())
	assert.Equal(t, 5, p.Len())

	var names []string
	for _, s := range p.All() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"b", "d", "a", "e", "c"}, names)
}

func TestOrderTypeForShortestTimeframe(t *testing.T) {
	daily := strategytest.New("a", "BTCUSDT", timeframe.D1, 0.1, 0)
	fast := strategytest.New("b", "BTCUSDT", timeframe.M1, 0.1, 0)
	fast.Type = domain.OrderTypeLimit
	p := FromStrategies([]strategies.Strategy{daily, fast})

	typ, ok := p.OrderTypeFor("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, domain.OrderTypeLimit, typ)

	_, ok = p.OrderTypeFor("XRPUSDT")
	assert.False(t, ok)
}

func TestLayout(t *testing.T) {
	layout := newPool().Layout()
	assert.Equal(t, []string{"b_BTCUSDT_3m", "d_BTCUSDT_3m"}, layout["BTCUSDT"][timeframe.M3])
	assert.Equal(t, []string{"c_ETHUSDT_4h"}, layout["ETHUSDT"][timeframe.H4])
}
