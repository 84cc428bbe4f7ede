package fundingrate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/pkg/config"
	"github.com/betbot/quanttrader/pkg/timeframe"
	"github.com/betbot/quanttrader/pkg/timeseries"
)

type fundingData struct {
	limit int
	rates []float64
}

func (f *fundingData) FetchPriceSeries(context.Context, string, timeframe.Timeframe, int) (timeseries.Series, error) {
	panic("funding strategy must not fetch prices")
}

func (f *fundingData) FetchFundingRateSeries(_ context.Context, _ string, limit int) (timeseries.Series, error) {
	f.limit = limit
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var s timeseries.Series
	for i, r := range f.rates {
		s = append(s, timeseries.Point{Time: base.Add(time.Duration(i) * 8 * time.Hour), Value: r})
	}
	return s, nil
}

func TestComputeSignal(t *testing.T) {
	data := &fundingData{rates: []float64{0.0001, -0.0002, -0.00005, math.NaN()}}
	alpha, err := strategies.NewAlpha(Type)
	require.NoError(t, err)

	series, err := alpha.FetchAlpha(context.Background(), data, "BTCUSDT", timeframe.H1, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, data.limit)

	sig := alpha.ComputeSignal(series, config.ParamSet{Window: 4, Threshold: -0.0001})
	require.Len(t, sig, 4)
	assert.Equal(t, 0.0, sig[0].Value)
	assert.Equal(t, -1.0, sig[1].Value)
	assert.Equal(t, 0.0, sig[2].Value)
	assert.True(t, math.IsNaN(sig[3].Value))
}
