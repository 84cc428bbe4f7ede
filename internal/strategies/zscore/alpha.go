// Package zscore goes long when the close's rolling z-score exceeds a threshold.
package zscore

import (
	"context"
	"math"

	"github.com/betbot/quanttrader/internal/ports"
	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/pkg/config"
	"github.com/betbot/quanttrader/pkg/timeframe"
	"github.com/betbot/quanttrader/pkg/timeseries"
)

const Type = "zscore_momentum"

func init() {
	strategies.RegisterAlpha(Type, func() strategies.Alpha { return Alpha{} })
}

type Alpha struct{}

func (Alpha) FetchAlpha(ctx context.Context, data ports.MarketData, instrument string, tf timeframe.Timeframe, limit int) (timeseries.Series, error) {
	return data.FetchPriceSeries(ctx, instrument, tf, limit)
}

// ZScore (close - rolling mean) / rolling sample std. Zero deviation is NaN.
func ZScore(closes timeseries.Series, window int) timeseries.Series {
	mean := timeseries.RollingMean(closes, window)
	std := timeseries.RollingStd(closes, window)
	out := make(timeseries.Series, len(closes))
	for i, p := range closes {
		z := math.NaN()
		if sd := std[i].Value; !math.IsNaN(sd) && sd > 0 {
			z = (p.Value - mean[i].Value) / sd
		}
		out[i] = timeseries.Point{Time: p.Time, Value: z}
	}
	return out
}

// ComputeSignal z > threshold 时 1，否则 0；z 无法计算时为 NaN
func (Alpha) ComputeSignal(alpha timeseries.Series, params config.ParamSet) timeseries.Series {
	return ZScore(alpha, params.Window).Map(func(z float64) float64 {
		if math.IsNaN(z) {
			return math.NaN()
		}
		if z > params.Threshold {
			return 1
		}
		return 0
	})
}
