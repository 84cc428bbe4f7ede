// Package mapctdiff goes long when the close trades a given percentage above
// its moving average.
package mapctdiff

import (
	"context"
	"math"

	"github.com/betbot/quanttrader/internal/ports"
	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/pkg/config"
	"github.com/betbot/quanttrader/pkg/timeframe"
	"github.com/betbot/quanttrader/pkg/timeseries"
)

const Type = "ma_pct_diff"

func init() {
	strategies.RegisterAlpha(Type, func() strategies.Alpha { return Alpha{} })
}

type Alpha struct{}

func (Alpha) FetchAlpha(ctx context.Context, data ports.MarketData, instrument string, tf timeframe.Timeframe, limit int) (timeseries.Series, error) {
	return data.FetchPriceSeries(ctx, instrument, tf, limit)
}

// PctDiff close / rolling mean - 1
func PctDiff(closes timeseries.Series, window int) timeseries.Series {
	mean := timeseries.RollingMean(closes, window)
	out := make(timeseries.Series, len(closes))
	for i, p := range closes {
		v := math.NaN()
		if m := mean[i].Value; !math.IsNaN(m) && m != 0 {
			v = p.Value/m - 1
		}
		out[i] = timeseries.Point{Time: p.Time, Value: v}
	}
	return out
}

func (Alpha) ComputeSignal(alpha timeseries.Series, params config.ParamSet) timeseries.Series {
	return PctDiff(alpha, params.Window).Map(func(pct float64) float64 {
		if math.IsNaN(pct) {
			return math.NaN()
		}
		if pct > params.Threshold {
			return 1
		}
		return 0
	})
}
