// Package fundingrate shorts when the funding rate drops below a threshold.
package fundingrate

import (
	"context"
	"math"

	"github.com/betbot/quanttrader/internal/ports"
	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/pkg/config"
	"github.com/betbot/quanttrader/pkg/timeframe"
	"github.com/betbot/quanttrader/pkg/timeseries"
)

const Type = "funding_rate_threshold"

func init() {
	strategies.RegisterAlpha(Type, func() strategies.Alpha { return Alpha{} })
}

type Alpha struct{}

// FetchAlpha 资金费率与周期无关，按结算历史取最近 limit 条
func (Alpha) FetchAlpha(ctx context.Context, data ports.MarketData, instrument string, _ timeframe.Timeframe, limit int) (timeseries.Series, error) {
	return data.FetchFundingRateSeries(ctx, instrument, limit)
}

// ComputeSignal rate < threshold 时 -1，否则 0
func (Alpha) ComputeSignal(alpha timeseries.Series, params config.ParamSet) timeseries.Series {
	return alpha.Map(func(rate float64) float64 {
		if math.IsNaN(rate) {
			return math.NaN()
		}
		if rate < params.Threshold {
			return -1
		}
		return 0
	})
}
