package ports

import (
	"context"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/pkg/timeframe"
	"github.com/betbot/quanttrader/pkg/timeseries"
)

// Small capability interfaces shared across layers (strategies/position/trader).

type PositionGetter interface {
	// FetchCurrentPosition returns the signed position: >0 long, <0 short, 0 flat.
	FetchCurrentPosition(ctx context.Context, instrument string) (float64, error)
}

type IncrementGetter interface {
	// MinimumIncrement returns the smallest tradable size step.
	MinimumIncrement(ctx context.Context, instrument string) (float64, error)
}

type BestBidGetter interface {
	// BestBid returns the top bid price; fails with domain.ErrNoLiquidity on an empty bid side.
	BestBid(ctx context.Context, instrument string) (float64, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error)
}

// Exchange is everything the trading loop consumes from a venue.
type Exchange interface {
	PositionGetter
	IncrementGetter
	BestBidGetter
	OrderPlacer
}

// MarketData supplies the raw alpha series strategies evaluate on.
type MarketData interface {
	// FetchPriceSeries returns (timestamp, close) ascending, at most limit bars.
	FetchPriceSeries(ctx context.Context, instrument string, tf timeframe.Timeframe, limit int) (timeseries.Series, error)
	// FetchFundingRateSeries returns (timestamp, rate) ascending, at most limit entries.
	FetchFundingRateSeries(ctx context.Context, instrument string, limit int) (timeseries.Series, error)
}
