package bybit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/pkg/timeframe"
	"github.com/betbot/quanttrader/pkg/timeseries"
)

const (
	maxKlinesPerPage  = 1000
	maxFundingPerPage = 200
)

// Interval maps a timeframe to the v5 kline interval parameter.
func Interval(tf timeframe.Timeframe) (string, error) {
	switch tf {
	case timeframe.M1:
		return "1", nil
	case timeframe.M3:
		return "3", nil
	case timeframe.M5:
		return "5", nil
	case timeframe.M15:
		return "15", nil
	case timeframe.M30:
		return "30", nil
	case timeframe.H1:
		return "60", nil
	case timeframe.H4:
		return "240", nil
	case timeframe.D1:
		return "D", nil
	default:
		return "", fmt.Errorf("bybit: no kline interval for timeframe %q", tf)
	}
}

// Instrument returns cached instrument metadata (1h TTL).
func (c *Client) Instrument(ctx context.Context, symbol string) (InstrumentInfo, error) {
	return c.instruments.GetOrLoad(symbol, func() (InstrumentInfo, error) {
		var res instrumentsResult
		q := url.Values{"category": {category}, "symbol": {symbol}}
		if err := c.get(ctx, "/v5/market/instruments-info", q, false, &res); err != nil {
			return InstrumentInfo{}, err
		}
		for _, info := range res.List {
			if info.Symbol == symbol {
				return info, nil
			}
		}
		return InstrumentInfo{}, errors.Errorf("bybit: unknown instrument %s", symbol)
	})
}

// MinimumIncrement is the instrument's qtyStep.
func (c *Client) MinimumIncrement(ctx context.Context, instrument string) (float64, error) {
	info, err := c.Instrument(ctx, instrument)
	if err != nil {
		return 0, err
	}
	step, _ := info.LotSizeFilter.QtyStep.Float64()
	if step <= 0 {
		return 0, errors.Errorf("bybit: instrument %s has no qtyStep", instrument)
	}
	return step, nil
}

// BestBid reads the top of a depth-1 order book.
func (c *Client) BestBid(ctx context.Context, instrument string) (float64, error) {
	var res orderbookResult
	q := url.Values{"category": {category}, "symbol": {instrument}, "limit": {"1"}}
	if err := c.get(ctx, "/v5/market/orderbook", q, false, &res); err != nil {
		return 0, err
	}
	if len(res.Bids) == 0 || len(res.Bids[0]) == 0 {
		return 0, fmt.Errorf("%w: %s", domain.ErrNoLiquidity, instrument)
	}
	px, err := strconv.ParseFloat(res.Bids[0][0], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bybit: bad bid price %q", res.Bids[0][0])
	}
	return px, nil
}

// FetchPriceSeries returns up to limit closes, oldest first. The newest bar
// may still be forming.
func (c *Client) FetchPriceSeries(ctx context.Context, instrument string, tf timeframe.Timeframe, limit int) (timeseries.Series, error) {
	interval, err := Interval(tf)
	if err != nil {
		return nil, err
	}
	var (
		out timeseries.Series
		end int64
	)
	for len(out) < limit {
		page := limit - len(out)
		if page > maxKlinesPerPage {
			page = maxKlinesPerPage
		}
		q := url.Values{
			"category": {category},
			"symbol":   {instrument},
			"interval": {interval},
			"limit":    {strconv.Itoa(page)},
		}
		if end > 0 {
			q.Set("end", strconv.FormatInt(end, 10))
		}
		var res klineResult
		if err := c.get(ctx, "/v5/market/kline", q, false, &res); err != nil {
			return nil, err
		}
		if len(res.List) == 0 {
			break
		}
		batch := make(timeseries.Series, 0, len(res.List))
		oldest := int64(0)
		for _, row := range res.List {
			if len(row) < 5 {
				return nil, errors.Errorf("bybit: short kline row %v", row)
			}
			ms, err := strconv.ParseInt(row[0], 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "bybit: bad kline start %q", row[0])
			}
			closePx, err := strconv.ParseFloat(row[4], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "bybit: bad kline close %q", row[4])
			}
			batch = append(batch, timeseries.Point{Time: time.UnixMilli(ms).UTC(), Value: closePx})
			if oldest == 0 || ms < oldest {
				oldest = ms
			}
		}
		out = append(batch, out...)
		if len(res.List) < page {
			break
		}
		end = oldest - 1
	}
	return out.Dedupe(), nil
}

// FetchFundingRateSeries returns up to limit settled funding rates, oldest first.
func (c *Client) FetchFundingRateSeries(ctx context.Context, instrument string, limit int) (timeseries.Series, error) {
	var (
		out timeseries.Series
		end int64
	)
	for len(out) < limit {
		page := limit - len(out)
		if page > maxFundingPerPage {
			page = maxFundingPerPage
		}
		q := url.Values{
			"category": {category},
			"symbol":   {instrument},
			"limit":    {strconv.Itoa(page)},
		}
		if end > 0 {
			q.Set("endTime", strconv.FormatInt(end, 10))
		}
		var res fundingResult
		if err := c.get(ctx, "/v5/market/funding/history", q, false, &res); err != nil {
			return nil, err
		}
		if len(res.List) == 0 {
			break
		}
		batch := make(timeseries.Series, 0, len(res.List))
		oldest := int64(0)
		for _, e := range res.List {
			ms, err := strconv.ParseInt(e.FundingRateTimestamp, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "bybit: bad funding timestamp %q", e.FundingRateTimestamp)
			}
			rate, _ := e.FundingRate.Float64()
			batch = append(batch, timeseries.Point{Time: time.UnixMilli(ms).UTC(), Value: rate})
			if oldest == 0 || ms < oldest {
				oldest = ms
			}
		}
		out = append(batch, out...)
		if len(res.List) < page {
			break
		}
		end = oldest - 1
	}
	return out.Dedupe(), nil
}

// formatQty renders a quantity on the instrument's step grid.
func formatQty(qty float64, step decimal.Decimal) string {
	d := decimal.NewFromFloat(qty)
	if step.IsPositive() {
		d = d.Div(step).Round(0).Mul(step)
	}
	return d.String()
}
