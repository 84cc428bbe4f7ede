package trader

import (
	"context"
	"fmt"
	"math"

	"github.com/betbot/quanttrader/internal/domain"
)

// dispatch 下单：delta > 0 买入否则卖出，数量 |delta|。
// market 直接下单；limit 以买一价挂单，没有买盘返回 ErrNoLiquidity；其他类型返回 ErrInvalidOrderType。
func (t *Trader) dispatch(ctx context.Context, instrument string, delta float64) (*domain.OrderConfirmation, error) {
	typ, _ := t.pool.OrderTypeFor(instrument)
	req := domain.OrderRequest{
		Instrument: instrument,
		Side:       domain.SideForDelta(delta),
		Type:       typ,
		Quantity:   math.Abs(delta),
	}

	switch typ {
	case domain.OrderTypeMarket:
	case domain.OrderTypeLimit:
		bid, err := t.exchange.BestBid(ctx, instrument)
		if err != nil {
			return nil, fmt.Errorf("limit price for %s: %w", instrument, err)
		}
		req.Price = bid
	default:
		return nil, fmt.Errorf("%w: %q (%s)", domain.ErrInvalidOrderType, typ, instrument)
	}

	conf, err := t.exchange.PlaceOrder(ctx, req)
	t.record(ctx, req, conf, err)
	if err != nil {
		return nil, fmt.Errorf("place %s: %w", req, err)
	}
	return conf, nil
}

func (t *Trader) record(ctx context.Context, req domain.OrderRequest, conf *domain.OrderConfirmation, orderErr error) {
	if t.recorder == nil {
		return
	}
	if err := t.recorder.RecordOrder(ctx, req, conf, orderErr); err != nil {
		traderLog.WithError(err).Warn("写入订单日志失败")
	}
}
