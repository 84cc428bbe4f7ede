package bybit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/quanttrader/internal/domain"
)

// FetchCurrentPosition sums the signed size of every position entry for the
// symbol (two entries in hedge mode): Buy is positive, Sell negative.
func (c *Client) FetchCurrentPosition(ctx context.Context, instrument string) (float64, error) {
	var res positionResult
	q := url.Values{"category": {category}, "symbol": {instrument}}
	if err := c.get(ctx, "/v5/position/list", q, true, &res); err != nil {
		return 0, err
	}
	total := decimal.Zero
	for _, p := range res.List {
		if p.Symbol != "" && p.Symbol != instrument {
			continue
		}
		switch strings.ToLower(p.Side) {
		case "buy":
			total = total.Add(p.Size)
		case "sell":
			total = total.Sub(p.Size)
		}
	}
	f, _ := total.Float64()
	return f, nil
}

// PlaceOrder submits a market or limit order. Limit orders rest as GTC.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error) {
	if req.Quantity <= 0 {
		return nil, errors.Errorf("bybit: order quantity must be positive, got %v", req.Quantity)
	}
	info, err := c.Instrument(ctx, req.Instrument)
	if err != nil {
		return nil, err
	}

	body := createOrderRequest{
		Category:    category,
		Symbol:      req.Instrument,
		Qty:         formatQty(req.Quantity, info.LotSizeFilter.QtyStep),
		OrderLinkID: req.ClientOrderID,
	}
	if body.OrderLinkID == "" {
		body.OrderLinkID = uuid.NewString()
	}
	switch req.Side {
	case domain.SideBuy:
		body.Side = "Buy"
	case domain.SideSell:
		body.Side = "Sell"
	default:
		return nil, errors.Errorf("bybit: invalid side %q", req.Side)
	}
	switch req.Type {
	case domain.OrderTypeMarket:
		body.OrderType = "Market"
	case domain.OrderTypeLimit:
		if req.Price <= 0 {
			return nil, errors.Errorf("bybit: limit order needs a positive price, got %v", req.Price)
		}
		body.OrderType = "Limit"
		body.Price = decimal.NewFromFloat(req.Price).String()
		body.TimeInForce = "GTC"
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOrderType, req.Type)
	}

	var res createOrderResult
	if err := c.post(ctx, "/v5/order/create", body, &res); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"symbol":      req.Instrument,
		"side":        body.Side,
		"type":        body.OrderType,
		"qty":         body.Qty,
		"price":       body.Price,
		"orderId":     res.OrderID,
		"orderLinkId": res.OrderLinkID,
	}).Info("order accepted")

	req.ClientOrderID = body.OrderLinkID
	return &domain.OrderConfirmation{
		OrderID:       res.OrderID,
		ClientOrderID: body.OrderLinkID,
		Request:       req,
		CreatedAt:     c.now().UTC(),
	}, nil
}
