package bybit

import (
	"github.com/shopspring/decimal"
)

// InstrumentInfo is the subset of /v5/market/instruments-info we use.
type InstrumentInfo struct {
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	LotSizeFilter struct {
		MaxOrderQty decimal.Decimal `json:"maxOrderQty"`
		MinOrderQty decimal.Decimal `json:"minOrderQty"`
		QtyStep     decimal.Decimal `json:"qtyStep"`
	} `json:"lotSizeFilter"`
	PriceFilter struct {
		TickSize decimal.Decimal `json:"tickSize"`
	} `json:"priceFilter"`
}

type instrumentsResult struct {
	List []InstrumentInfo `json:"list"`
}

// kline rows are [start, open, high, low, close, volume, turnover], newest first.
type klineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

type fundingEntry struct {
	Symbol               string          `json:"symbol"`
	FundingRate          decimal.Decimal `json:"fundingRate"`
	FundingRateTimestamp string          `json:"fundingRateTimestamp"`
}

type fundingResult struct {
	List []fundingEntry `json:"list"`
}

// orderbook levels are [price, size].
type orderbookResult struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	TS     int64      `json:"ts"`
}

type positionEntry struct {
	Symbol string          `json:"symbol"`
	Side   string          `json:"side"` // Buy | Sell | "" (flat)
	Size   decimal.Decimal `json:"size"`
}

type positionResult struct {
	List []positionEntry `json:"list"`
}

type createOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	TimeInForce string `json:"timeInForce,omitempty"`
	OrderLinkID string `json:"orderLinkId"`
}

type createOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}
