package domain

import (
	"fmt"
	"strings"
	"time"
)

// Side 订单方向
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SideForDelta delta > 0 买入，否则卖出
func SideForDelta(delta float64) Side {
	if delta > 0 {
		return SideBuy
	}
	return SideSell
}

// OrderType 订单类型，只支持 market / limit
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// ParseOrderType 解析订单类型；其他值返回 ErrInvalidOrderType
func ParseOrderType(v string) (OrderType, error) {
	switch OrderType(strings.ToLower(strings.TrimSpace(v))) {
	case OrderTypeMarket:
		return OrderTypeMarket, nil
	case OrderTypeLimit:
		return OrderTypeLimit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderType, v)
	}
}

// PositionSide 策略允许的持仓方向（配置项，目前只做校验和记录）
type PositionSide string

const (
	PositionSideLong      PositionSide = "long"
	PositionSideShort     PositionSide = "short"
	PositionSideLongShort PositionSide = "long_short"
)

// OrderRequest 下单请求
type OrderRequest struct {
	Instrument    string    // 交易对，例如 BTCUSDT
	Side          Side      // 方向
	Type          OrderType // market / limit
	Quantity      float64   // 数量（始终为正）
	Price         float64   // 限价单价格；市价单为 0
	ClientOrderID string    // 客户端订单 ID（可选，为空时由交易所适配层生成）
}

func (r OrderRequest) String() string {
	if r.Type == OrderTypeLimit {
		return fmt.Sprintf("%s %s %g %s @ %g", r.Type, r.Side, r.Quantity, r.Instrument, r.Price)
	}
	return fmt.Sprintf("%s %s %g %s", r.Type, r.Side, r.Quantity, r.Instrument)
}

// OrderConfirmation 交易所返回的下单确认
type OrderConfirmation struct {
	OrderID       string
	ClientOrderID string
	Request       OrderRequest
	CreatedAt     time.Time
}
