package domain

import "errors"

var (
	// ErrMissingCache 非活跃周期需要缓存信号，但该策略从未成功计算/持久化过信号
	ErrMissingCache = errors.New("missing cached signal")
	// ErrInvalidOrderType 订单类型既不是 market 也不是 limit
	ErrInvalidOrderType = errors.New("invalid order type")
	// ErrNoLiquidity 订单簿没有买盘
	ErrNoLiquidity = errors.New("no liquidity: empty bid side")
	// ErrExchangeConnectivity 交易所网络/API 失败
	ErrExchangeConnectivity = errors.New("exchange connectivity error")
	// ErrInvalidSignal 聚合信号为 NaN/Inf，不能据此交易
	ErrInvalidSignal = errors.New("invalid signal")
)
