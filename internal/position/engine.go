// Package position 把策略信号换算为目标仓位，并与交易所当前仓位轧差。
package position

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/internal/metrics"
	"github.com/betbot/quanttrader/internal/pool"
	"github.com/betbot/quanttrader/internal/ports"
	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/pkg/timeframe"
)

var engineLog = logrus.WithField("component", "position")

// Venue 轧差只需要当前仓位和最小下单步长
type Venue interface {
	ports.PositionGetter
	ports.IncrementGetter
}

// Netting 单个品种一次轧差的结果。Delta == 0 表示不下单。
type Netting struct {
	Instrument string
	Active     []timeframe.Timeframe
	Inactive   []timeframe.Timeframe
	Target     float64
	Current    float64
	Increment  float64
	Delta      float64
}

// Engine 不对多策略合计敞口做上限控制
type Engine struct {
	pool  *pool.StrategyPool
	venue Venue
}

func NewEngine(p *pool.StrategyPool, venue Venue) *Engine {
	return &Engine{pool: p, venue: venue}
}

// TargetPositionFor live 时实时计算信号，否则读取最近一次落盘的聚合信号。
// 结果 = signal × maxPosition；NaN/Inf 信号返回 ErrInvalidSignal，缓存缺失返回 ErrMissingCache。
func (e *Engine) TargetPositionFor(ctx context.Context, s strategies.Strategy, live bool) (float64, error) {
	var (
		sig float64
		err error
	)
	if live {
		sig, err = s.Signal(ctx)
	} else {
		sig, err = s.CachedSignal(ctx)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(sig) || math.IsInf(sig, 0) {
		return 0, fmt.Errorf("%w: strategy %s signal=%v live=%v", domain.ErrInvalidSignal, s.Key(), sig, live)
	}
	metrics.Signal.WithLabelValues(s.Key()).Set(sig)
	return sig * s.MaxPosition(), nil
}

// AggregateTargetForTimeframe (instrument, timeframe) 桶内所有策略目标仓位之和
func (e *Engine) AggregateTargetForTimeframe(ctx context.Context, instrument string, tf timeframe.Timeframe, live bool) (float64, error) {
	total := 0.0
	for _, s := range e.pool.Strategies(instrument, tf) {
		target, err := e.TargetPositionFor(ctx, s, live)
		if err != nil {
			return 0, fmt.Errorf("%s %s: %w", instrument, tf, err)
		}
		total += target
	}
	return total, nil
}

// NetDeltaFor 目标 = 活跃周期（实时信号）+ 非活跃周期（缓存信号）；
// delta = 目标 - 当前仓位。|delta| 小于最小步长时置 0，否则按步长四舍五入。
func (e *Engine) NetDeltaFor(ctx context.Context, instrument string, active, inactive []timeframe.Timeframe) (Netting, error) {
	n := Netting{Instrument: instrument, Active: active, Inactive: inactive}

	for _, tf := range active {
		t, err := e.AggregateTargetForTimeframe(ctx, instrument, tf, true)
		if err != nil {
			return n, err
		}
		n.Target += t
	}
	for _, tf := range inactive {
		t, err := e.AggregateTargetForTimeframe(ctx, instrument, tf, false)
		if err != nil {
			return n, err
		}
		n.Target += t
	}
	metrics.TargetPosition.WithLabelValues(instrument).Set(n.Target)

	cur, err := e.venue.FetchCurrentPosition(ctx, instrument)
	if err != nil {
		return n, fmt.Errorf("%s fetch position: %w", instrument, err)
	}
	n.Current = cur

	inc, err := e.venue.MinimumIncrement(ctx, instrument)
	if err != nil {
		return n, fmt.Errorf("%s minimum increment: %w", instrument, err)
	}
	if inc <= 0 || math.IsNaN(inc) {
		return n, fmt.Errorf("%s: invalid minimum increment %v", instrument, inc)
	}
	n.Increment = inc
	n.Delta = RoundToStep(n.Target-n.Current, inc)

	engineLog.WithFields(logrus.Fields{
		"instrument": instrument,
		"active":     active,
		"inactive":   inactive,
		"target":     n.Target,
		"current":    n.Current,
		"step":       inc,
	}).Infof("轧差 delta=%v", n.Delta)
	return n, nil
}

// RoundToStep |delta| < step 时返回 0，否则取最近的 step 整数倍（十进制运算，避免 0.010000000000000004 这类尾差）
func RoundToStep(delta, step float64) float64 {
	if math.Abs(delta) < step {
		return 0
	}
	s := decimal.NewFromFloat(step)
	d := decimal.NewFromFloat(delta)
	return d.Div(s).Round(0).Mul(s).InexactFloat64()
}
