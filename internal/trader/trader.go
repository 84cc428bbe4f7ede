// Package trader 多周期交易编排：维护各周期的激活状态，每个交易周期按品种轧差并下单。
package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/internal/metrics"
	"github.com/betbot/quanttrader/internal/pool"
	"github.com/betbot/quanttrader/internal/ports"
	"github.com/betbot/quanttrader/internal/position"
	"github.com/betbot/quanttrader/pkg/timeframe"
)

var traderLog = logrus.WithField("component", "trader")

// ErrCycleInProgress 上一个交易周期尚未结束
var ErrCycleInProgress = errors.New("trading cycle already in progress")

// Recorder 记录每一次下单尝试（成功或失败）
type Recorder interface {
	RecordOrder(ctx context.Context, req domain.OrderRequest, conf *domain.OrderConfirmation, orderErr error) error
}

// Notifier 推送下单与失败通知；失败只记日志
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Trader 激活状态只由 Trader 修改。
//
// 状态机：每个周期一个布尔标志，初始全为 false。
// Activate 置 true（幂等，两次 RunCycle 之间的多次激活合并为一次）；
// RunCycle 结束时清除本周期开始前的所有标志。周期进行中到达的激活保留到下一周期。
type Trader struct {
	pool     *pool.StrategyPool
	engine   *position.Engine
	exchange ports.Exchange

	recorder Recorder
	notifier Notifier

	mu       sync.Mutex
	active   map[timeframe.Timeframe]bool
	inCycle  bool
	midCycle map[timeframe.Timeframe]bool
	last     *CycleReport

	now func() time.Time
}

func New(p *pool.StrategyPool, engine *position.Engine, exchange ports.Exchange) *Trader {
	t := &Trader{
		pool:     p,
		engine:   engine,
		exchange: exchange,
		active:   make(map[timeframe.Timeframe]bool),
		now:      time.Now,
	}
	for _, tf := range p.AllTimeframes() {
		t.active[tf] = false
	}
	return t
}

func (t *Trader) SetRecorder(r Recorder) { t.recorder = r }

func (t *Trader) SetNotifier(n Notifier) { t.notifier = n }

// Activate 标记周期在下一次 RunCycle 中参与实时计算。
// 无法识别的周期返回错误；没有策略使用的合法周期被接受但不会影响任何品种。
func (t *Trader) Activate(tf timeframe.Timeframe) error {
	if !tf.Valid() {
		return fmt.Errorf("activate: 不支持的 timeframe %q", tf)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	already := t.active[tf]
	t.active[tf] = true
	if t.inCycle {
		if t.midCycle == nil {
			t.midCycle = make(map[timeframe.Timeframe]bool)
		}
		t.midCycle[tf] = true
	}
	metrics.Activations.WithLabelValues(tf.String()).Inc()
	if !already {
		traderLog.Debugf("激活周期 %s", tf)
	}
	return nil
}

// ActiveTimeframes 当前处于激活状态的周期（升序）
func (t *Trader) ActiveTimeframes() []timeframe.Timeframe {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeLocked()
}

func (t *Trader) activeLocked() []timeframe.Timeframe {
	out := make([]timeframe.Timeframe, 0, len(t.active))
	for tf, on := range t.active {
		if on {
			out = append(out, tf)
		}
	}
	timeframe.Sort(out)
	return out
}

// begin 取得本周期的激活快照；已有周期在运行时返回 ErrCycleInProgress
func (t *Trader) begin() ([]timeframe.Timeframe, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inCycle {
		return nil, ErrCycleInProgress
	}
	snapshot := t.activeLocked()
	if len(snapshot) == 0 {
		return nil, nil
	}
	t.inCycle = true
	t.midCycle = make(map[timeframe.Timeframe]bool)
	return snapshot, nil
}

// reset 清除除周期进行中新到达激活之外的所有标志
func (t *Trader) reset(report *CycleReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for tf := range t.active {
		if !t.midCycle[tf] {
			t.active[tf] = false
		}
	}
	t.inCycle = false
	t.midCycle = nil
	t.last = report
}

// RunCycle 交易周期：
//  1. 没有激活的周期时直接返回，不调用交易所
//  2. 每个品种：活跃周期 = 全局激活 ∩ 品种周期；为空则跳过该品种
//  3. 非活跃周期 = 品种周期 - 活跃周期
//  4. 轧差；delta 非 0 时下单并重新查询仓位
//  5. 结束时（包括出错）复位激活状态
//
// 单个品种失败不影响其他品种，所有失败通过 errors.Join 返回。
func (t *Trader) RunCycle(ctx context.Context) (*CycleReport, error) {
	snapshot, err := t.begin()
	if err != nil {
		metrics.Cycles.WithLabelValues("busy").Inc()
		traderLog.Warn("上一个交易周期仍在运行，跳过本次")
		return nil, err
	}
	if len(snapshot) == 0 {
		metrics.Cycles.WithLabelValues("idle").Inc()
		traderLog.Debug("没有激活的周期")
		return &CycleReport{Started: t.now(), Finished: t.now()}, nil
	}

	report := &CycleReport{Started: t.now(), Active: snapshot}
	defer t.reset(report)

	traderLog.Infof("交易周期开始 active=%v", snapshot)
	var errs []error
	for _, instr := range t.pool.Instruments() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("cycle aborted before %s: %w", instr, err))
			break
		}
		res := t.runInstrument(ctx, instr, snapshot)
		report.Instruments = append(report.Instruments, res)
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", instr, res.err))
		}
	}

	report.Finished = t.now()
	cycleErr := errors.Join(errs...)
	if cycleErr != nil {
		report.Error = cycleErr.Error()
		metrics.Cycles.WithLabelValues("error").Inc()
	} else {
		metrics.Cycles.WithLabelValues("ok").Inc()
	}
	metrics.CycleDuration.Observe(report.Finished.Sub(report.Started).Seconds())
	traderLog.Infof("交易周期结束 耗时=%s 失败品种=%d", report.Finished.Sub(report.Started).Round(time.Millisecond), len(errs))
	return report, cycleErr
}

func (t *Trader) runInstrument(ctx context.Context, instr string, snapshot []timeframe.Timeframe) InstrumentResult {
	res := InstrumentResult{Instrument: instr}
	active, inactive := splitTimeframes(t.pool.TimeframesFor(instr), snapshot)
	if len(active) == 0 {
		res.Skipped = true
		return res
	}
	res.Active, res.Inactive = active, inactive

	entry := traderLog.WithFields(logrus.Fields{"instrument": instr, "active": active, "inactive": inactive})

	n, err := t.engine.NetDeltaFor(ctx, instr, active, inactive)
	res.Target, res.Current, res.Delta = n.Target, n.Current, n.Delta
	if err != nil {
		return t.fail(ctx, entry, res, err)
	}
	if n.Delta == 0 {
		entry.Info("仓位已在目标，无需下单")
		return res
	}

	conf, err := t.dispatch(ctx, instr, n.Delta)
	if err != nil {
		return t.fail(ctx, entry.WithField("qty", n.Delta), res, err)
	}
	res.OrderID = conf.OrderID
	res.Order = conf.Request.String()
	metrics.Orders.WithLabelValues(instr, string(conf.Request.Side), string(conf.Request.Type)).Inc()
	entry.WithField("order_id", conf.OrderID).Infof("✅ 下单成功 %s", conf.Request)
	t.notify(ctx, fmt.Sprintf("✅ %s 下单 %s id=%s", instr, conf.Request, conf.OrderID))

	after, err := t.exchange.FetchCurrentPosition(ctx, instr)
	if err != nil {
		entry.WithError(err).Warn("下单后查询仓位失败")
		return res
	}
	res.PositionAfter = &after
	entry.Infof("下单后仓位 %v", after)
	return res
}

func (t *Trader) fail(ctx context.Context, entry *logrus.Entry, res InstrumentResult, err error) InstrumentResult {
	res.err = err
	res.Error = err.Error()
	metrics.InstrumentErrors.WithLabelValues(res.Instrument).Inc()
	entry.WithFields(logrus.Fields{"target": res.Target, "current": res.Current, "delta": res.Delta}).
		WithError(err).Error("品种交易失败")
	t.notify(ctx, fmt.Sprintf("❌ %s 交易失败 active=%v: %v", res.Instrument, res.Active, err))
	return res
}

func (t *Trader) notify(ctx context.Context, text string) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Notify(ctx, text); err != nil {
		traderLog.WithError(err).Warn("发送通知失败")
	}
}

// splitTimeframes 品种周期按全局激活集合拆成活跃/非活跃两部分，均保持升序
func splitTimeframes(instrTFs, globalActive []timeframe.Timeframe) (active, inactive []timeframe.Timeframe) {
	on := make(map[timeframe.Timeframe]bool, len(globalActive))
	for _, tf := range globalActive {
		on[tf] = true
	}
	for _, tf := range instrTFs {
		if on[tf] {
			active = append(active, tf)
		} else {
			inactive = append(inactive, tf)
		}
	}
	return active, inactive
}
