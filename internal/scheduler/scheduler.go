// Package scheduler 定时驱动交易编排：每个周期在 UTC 整点边界激活，交易周期按固定间隔运行。
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/betbot/quanttrader/internal/trader"
	"github.com/betbot/quanttrader/pkg/timeframe"
)

var schedLog = logrus.WithField("component", "scheduler")

// Orchestrator 调度器驱动的两个入口
type Orchestrator interface {
	Activate(tf timeframe.Timeframe) error
	RunCycle(ctx context.Context) (*trader.CycleReport, error)
}

type Config struct {
	Timeframes    []timeframe.Timeframe
	CycleInterval time.Duration
	CycleTimeout  time.Duration
}

// Scheduler 每个周期一个激活 goroutine + 一个交易周期 goroutine
type Scheduler struct {
	orch Orchestrator
	cfg  Config

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func New(orch Orchestrator, cfg Config) *Scheduler {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 10 * time.Second
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 50 * time.Second
	}
	cfg.Timeframes = timeframe.Dedupe(cfg.Timeframes)
	return &Scheduler{orch: orch, cfg: cfg, now: time.Now, after: time.After}
}

// Run 阻塞直到 ctx 取消；正常退出返回 nil
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, tf := range s.cfg.Timeframes {
		tf := tf
		g.Go(func() error { return s.runActivation(gctx, tf) })
	}
	g.Go(func() error { return s.runCycles(gctx) })

	schedLog.Infof("调度器已启动 timeframes=%v cycle=%s timeout=%s", s.cfg.Timeframes, s.cfg.CycleInterval, s.cfg.CycleTimeout)
	err := g.Wait()
	schedLog.Info("调度器已停止")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// UntilNextBoundary now 到该周期下一个 UTC 边界的等待时长（严格大于 0）
func UntilNextBoundary(tf timeframe.Timeframe, now time.Time) time.Duration {
	return tf.NextBoundary(now).Sub(now)
}

func (s *Scheduler) runActivation(ctx context.Context, tf timeframe.Timeframe) error {
	for {
		wait := UntilNextBoundary(tf, s.now())
		select {
		case <-ctx.Done():
			return nil
		case <-s.after(wait):
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := s.orch.Activate(tf); err != nil {
			return err
		}
		schedLog.Debugf("⏰ %s 到点", tf)
	}
}

func (s *Scheduler) runCycles(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.after(s.cfg.CycleInterval):
		}
		if ctx.Err() != nil {
			return nil
		}
		s.cycle(ctx)
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	if _, err := s.orch.RunCycle(cctx); err != nil {
		if errors.Is(err, trader.ErrCycleInProgress) {
			schedLog.Warn("交易周期重叠，等待下一次触发")
			return
		}
		schedLog.WithError(err).Error("交易周期失败")
	}
}
