package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/betbot/quanttrader/internal/journal"
	"github.com/betbot/quanttrader/internal/metrics"
	"github.com/betbot/quanttrader/internal/notify"
	"github.com/betbot/quanttrader/internal/pool"
	"github.com/betbot/quanttrader/internal/ports"
	"github.com/betbot/quanttrader/internal/position"
	"github.com/betbot/quanttrader/internal/scheduler"
	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/internal/trader"
	"github.com/betbot/quanttrader/pkg/bybit"
	"github.com/betbot/quanttrader/pkg/config"
	"github.com/betbot/quanttrader/pkg/logger"
	"github.com/betbot/quanttrader/pkg/paper"
	"github.com/betbot/quanttrader/pkg/shutdown"
	"github.com/betbot/quanttrader/pkg/signallog"
)

const gracefulShutdownPeriod = 10 * time.Second

func newRunCmd(configPath *string) *cobra.Command {
	var live, confirmLive bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "启动交易守护进程",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if live && !confirmLive {
				return fmt.Errorf("--live 需要同时指定 --confirm-live")
			}
			cfg, err := config.LoadFromFile(*configPath)
			if err != nil {
				return err
			}
			if live {
				cfg.Exchange.Demo = false
				cfg.DryRun = false
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, cfg)
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "使用实盘 endpoint（覆盖 exchange.demo 与 dry_run）")
	cmd.Flags().BoolVar(&confirmLive, "confirm-live", false, "确认实盘交易")
	return cmd
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Dir:        cfg.Log.Dir,
		Daily:      cfg.Log.Daily,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	logStartup(cfg)

	mgr := shutdown.NewManager()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
		defer cancel()
		mgr.Shutdown(shutdownCtx)
	}()

	var recorder *journal.Journal
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		recorder = j
		mgr.OnShutdown("journal", func(context.Context) error { return j.Close() })
	}

	store, err := signallog.Open(signallog.Options{Backend: cfg.SignalStore.Backend, Path: cfg.SignalStore.Path})
	if err != nil {
		return fmt.Errorf("打开信号存储失败: %w", err)
	}
	mgr.OnShutdown("signal store", func(context.Context) error { return store.Close() })

	client := bybit.New(bybit.Options{
		BaseURL:    cfg.Exchange.BaseURL,
		Demo:       cfg.Exchange.Demo,
		APIKey:     cfg.Credentials.APIKey,
		APISecret:  cfg.Credentials.APISecret,
		RecvWindow: cfg.Exchange.RecvWindow,
		RateLimit:  cfg.Exchange.RateLimit,
		Timeout:    cfg.Exchange.Timeout,
	})
	var exchange ports.Exchange = client
	if cfg.DryRun {
		exchange = paper.New(client)
	}

	list, err := strategies.Build(ctx, cfg.Strategies, strategies.Deps{Data: client, Store: store}, cfg.Schedule.WarmupConcurrency)
	if err != nil {
		return err
	}
	p := pool.FromStrategies(list)
	tr := trader.New(p, position.NewEngine(p, exchange), exchange)
	if recorder != nil {
		tr.SetRecorder(recorder)
	}
	if cfg.Notify.Telegram {
		tr.SetNotifier(notify.New(cfg.Credentials.TelegramToken, cfg.Credentials.TelegramChatID))
	}

	if cfg.HTTP.Addr != "" {
		srv, err := metrics.StartAsync(ctx, cfg.HTTP.Addr, tr)
		if err != nil {
			return fmt.Errorf("启动状态服务失败: %w", err)
		}
		mgr.OnShutdown("status server", srv.Shutdown)
	}

	for _, instr := range p.Instruments() {
		logrus.Infof("📈 %s timeframes=%v", instr, p.TimeframesFor(instr))
	}
	logrus.Info("✅ 交易守护进程已启动，按 Ctrl+C 停止")

	sched := scheduler.New(tr, scheduler.Config{
		Timeframes:    p.AllTimeframes(),
		CycleInterval: cfg.Schedule.CycleInterval,
		CycleTimeout:  cfg.Schedule.CycleTimeout,
	})
	err = sched.Run(ctx)
	logrus.Info("收到停止信号，正在关闭...")
	return err
}

func logStartup(cfg *config.Config) {
	mode := "实盘"
	switch {
	case cfg.DryRun:
		mode = "纸交易"
	case cfg.Exchange.Demo:
		mode = "demo"
	}
	logrus.WithFields(logrus.Fields{
		"mode":       mode,
		"strategies": len(cfg.Strategies),
		"store":      cfg.SignalStore.Backend,
	}).Info("🚀 quanttrader 启动")

	for sym, total := range config.AbsMaxPositions(cfg.Strategies) {
		if total > 1 {
			logrus.Warnf("%s 的 Σmax_abs_pos=%g 超过 1，合计敞口不做截断", sym, total)
		}
	}
	if conflicts := config.OrderTypeConflicts(cfg.Strategies); len(conflicts) > 0 {
		logrus.Warnf("以下交易对的 order_type 不一致，将使用最短周期的第一个策略: %v", conflicts)
	}
}
