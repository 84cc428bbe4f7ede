package strategies

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/betbot/quanttrader/internal/ports"
	"github.com/betbot/quanttrader/pkg/config"
	"github.com/betbot/quanttrader/pkg/signallog"
)

// Deps 构建策略所需的外部依赖
type Deps struct {
	Data  ports.MarketData
	Store signallog.Store
}

// Build 按配置顺序创建全部策略，并各自实时计算一次信号用于预热缓存。
// 预热并发执行（最多 concurrency 个），任一失败则整体失败。
func Build(ctx context.Context, cfgs []config.StrategyConfig, deps Deps, concurrency int) ([]Strategy, error) {
	out := make([]Strategy, len(cfgs))
	for i, cfg := range cfgs {
		alpha, err := NewAlpha(cfg.Type)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", cfg.Key(), err)
		}
		out[i] = New(cfg, alpha, deps.Data, deps.Store)
	}

	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, s := range out {
		s := s
		g.Go(func() error {
			v, err := s.Signal(gctx)
			if err != nil {
				return fmt.Errorf("预热策略 %s 失败: %w", s.Key(), err)
			}
			if math.IsNaN(v) {
				strategyLog.WithField("strategy", s.Key()).Warn("预热得到 NaN 信号，非活跃周期读取缓存时可能失败")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	strategyLog.Infof("✅ %d 个策略预热完成", len(out))
	return out, nil
}
