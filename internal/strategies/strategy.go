package strategies

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/internal/ports"
	"github.com/betbot/quanttrader/pkg/config"
	"github.com/betbot/quanttrader/pkg/signallog"
	"github.com/betbot/quanttrader/pkg/timeframe"
	"github.com/betbot/quanttrader/pkg/timeseries"
)

var strategyLog = logrus.WithField("component", "strategy")

// Alpha 策略变体：取原始序列（价格或资金费率）+ 单组参数下的逐 bar 信号。
// ComputeSignal 必须是无状态的纯函数，信号取值 [-1, 1]，无法计算的 bar 为 NaN。
type Alpha interface {
	FetchAlpha(ctx context.Context, data ports.MarketData, instrument string, tf timeframe.Timeframe, limit int) (timeseries.Series, error)
	ComputeSignal(alpha timeseries.Series, params config.ParamSet) timeseries.Series
}

// Strategy 交易层使用的策略
type Strategy interface {
	ID() int
	Name() string
	Key() string
	Instrument() string
	Timeframe() timeframe.Timeframe
	MaxPosition() float64
	OrderType() domain.OrderType
	// Signal 实时计算：取数、逐参数组计算并落盘、聚合后返回最新值（可能为 NaN）
	Signal(ctx context.Context) (float64, error)
	// CachedSignal 读取最近一次落盘的聚合信号；从未落盘过返回 domain.ErrMissingCache
	CachedSignal(ctx context.Context) (float64, error)
}

// Signaler 绑定一份 StrategyConfig 与一个数据源的策略实例
type Signaler struct {
	cfg       config.StrategyConfig
	alpha     Alpha
	data      ports.MarketData
	store     signallog.Store
	maxWindow int
}

var _ Strategy = (*Signaler)(nil)

// New 创建策略实例（不触发取数）
func New(cfg config.StrategyConfig, alpha Alpha, data ports.MarketData, store signallog.Store) *Signaler {
	return &Signaler{
		cfg:       cfg,
		alpha:     alpha,
		data:      data,
		store:     store,
		maxWindow: cfg.MaxWindow(),
	}
}

func (s *Signaler) ID() int                        { return s.cfg.ID }
func (s *Signaler) Name() string                   { return s.cfg.Name }
func (s *Signaler) Key() string                    { return s.cfg.Key() }
func (s *Signaler) Instrument() string             { return s.cfg.Symbol }
func (s *Signaler) Timeframe() timeframe.Timeframe { return s.cfg.Timeframe }
func (s *Signaler) MaxPosition() float64           { return s.cfg.MaxAbsPos }
func (s *Signaler) OrderType() domain.OrderType    { return s.cfg.OrderType }
func (s *Signaler) MaxWindow() int                 { return s.maxWindow }
func (s *Signaler) Config() config.StrategyConfig  { return s.cfg }

// ParamKey 单组参数的信号日志 key
func ParamKey(cfg config.StrategyConfig, p config.ParamSet) string {
	return fmt.Sprintf("%s_w%d_t%s", cfg.Key(), p.Window, strconv.FormatFloat(p.Threshold, 'g', -1, 64))
}

// Signal 聚合流程：
//  1. 每次评估只取一次数
//  2. 逐参数组计算信号并写入 (策略, 参数组) 日志
//  3. 按时间戳对各参数组取均值（跳过 NaN；全部缺失则为 NaN）
//  4. 聚合序列写入策略日志
//  5. 返回聚合序列最新值
//
// 参数组日志先于聚合写入，即使聚合值随后被拒绝也保留审计记录。
func (s *Signaler) Signal(ctx context.Context) (float64, error) {
	entry := strategyLog.WithFields(logrus.Fields{"strategy": s.Key(), "id": s.cfg.ID})

	alpha, err := s.alpha.FetchAlpha(ctx, s.data, s.cfg.Symbol, s.cfg.Timeframe, s.maxWindow)
	if err != nil {
		return math.NaN(), fmt.Errorf("strategy %s fetch alpha: %w", s.Key(), err)
	}

	perParam := make([]timeseries.Series, 0, len(s.cfg.Params))
	for _, p := range s.cfg.Params {
		sig := s.alpha.ComputeSignal(alpha, p)
		if _, err := s.store.Append(ctx, ParamKey(s.cfg, p), sig); err != nil {
			return math.NaN(), fmt.Errorf("strategy %s persist param signal: %w", s.Key(), err)
		}
		perParam = append(perParam, sig)
	}

	agg := timeseries.MeanAcross(perParam...)
	if _, err := s.store.Append(ctx, s.Key(), agg); err != nil {
		return math.NaN(), fmt.Errorf("strategy %s persist signal: %w", s.Key(), err)
	}

	last, ok := agg.Last()
	if !ok {
		entry.Warn("信号序列为空")
		return math.NaN(), nil
	}
	entry.WithField("bar", last.Time.Format("2006-01-02 15:04")).Infof("%s %.4f", Label(last.Value), last.Value)
	return last.Value, nil
}

// CachedSignal 读取最近一次持久化的聚合信号
func (s *Signaler) CachedSignal(ctx context.Context) (float64, error) {
	p, err := s.store.Last(ctx, s.Key())
	if err != nil {
		if errors.Is(err, signallog.ErrNotExists) {
			return math.NaN(), fmt.Errorf("%w: %s", domain.ErrMissingCache, s.Key())
		}
		return math.NaN(), fmt.Errorf("strategy %s load cached signal: %w", s.Key(), err)
	}
	return p.Value, nil
}

// Label 信号方向标签
func Label(v float64) string {
	switch {
	case math.IsNaN(v):
		return "[ NaN ]"
	case v > 0:
		return "[ LONG ]"
	case v < 0:
		return "[ SHORT ]"
	default:
		return "[ NEUTRAL ]"
	}
}
