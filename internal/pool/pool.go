// Package pool 按 instrument → timeframe 组织策略实例。
package pool

import (
	"sync"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/pkg/timeframe"
)

// StrategyPool 启动时一次性填充，之后只读。
// 每个策略只属于一个 (instrument, timeframe) 桶，桶内保持注册顺序。
type StrategyPool struct {
	mu          sync.RWMutex
	buckets     map[string]map[timeframe.Timeframe][]strategies.Strategy
	instruments []string
	count       int
}

func New() *StrategyPool {
	return &StrategyPool{buckets: make(map[string]map[timeframe.Timeframe][]strategies.Strategy)}
}

// FromStrategies 按给定顺序注册
func FromStrategies(list []strategies.Strategy) *StrategyPool {
	p := New()
	for _, s := range list {
		p.Register(s)
	}
	return p
}

func (p *StrategyPool) Register(s strategies.Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()

	instr := s.Instrument()
	byTF, ok := p.buckets[instr]
	if !ok {
		byTF = make(map[timeframe.Timeframe][]strategies.Strategy)
		p.buckets[instr] = byTF
		p.instruments = append(p.instruments, instr)
	}
	byTF[s.Timeframe()] = append(byTF[s.Timeframe()], s)
	p.count++
}

// TimeframesFor 该品种注册过的周期，按时长升序；未知品种返回空
func (p *StrategyPool) TimeframesFor(instrument string) []timeframe.Timeframe {
	p.mu.RLock()
	defer p.mu.RUnlock()

	byTF := p.buckets[instrument]
	out := make([]timeframe.Timeframe, 0, len(byTF))
	for tf := range byTF {
		out = append(out, tf)
	}
	timeframe.Sort(out)
	return out
}

// AllTimeframes 全部品种周期的并集，去重后升序
func (p *StrategyPool) AllTimeframes() []timeframe.Timeframe {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []timeframe.Timeframe
	for _, byTF := range p.buckets {
		for tf := range byTF {
			out = append(out, tf)
		}
	}
	return timeframe.Dedupe(out)
}

// Instruments 按首次注册顺序
func (p *StrategyPool) Instruments() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.instruments...)
}

func (p *StrategyPool) Strategies(instrument string, tf timeframe.Timeframe) []strategies.Strategy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]strategies.Strategy(nil), p.buckets[instrument][tf]...)
}

// All 全部策略：品种按注册顺序，周期升序，桶内按注册顺序
func (p *StrategyPool) All() []strategies.Strategy {
	out := make([]strategies.Strategy, 0, p.Len())
	for _, instr := range p.Instruments() {
		for _, tf := range p.TimeframesFor(instr) {
			out = append(out, p.Strategies(instr, tf)...)
		}
	}
	return out
}

func (p *StrategyPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.count
}

// OrderTypeFor 品种下单类型取最短周期桶里第一个策略的配置；未知品种返回 false
func (p *StrategyPool) OrderTypeFor(instrument string) (domain.OrderType, bool) {
	for _, tf := range p.TimeframesFor(instrument) {
		if ss := p.Strategies(instrument, tf); len(ss) > 0 {
			return ss[0].OrderType(), true
		}
	}
	return "", false
}

// Layout 品种 → 周期 → 策略 key，用于状态输出
func (p *StrategyPool) Layout() map[string]map[timeframe.Timeframe][]string {
	out := make(map[string]map[timeframe.Timeframe][]string)
	for _, instr := range p.Instruments() {
		byTF := make(map[timeframe.Timeframe][]string)
		for _, tf := range p.TimeframesFor(instr) {
			for _, s := range p.Strategies(instr, tf) {
				byTF[tf] = append(byTF[tf], s.Key())
			}
		}
		out[instr] = byTF
	}
	return out
}
