package trader

import (
	"time"

	"github.com/betbot/quanttrader/pkg/timeframe"
)

// CycleReport 一次交易周期的结果，供 /status 展示
type CycleReport struct {
	Started     time.Time             `json:"started"`
	Finished    time.Time             `json:"finished"`
	Active      []timeframe.Timeframe `json:"active"`
	Instruments []InstrumentResult    `json:"instruments,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// InstrumentResult 单个品种在本周期的处理结果
type InstrumentResult struct {
	Instrument    string                `json:"instrument"`
	Skipped       bool                  `json:"skipped,omitempty"`
	Active        []timeframe.Timeframe `json:"active,omitempty"`
	Inactive      []timeframe.Timeframe `json:"inactive,omitempty"`
	Target        float64               `json:"target"`
	Current       float64               `json:"current"`
	Delta         float64               `json:"delta"`
	Order         string                `json:"order,omitempty"`
	OrderID       string                `json:"order_id,omitempty"`
	PositionAfter *float64              `json:"position_after,omitempty"`
	Error         string                `json:"error,omitempty"`

	err error
}

// Status 运行状态快照
type Status struct {
	Active    []timeframe.Timeframe                       `json:"active"`
	InCycle   bool                                        `json:"in_cycle"`
	LastCycle *CycleReport                                `json:"last_cycle,omitempty"`
	Pool      map[string]map[timeframe.Timeframe][]string `json:"pool"`
}

func (t *Trader) Snapshot() Status {
	t.mu.Lock()
	st := Status{
		Active:    t.activeLocked(),
		InCycle:   t.inCycle,
		LastCycle: t.last,
	}
	t.mu.Unlock()
	st.Pool = t.pool.Layout()
	return st
}

// Status 实现 metrics.StatusProvider
func (t *Trader) Status() any { return t.Snapshot() }
