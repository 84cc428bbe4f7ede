package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quanttrader"

var (
	// Cycles 交易周期计数，result: ok / error / idle / busy
	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Trading cycles by result",
	}, []string{"result"})

	Activations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activations_total",
		Help:      "Timeframe activations received",
	}, []string{"timeframe"})

	Orders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_total",
		Help:      "Orders placed",
	}, []string{"instrument", "side", "type"})

	InstrumentErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "instrument_errors_total",
		Help:      "Per-instrument cycle failures",
	}, []string{"instrument"})

	// Signal 最近一次读取到的策略信号（live 或 cached）
	Signal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "signal",
		Help:      "Last effective signal per strategy",
	}, []string{"strategy"})

	TargetPosition = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "target_position",
		Help:      "Last netted target position per instrument",
	}, []string{"instrument"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of non-idle trading cycles",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	})
)
