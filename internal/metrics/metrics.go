// internal/metrics/metrics.go

// Package metrics 定義帳務操作的 Prometheus 指標。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics 收集操作次數、金額與計息帳戶數。nil 時所有方法為 no-op。
type Metrics struct {
	operations    *prometheus.CounterVec
	amount        *prometheus.CounterVec
	yieldAccounts prometheus.Counter
}

// New 在 reg 上註冊所有指標。
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankapp",
			Name:      "operations_total",
			Help:      "Account operations by kind and result.",
		}, []string{"op", "result"}),
		amount: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankapp",
			Name:      "amount_total",
			Help:      "Sum of successfully moved amounts by operation.",
		}, []string{"op"}),
		yieldAccounts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bankapp",
			Name:      "yield_accounts_total",
			Help:      "Savings accounts credited by yield runs.",
		}),
	}
}

// NewRegistry 建立含 Go runtime 與 process 指標的 registry。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 回傳 /metrics 的 HTTP handler。
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Observe 記錄一次操作的結果；成功時累加金額。
func (m *Metrics) Observe(op string, err error, amount decimal.Decimal) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
	if err == nil {
		m.amount.WithLabelValues(op).Add(amount.Abs().InexactFloat64())
	}
}

// YieldCredited 記錄本次計息入帳的帳戶數。
func (m *Metrics) YieldCredited(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.yieldAccounts.Add(float64(n))
}
