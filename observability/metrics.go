package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// EscrowMetrics wraps collectors tracking escrow vault health.
type EscrowMetrics struct {
	openEscrows  prometheus.Gauge
	vaultBalance prometheus.Gauge
	disbursed    *prometheus.CounterVec
	pauseEngaged *prometheus.GaugeVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	escrowMetricsOnce sync.Once
	escrowRegistry    *EscrowMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blockmarket",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blockmarket",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "blockmarket",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blockmarket",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of module requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Escrow exposes the metrics registry for escrow instrumentation.
func Escrow() *EscrowMetrics {
	escrowMetricsOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			openEscrows: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "blockmarket",
				Subsystem: "escrow",
				Name:      "open_total",
				Help:      "Number of escrows holding funds that have not yet been disbursed.",
			}),
			vaultBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "blockmarket",
				Subsystem: "escrow",
				Name:      "vault_balance",
				Help:      "Funds currently held in the escrow vault account.",
			}),
			disbursed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blockmarket",
				Subsystem: "escrow",
				Name:      "disbursed_total",
				Help:      "Count of escrow disbursements segmented by outcome.",
			}, []string{"outcome"}),
			pauseEngaged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "blockmarket",
				Subsystem: "market",
				Name:      "pause_engaged",
				Help:      "Indicates whether a module pause guard is active (1) or not (0).",
			}, []string{"module"}),
		}
		prometheus.MustRegister(
			escrowRegistry.openEscrows,
			escrowRegistry.vaultBalance,
			escrowRegistry.disbursed,
			escrowRegistry.pauseEngaged,
		)
	})
	return escrowRegistry
}

// RecordOpenEscrows updates the open escrow gauge.
func (m *EscrowMetrics) RecordOpenEscrows(count int) {
	if m == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	m.openEscrows.Set(float64(count))
}

// RecordVaultBalance updates the vault balance gauge.
func (m *EscrowMetrics) RecordVaultBalance(balance *big.Int) {
	if m == nil {
		return
	}
	m.vaultBalance.Set(bigToFloat(balance))
}

// RecordDisbursement increments the disbursement counter. Outcome should be
// one of "released", "refunded", or "withdrawn".
func (m *EscrowMetrics) RecordDisbursement(outcome string) {
	if m == nil {
		return
	}
	if outcome = strings.TrimSpace(outcome); outcome == "" {
		outcome = "unknown"
	}
	m.disbursed.WithLabelValues(outcome).Inc()
}

// SetPause toggles the pause_engaged gauge for a module.
func (m *EscrowMetrics) SetPause(module string, engaged bool) {
	if m == nil {
		return
	}
	value := 0.0
	if engaged {
		value = 1
	}
	m.pauseEngaged.WithLabelValues(module).Set(value)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
