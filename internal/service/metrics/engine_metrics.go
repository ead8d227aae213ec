package metrics

import (
	"strconv"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	pkgmetrics "github.com/RiverSpider/PavelBot/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "engine"

// EngineMetrics records fan-out, classification and digest measurements.
type EngineMetrics struct {
	fetchLatency    *prometheus.HistogramVec
	fetchPartial    *prometheus.CounterVec
	accountFailures *prometheus.CounterVec
	malformed       *prometheus.CounterVec
	digests         *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

func NewEngineMetrics(reg *pkgmetrics.Registry) *EngineMetrics {
	return &EngineMetrics{
		fetchLatency: reg.HistogramVec(subsystem, "fetch_duration_seconds",
			"Duration of per-request account fan-outs", nil, "op"),
		fetchPartial: reg.CounterVec(subsystem, "fetch_with_failures_total",
			"Fan-outs where at least one account failed", "op"),
		accountFailures: reg.CounterVec(subsystem, "account_failures_total",
			"Per-account fetch failures by kind", "kind"),
		malformed: reg.CounterVec(subsystem, "malformed_operations_total",
			"Operations classified as Other because the payment was unusable"),
		digests: reg.CounterVec(subsystem, "digests_total",
			"Digests built for delivery", "kind", "ok"),
		latency: reg.HistogramVec(subsystem, "latency_seconds",
			"Latency of report operations", nil, "op"),
	}
}

func (m *EngineMetrics) RecordFetch(op string, seconds float64, failed int) {
	m.fetchLatency.WithLabelValues(op).Observe(seconds)
	if failed > 0 {
		m.fetchPartial.WithLabelValues(op).Inc()
	}
}

func (m *EngineMetrics) RecordAccountFailure(kind models.ErrorKind) {
	m.accountFailures.WithLabelValues(string(kind)).Inc()
}

func (m *EngineMetrics) RecordMalformed(count int) {
	if count <= 0 {
		return
	}
	m.malformed.WithLabelValues().Add(float64(count))
}

func (m *EngineMetrics) RecordDigest(kind models.DigestKind, ok bool) {
	m.digests.WithLabelValues(string(kind), strconv.FormatBool(ok)).Inc()
}

func (m *EngineMetrics) RecordLatency(op string, seconds float64) {
	m.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything; handy where metrics are disabled.
type Nop struct{}

func (Nop) RecordFetch(string, float64, int) {}
func (Nop) RecordAccountFailure(models.ErrorKind) {}
func (Nop) RecordMalformed(int) {}
func (Nop) RecordDigest(models.DigestKind, bool) {}
func (Nop) RecordLatency(string, float64) {}
