package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docstream"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	phaseDuration  *prom.HistogramVec
	runDuration    prom.Histogram
	runOutcome     *prom.CounterVec
	sections       *prom.CounterVec
	streamClients  prom.Gauge
	streamMessages *prom.CounterVec
	dropped        prom.Counter
	disconnects    *prom.CounterVec
	aiRequests     *prom.CounterVec
	aiDuration     *prom.HistogramVec
	exportDuration *prom.HistogramVec
	exportResults  *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.phaseDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of individual generation phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total generation run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Generation runs by final status",
		}, []string{"outcome"})
		pr.sections = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sections_rendered_total",
			Help:      "Rendered sections by type",
		}, []string{"type"})
		pr.streamClients = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Currently connected live viewers",
		})
		pr.streamMessages = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stream_messages_total",
			Help:      "Published stream messages by event",
		}, []string{"event"})
		pr.dropped = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stream_dropped_messages_total",
			Help:      "Non-critical messages dropped from full client outboxes",
		})
		pr.disconnects = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stream_disconnects_total",
			Help:      "Client disconnects by reason",
		}, []string{"reason"})
		pr.aiRequests = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "AI enhancement requests by provider and result",
		}, []string{"provider", "result"})
		pr.aiDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "AI enhancement duration including retries",
			Buckets:   prom.DefBuckets,
		}, []string{"provider"})
		pr.exportDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Duration of individual export formats",
			Buckets:   prom.DefBuckets,
		}, []string{"format"})
		pr.exportResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "export_results_total",
			Help:      "Export results by format",
		}, []string{"format", "result"})
		reg.MustRegister(pr.phaseDuration, pr.runDuration, pr.runOutcome, pr.sections, pr.streamClients,
			pr.streamMessages, pr.dropped, pr.disconnects, pr.aiRequests, pr.aiDuration, pr.exportDuration, pr.exportResults)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil || p.phaseDuration == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(result ResultLabel) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncSectionRendered(sectionType string) {
	if p == nil || p.sections == nil {
		return
	}
	p.sections.WithLabelValues(sectionType).Inc()
}

func (p *PrometheusRecorder) SetStreamClients(n int) {
	if p == nil || p.streamClients == nil {
		return
	}
	p.streamClients.Set(float64(n))
}

func (p *PrometheusRecorder) IncStreamMessage(event string) {
	if p == nil || p.streamMessages == nil {
		return
	}
	p.streamMessages.WithLabelValues(event).Inc()
}

func (p *PrometheusRecorder) IncDroppedMessage() {
	if p == nil || p.dropped == nil {
		return
	}
	p.dropped.Inc()
}

func (p *PrometheusRecorder) IncDisconnect(reason DisconnectReason) {
	if p == nil || p.disconnects == nil {
		return
	}
	p.disconnects.WithLabelValues(string(reason)).Inc()
}

func (p *PrometheusRecorder) IncAIRequest(provider string, result ResultLabel) {
	if p == nil || p.aiRequests == nil {
		return
	}
	p.aiRequests.WithLabelValues(provider, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveAIDuration(provider string, d time.Duration) {
	if p == nil || p.aiDuration == nil {
		return
	}
	p.aiDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveExportDuration(format string, d time.Duration) {
	if p == nil || p.exportDuration == nil {
		return
	}
	p.exportDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncExportResult(format string, result ResultLabel) {
	if p == nil || p.exportResults == nil {
		return
	}
	p.exportResults.WithLabelValues(format, string(result)).Inc()
}
