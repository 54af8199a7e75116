package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)
	AIFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_failures_total",
			Help: "AI calls that failed after retries, by provider, operation and reason",
		},
		[]string{"provider", "operation", "reason"},
	)

	AnswersScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answers_scored_total",
			Help: "Answers scored by the heuristic scorer, by tone",
		},
		[]string{"tone"},
	)
	ConfidenceScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "answer_confidence_score",
			Help:    "Distribution of heuristic confidence scores ([0,100])",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
	QuestionFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "question_fallbacks_total",
			Help: "Generated questions replaced by the static bank, by session mode",
		},
		[]string{"mode"},
	)
	TranscriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcriptions_total",
			Help: "Audio transcriptions by result",
		},
		[]string{"result"},
	)
	QuotaRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_quota_rejections_total",
			Help: "Requests rejected by the per-user AI quota",
		},
		[]string{"operation"},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Events published to the broker, by topic and result",
		},
		[]string{"topic", "result"},
	)
	EventsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "events_processing",
			Help: "Number of events currently being processed",
		},
		[]string{"type"},
	)
	EventsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_completed_total",
			Help: "Total number of events processed successfully",
		},
		[]string{"type"},
	)
	EventsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_failed_total",
			Help: "Total number of events sent to the dead letter topic",
		},
		[]string{"type"},
	)
	SessionsPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_purged_total",
			Help: "Sessions removed by the retention job",
		},
	)
	ConfidenceDrift = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "answer_confidence_drift",
			Help: "Absolute drift of the rolling mean confidence from its baseline",
		},
		[]string{"segment"},
	)
)

var initOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestDuration,
			AIFailuresTotal,
			AnswersScoredTotal,
			ConfidenceScoreHistogram,
			QuestionFallbacksTotal,
			TranscriptionsTotal,
			QuotaRejectionsTotal,
			EventsPublishedTotal,
			EventsProcessing,
			EventsCompletedTotal,
			EventsFailedTotal,
			SessionsPurgedTotal,
			ConfidenceDrift,
		)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveAICall records one provider round trip.
func ObserveAICall(provider, operation string, started time.Time) {
	AIRequestsTotal.WithLabelValues(provider, operation).Inc()
	AIRequestDuration.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
}

// FailAICall records a provider call that gave up.
func FailAICall(provider, operation, reason string) {
	AIFailuresTotal.WithLabelValues(provider, operation, reason).Inc()
}

// ObserveAnswerScored records the heuristic outcome for one answer.
func ObserveAnswerScored(tone string, confidence float64) {
	AnswersScoredTotal.WithLabelValues(tone).Inc()
	if confidence >= 0 && confidence <= 100 {
		ConfidenceScoreHistogram.Observe(confidence)
	}
}

func RecordQuestionFallback(mode string) {
	QuestionFallbacksTotal.WithLabelValues(mode).Inc()
}

func RecordTranscription(result string) {
	TranscriptionsTotal.WithLabelValues(result).Inc()
}

func RecordQuotaRejection(operation string) {
	QuotaRejectionsTotal.WithLabelValues(operation).Inc()
}

func RecordPublish(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublishedTotal.WithLabelValues(topic, result).Inc()
}

func StartProcessingEvent(eventType string) {
	EventsProcessing.WithLabelValues(eventType).Inc()
}

func CompleteEvent(eventType string) {
	EventsProcessing.WithLabelValues(eventType).Dec()
	EventsCompletedTotal.WithLabelValues(eventType).Inc()
}

func FailEvent(eventType string) {
	EventsProcessing.WithLabelValues(eventType).Dec()
	EventsFailedTotal.WithLabelValues(eventType).Inc()
}

func RecordSessionsPurged(n int64) {
	if n > 0 {
		SessionsPurgedTotal.Add(float64(n))
	}
}
