package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "datamap_"

	resultSuccess   = "success"
	resultError     = "error"
	resultDiscarded = "discarded"
	resultRejected  = "rejected"
)

var (
	registerOnce sync.Once

	suggestionRequests *prometheus.CounterVec
	suggestionLatency  *prometheus.HistogramVec
	staleResponses     prometheus.Counter

	mergedRows *prometheus.CounterVec

	submissionTotal   *prometheus.CounterVec
	submissionLatency *prometheus.HistogramVec

	hydrationTotal   *prometheus.CounterVec
	hydrationLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	activeSessions prometheus.Gauge
	evictedTotal   prometheus.Counter

	catalogReloads *prometheus.CounterVec
)

// Init registers mapping metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		suggestionRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "suggestion_requests_total",
				Help: "Total suggestion requests by result",
			},
			[]string{"result"},
		)
		suggestionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "suggestion_latency_seconds",
				Help:    "Suggestion source latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		staleResponses = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "suggestion_stale_responses_total",
				Help: "Suggestion responses discarded because the dataset changed",
			},
		)

		mergedRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "merged_rows_total",
				Help: "Rows appended from suggestions by merge mode",
			},
			[]string{"mode"},
		)

		submissionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "submission_total",
				Help: "Total mapping submissions by result",
			},
			[]string{"result"},
		)
		submissionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "submission_latency_seconds",
				Help:    "Mapping submission latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		hydrationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "hydration_total",
				Help: "Total session hydrations by result",
			},
			[]string{"result"},
		)
		hydrationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "hydration_latency_seconds",
				Help:    "Session hydration latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total mapping exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Mapping export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		activeSessions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sessions_active",
				Help: "Mapping sessions currently held in memory",
			},
		)
		evictedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "sessions_evicted_total",
				Help: "Idle mapping sessions evicted by the sweeper",
			},
		)

		catalogReloads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "catalog_reloads_total",
				Help: "Canonical field catalog reloads by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			suggestionRequests,
			suggestionLatency,
			staleResponses,
			mergedRows,
			submissionTotal,
			submissionLatency,
			hydrationTotal,
			hydrationLatency,
			exportTotal,
			exportLatency,
			activeSessions,
			evictedTotal,
			catalogReloads,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveSuggestionRequest records suggestion source latency and result.
func ObserveSuggestionRequest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if suggestionRequests != nil {
		suggestionRequests.WithLabelValues(result).Inc()
	}
	if suggestionLatency != nil {
		suggestionLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncStaleResponse counts a discarded out-of-date suggestion response.
func IncStaleResponse() {
	if staleResponses != nil {
		staleResponses.Inc()
	}
}

// AddMergedRows counts rows appended by a merge.
func AddMergedRows(mode string, count int) {
	if count <= 0 {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	if mergedRows != nil {
		mergedRows.WithLabelValues(mode).Add(float64(count))
	}
}

// ObserveSubmission records submission latency and result.
func ObserveSubmission(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if submissionTotal != nil {
		submissionTotal.WithLabelValues(result).Inc()
	}
	if submissionLatency != nil {
		submissionLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveHydration records hydration latency and result.
func ObserveHydration(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if hydrationTotal != nil {
		hydrationTotal.WithLabelValues(result).Inc()
	}
	if hydrationLatency != nil {
		hydrationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// SetActiveSessions sets the in-memory session gauge.
func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	if activeSessions != nil {
		activeSessions.Set(float64(count))
	}
}

// AddEvictedSessions counts sessions removed by the sweeper.
func AddEvictedSessions(count int) {
	if count <= 0 {
		return
	}
	if evictedTotal != nil {
		evictedTotal.Add(float64(count))
	}
}

// IncCatalogReload counts a catalog reload attempt.
func IncCatalogReload(result string) {
	if result == "" {
		result = resultSuccess
	}
	if catalogReloads != nil {
		catalogReloads.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess   = resultSuccess
	ResultError     = resultError
	ResultDiscarded = resultDiscarded
	ResultRejected  = resultRejected
)
