package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    analysesTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "printquote",
            Name:      "analyses_total",
            Help:      "Completed analyses by mode (inline, deferred) and result",
        },
        []string{"mode", "result"},
    )

    analysisDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "printquote",
            Name:      "analysis_duration_seconds",
            Help:      "End-to-end analysis duration by mode",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"mode"},
    )

    pipelineErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "printquote",
            Name:      "pipeline_errors_total",
            Help:      "Pipeline failures by error code",
        },
        []string{"code"},
    )

    downloadBytes = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "printquote",
            Name:      "download_bytes_total",
            Help:      "Total bytes downloaded from source URLs",
        },
    )

    quotesTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "printquote",
            Name:      "quotes_total",
            Help:      "Total price quotes computed",
        },
    )

    queueDepth = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "printquote",
            Name:      "queue_depth",
            Help:      "Number of pending deferred jobs",
        },
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(analysesTotal, analysisDuration, pipelineErrors, downloadBytes, quotesTotal, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveAnalysis(mode, result string, dur time.Duration) {
    analysesTotal.WithLabelValues(mode, result).Inc()
    analysisDuration.WithLabelValues(mode).Observe(dur.Seconds())
}

func IncPipelineError(code string) { pipelineErrors.WithLabelValues(code).Inc() }
func AddDownloadBytes(n int64)     { downloadBytes.Add(float64(n)) }
func IncQuote()                    { quotesTotal.Inc() }
func SetQueueDepth(v int64)        { queueDepth.Set(float64(v)) }
