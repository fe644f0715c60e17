package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    runsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookletd",
            Name:      "runs_total",
            Help:      "Booklet runs by mode and result (success or error kind)",
        },
        []string{"mode", "result"},
    )

    runLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "bookletd",
            Name:      "run_duration_seconds",
            Help:      "Duration of booklet runs by mode",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"mode"},
    )

    sheetsComposed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookletd",
            Name:      "sheets_composed_total",
            Help:      "Output sheets written by mode",
        },
        []string{"mode"},
    )

    blankPages = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "bookletd",
            Name:      "blank_pages_added_total",
            Help:      "Padding pages added by the normalizer",
        },
    )

    jobsProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "bookletd",
            Name:      "jobs_processed_total",
            Help:      "Queued jobs by result (success, failed, cancelled)",
        },
        []string{"result"},
    )

    queueDepth = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Namespace: "bookletd",
            Name:      "queue_depth",
            Help:      "Queue depth gauges for stream, pending and delayed",
        },
        []string{"type"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(runsTotal, runLatency, sheetsComposed, blankPages, jobsProcessed, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// ObserveRun records one pipeline run. result is "success" or an error kind.
func ObserveRun(mode, result string, dur time.Duration, sheets, blanks int) {
    runsTotal.WithLabelValues(mode, result).Inc()
    runLatency.WithLabelValues(mode).Observe(dur.Seconds())
    if sheets > 0 { sheetsComposed.WithLabelValues(mode).Add(float64(sheets)) }
    if blanks > 0 { blankPages.Add(float64(blanks)) }
}

func IncJob(result string) { jobsProcessed.WithLabelValues(result).Inc() }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
