package metrics

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the registry and the counters the handlers and workers
// share. One instance per process, wired through the server.
type Metrics struct {
    Registry *prometheus.Registry

    HTTPRequests      *prometheus.CounterVec
    HTTPDuration      *prometheus.HistogramVec
    ManifestRows      *prometheus.CounterVec
    GeofenceChecks    *prometheus.CounterVec
    Completions       prometheus.Counter
    DualWriteWarnings prometheus.Counter
    NotifyDeliveries  *prometheus.CounterVec
    OptimizerCalls    *prometheus.CounterVec
    PositionsIngested prometheus.Counter
}

func New() *Metrics {
    m := &Metrics{Registry: prometheus.NewRegistry()}

    m.HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "dispatchd_http_requests_total",
        Help: "HTTP requests by method and path.",
    }, []string{"method", "path"})
    m.HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
        Name:    "dispatchd_http_request_seconds",
        Help:    "HTTP request latency.",
        Buckets: prometheus.DefBuckets,
    }, []string{"method", "path"})
    m.ManifestRows = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "dispatchd_manifest_rows_total",
        Help: "Manifest rows by match outcome.",
    }, []string{"outcome"})
    m.GeofenceChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "dispatchd_geofence_checks_total",
        Help: "Geofence validations by result.",
    }, []string{"result"})
    m.Completions = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "dispatchd_deliveries_completed_total",
        Help: "Successful delivery completions.",
    })
    m.DualWriteWarnings = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "dispatchd_completion_stop_write_warnings_total",
        Help: "Completions where the stop write failed after the order write succeeded.",
    })
    m.NotifyDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "dispatchd_notifications_total",
        Help: "Notification attempts by outcome.",
    }, []string{"outcome"})
    m.OptimizerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "dispatchd_optimizer_calls_total",
        Help: "Directions provider calls by outcome.",
    }, []string{"outcome"})
    m.PositionsIngested = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "dispatchd_positions_ingested_total",
        Help: "Driver position updates accepted.",
    })

    m.Registry.MustRegister(
        collectors.NewGoCollector(),
        collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
        m.HTTPRequests, m.HTTPDuration, m.ManifestRows, m.GeofenceChecks,
        m.Completions, m.DualWriteWarnings, m.NotifyDeliveries,
        m.OptimizerCalls, m.PositionsIngested,
    )
    return m
}
