package main

import (
    "context"
    "log"
    "net/http"
    "os"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "dispatchd/internal/api"
    "dispatchd/internal/buildinfo"
    "dispatchd/internal/config"
)

func main() {
    lg := log.New(os.Stderr, "", log.LstdFlags)

    cfg, err := config.Load()
    if err != nil {
        lg.Fatalf("load config: %v", err)
    }
    srvDeps, err := api.NewServer(cfg, lg)
    if err != nil {
        lg.Fatalf("failed to init server: %v", err)
    }

    mux := http.NewServeMux()

    // Manifest import and orders
    mux.HandleFunc("/v1/manifests/import", srvDeps.ManifestImportHandler)
    mux.HandleFunc("/v1/orders", srvDeps.OrdersHandler)

    // Routes
    mux.HandleFunc("/v1/routes", srvDeps.RoutesIndexHandler)
    mux.HandleFunc("/v1/routes/", srvDeps.RouteByIDHandler) // includes /details, /stats, /optimize, /positions, /events/stream, /stops/...

    // Geofence dry-run
    mux.HandleFunc("/v1/geofence/check", srvDeps.GeofenceCheckHandler)

    // Driver positions
    mux.HandleFunc("/v1/positions", srvDeps.PositionsHandler)
    mux.HandleFunc("/v1/positions/ws", srvDeps.PositionsWSHandler)

    // Health and observability
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(srvDeps.Metrics.Registry, promhttp.HandlerOpts{}))
    mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write([]byte(`{"version":"` + buildinfo.Version + `"}`))
    })

    addr := ":" + cfg.Port

    srv := &http.Server{
        Addr:              addr,
        Handler:           logMiddleware(lg, srvDeps, mux),
        ReadHeaderTimeout: 5 * time.Second,
    }

    lg.Printf("dispatch API %s listening on %s", buildinfo.Version, addr)
    // Start notification worker
    go srvDeps.NewNotifyWorker(cfg.NotifyMaxAttempts).Run(context.Background())
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        lg.Fatalf("server error: %v", err)
    }
}

// logMiddleware passes the ResponseWriter through untouched so streaming
// and websocket upgrades keep working.
func logMiddleware(lg *log.Logger, deps *api.Server, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        dur := time.Since(start)
        deps.Metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path).Inc()
        deps.Metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path).Observe(dur.Seconds())
        lg.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
    })
}
