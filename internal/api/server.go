package api

import (
    "log"
    "strings"

    "dispatchd/internal/blob"
    "dispatchd/internal/config"
    "dispatchd/internal/dispatch"
    "dispatchd/internal/geofence"
    "dispatchd/internal/metrics"
    "dispatchd/internal/model"
    "dispatchd/internal/notify"
    "dispatchd/internal/optimize"
    "dispatchd/internal/store"
)

type Server struct {
    Store     store.Store
    Positions geofence.Positions
    Manager   *dispatch.Manager
    Optimizer *optimize.Optimizer
    Broker    EventBroker
    Metrics   *metrics.Metrics
    Log       *log.Logger
}

// NewServer wires the full stack from config. With no DATABASE_URL the
// in-memory store is used; with no REDIS_URL positions and events stay
// process-local.
func NewServer(cfg config.Config, lg *log.Logger) (*Server, error) {
    var s store.Store
    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil { return nil, err }
        // Run migrations (dev helper)
        _ = sp.MigrateDir("db/migrations")
        s = sp
    }

    var positions geofence.Positions
    var broker EventBroker
    if cfg.RedisURL != "" {
        if rp, err := geofence.NewRedisPositions(cfg.RedisURL, cfg.PositionTTL); err == nil {
            positions = rp
        } else {
            positions = geofence.NewMemPositions(cfg.PositionTTL)
        }
        if rb, err := NewRedisBroker(cfg.RedisURL); err == nil { broker = rb } else { broker = NewBroker() }
    } else {
        positions = geofence.NewMemPositions(cfg.PositionTTL)
        broker = NewBroker()
    }

    var bs blob.Store
    if cfg.BlobURL != "" { bs = blob.NewHTTPStore(cfg.BlobURL) } else { bs = blob.NewMemStore() }

    m := metrics.New()
    mgr := &dispatch.Manager{
        Store:   s,
        Blob:    bs,
        Notify:  &notify.Publisher{Store: s, URL: cfg.NotifyURL, Secret: cfg.NotifySecret, Log: lg},
        Metrics: m,
        Log:     lg,
    }

    var opt *optimize.Optimizer
    if cfg.DirectionsURL != "" {
        opt = &optimize.Optimizer{
            Provider: optimize.NewDirectionsClient(cfg.DirectionsURL, cfg.DirectionsKey),
            Depot:    model.GeoPoint{Lat: cfg.DepotLat, Lng: cfg.DepotLng},
        }
    }

    return &Server{
        Store:     s,
        Positions: positions,
        Manager:   mgr,
        Optimizer: opt,
        Broker:    broker,
        Metrics:   m,
        Log:       lg,
    }, nil
}

// NewNotifyWorker creates the background queue drainer.
func (s *Server) NewNotifyWorker(maxAttempts int) *notify.Worker {
    w := notify.NewWorker(s.Store, s.Metrics, s.Log)
    if maxAttempts > 0 { w.MaxAttempts = maxAttempts }
    return w
}
