package dispatch

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strings"

    "dispatchd/internal/metrics"
    "dispatchd/internal/model"
    "dispatchd/internal/store"
)

var (
    ErrNoOrders        = errors.New("route needs at least one order")
    ErrNoDriver        = errors.New("route needs a driver")
    ErrPhotoRequired   = errors.New("proof photo required")
    ErrStopNotPending  = errors.New("stop is not pending")
    ErrStopDelivered   = errors.New("stop already delivered")
    ErrOutsideGeofence = errors.New("outside delivery geofence")
)

// Notifier is the async callback sink for delivery events. Emit must not
// block the completion path.
type Notifier interface {
    DeliveryCompleted(ctx context.Context, o model.Order)
}

type noopNotifier struct{}

func (noopNotifier) DeliveryCompleted(context.Context, model.Order) {}

// Manager drives the route lifecycle on top of the store.
type Manager struct {
    Store   store.Store
    Blob    BlobStore
    Notify  Notifier
    Metrics *metrics.Metrics
    Log     *log.Logger
}

// BlobStore mirrors blob.Store; declared here so the package compiles
// against fakes without importing the implementations.
type BlobStore interface {
    Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

func (mg *Manager) notifier() Notifier {
    if mg.Notify == nil { return noopNotifier{} }
    return mg.Notify
}

func (mg *Manager) logf(format string, args ...any) {
    if mg.Log != nil { mg.Log.Printf(format, args...) }
}

// CreateRoute validates the request before touching the store, so a bad
// request never leaves a partial route behind.
func (mg *Manager) CreateRoute(ctx context.Context, req model.CreateRouteRequest) (model.Route, error) {
    if len(req.OrderIDs) == 0 { return model.Route{}, ErrNoOrders }
    if strings.TrimSpace(req.DriverID) == "" { return model.Route{}, ErrNoDriver }
    seen := map[string]bool{}
    for _, id := range req.OrderIDs {
        if seen[id] { return model.Route{}, fmt.Errorf("duplicate order %s in route", id) }
        seen[id] = true
    }
    name := strings.TrimSpace(req.Name)
    if name == "" { name = "route" }
    return mg.Store.CreateRoute(ctx, name, req.DriverID, req.OrderIDs)
}

// Reschedule marks the stop for another attempt and closes the route if
// that was the last pending stop.
func (mg *Manager) Reschedule(ctx context.Context, routeID, stopID, note string) error {
    s, err := mg.Store.GetStop(ctx, routeID, stopID)
    if err != nil { return err }
    if s.Status != model.StopPending { return ErrStopNotPending }
    if err := mg.Store.RescheduleStop(ctx, routeID, stopID, note); err != nil { return err }
    if done, err := mg.Store.CompleteRouteIfDone(ctx, routeID); err != nil {
        mg.logf("route %s: completion check failed: %v", routeID, err)
    } else if done {
        mg.logf("route %s completed", routeID)
    }
    return nil
}
