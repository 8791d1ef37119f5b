package dispatch

import (
    "context"
    "fmt"
    "time"

    "dispatchd/internal/geofence"
    "dispatchd/internal/model"
)

// CompletionInput carries everything the driver app submits when finishing
// a stop.
type CompletionInput struct {
    RouteID     string
    StopID      string
    Photo       []byte
    ContentType string
    Position    *model.GeoPoint
    Override    bool
}

// GeofenceError reports how far outside the delivery fence the driver was.
type GeofenceError struct {
    DistanceM  *float64
    ThresholdM float64
}

func (e *GeofenceError) Error() string {
    if e.DistanceM == nil {
        return "outside delivery geofence: no position reported"
    }
    return fmt.Sprintf("outside delivery geofence: %.0fm from target (limit %.0fm)", *e.DistanceM, e.ThresholdM)
}

func (e *GeofenceError) Unwrap() error { return ErrOutsideGeofence }

// CompleteDelivery runs the full completion workflow for one stop:
// geofence gate, photo upload, then the order write followed by the stop
// write. The order row is the source of truth, so its write failing aborts
// the call; a stop write failure afterwards only logs a warning and is
// reported back so the client can surface it.
func (mg *Manager) CompleteDelivery(ctx context.Context, in CompletionInput) (model.CompletionResult, error) {
    var res model.CompletionResult

    s, err := mg.Store.GetStop(ctx, in.RouteID, in.StopID)
    if err != nil { return res, err }
    // a rescheduled stop may still be delivered on a later attempt
    if s.Status == model.StopDelivered { return res, ErrStopDelivered }
    o, err := mg.Store.GetOrder(ctx, s.OrderID)
    if err != nil { return res, err }

    ok, dist := geofence.Validate(in.Position, o.Location, geofence.DeliveryThresholdM, in.Override)
    if mg.Metrics != nil {
        result := "pass"
        if !ok { result = "fail" } else if in.Override { result = "override" }
        mg.Metrics.GeofenceChecks.WithLabelValues(result).Inc()
    }
    if !ok {
        return res, &GeofenceError{DistanceM: dist, ThresholdM: geofence.DeliveryThresholdM}
    }

    if len(in.Photo) == 0 { return res, ErrPhotoRequired }
    now := time.Now().UTC()
    key := fmt.Sprintf("pod/%s_%d.jpg", o.ID, now.Unix())
    photoURL, err := mg.Blob.Upload(ctx, key, in.ContentType, in.Photo)
    if err != nil { return res, fmt.Errorf("upload proof photo: %w", err) }

    if err := mg.Store.MarkOrderDelivered(ctx, o.ID, photoURL, now); err != nil {
        return res, fmt.Errorf("mark order delivered: %w", err)
    }

    res = model.CompletionResult{OrderID: o.ID, StopID: s.ID, PhotoURL: photoURL}
    if err := mg.Store.MarkStopDelivered(ctx, in.RouteID, in.StopID, photoURL, now); err != nil {
        mg.logf("route %s stop %s: order delivered but stop write failed: %v", in.RouteID, in.StopID, err)
        if mg.Metrics != nil { mg.Metrics.DualWriteWarnings.Inc() }
        res.Warning = "order marked delivered; stop record not updated"
    } else {
        if done, err := mg.Store.CompleteRouteIfDone(ctx, in.RouteID); err != nil {
            mg.logf("route %s: completion check failed: %v", in.RouteID, err)
        } else if done {
            mg.logf("route %s completed", in.RouteID)
        }
    }
    if mg.Metrics != nil { mg.Metrics.Completions.Inc() }

    o.DeliveryStatus = model.OrderDelivered
    o.DeliveryPhotoURL = photoURL
    o.DeliveredAt = &now
    mg.notifier().DeliveryCompleted(ctx, o)
    return res, nil
}
