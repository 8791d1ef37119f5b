package geofence

import (
    "dispatchd/internal/geo"
    "dispatchd/internal/model"
)

// Default thresholds. Per call site, not global: delivery gating and
// client-visit check-in use different radii.
const (
    DeliveryThresholdM = 500.0
    CheckInThresholdM  = 2000.0
)

// Validate gates an action on physical proximity to a target coordinate.
//
//   - override active: always ok (named operator/debug bypass, audited by
//     the caller).
//   - target missing or unusable: ok (cannot gate what cannot be measured).
//   - current position missing: not ok, no distance (fails closed).
//   - otherwise ok iff great-circle distance <= threshold; the distance is
//     returned either way for user-facing messaging.
func Validate(current, target *model.GeoPoint, thresholdM float64, override bool) (bool, *float64) {
    if override {
        return true, nil
    }
    if target == nil || !geo.Valid(target.Lat, target.Lng) {
        return true, nil
    }
    if current == nil {
        return false, nil
    }
    d := geo.HaversineMeters(current.Lat, current.Lng, target.Lat, target.Lng)
    return d <= thresholdM, &d
}
