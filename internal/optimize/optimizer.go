package optimize

import (
    "context"
    "fmt"

    "dispatchd/internal/geo"
    "dispatchd/internal/model"
)

// Optimizer re-sequences a route's stops using an external provider. It
// never changes the set of stops, only their order and numbering, and it
// never mutates anything on provider failure.
type Optimizer struct {
    Provider Provider
    Depot    model.GeoPoint
}

// Reorder returns the stops in optimized order with dense 1-based sequence
// numbers. locs maps order id to that order's coordinate; stops whose order
// has no usable coordinate cannot be routed and keep their relative order at
// the end of the slice.
//
// originHint is the driver's last known position; when nil the fixed depot
// is used. The destination is the last routable stop in the current order.
func (o *Optimizer) Reorder(ctx context.Context, stops []model.RouteStop, locs map[string]*model.GeoPoint, originHint *model.GeoPoint) ([]model.RouteStop, error) {
    routable := []model.RouteStop{}
    rest := []model.RouteStop{}
    for _, s := range stops {
        if pt := locs[s.OrderID]; pt != nil && geo.Valid(pt.Lat, pt.Lng) {
            routable = append(routable, s)
        } else {
            rest = append(rest, s)
        }
    }
    if len(routable) == 0 {
        return stops, nil
    }
    if len(routable) < 3 {
        // nothing in between to reorder
        return stops, nil
    }

    origin := o.Depot
    if originHint != nil {
        origin = *originHint
    }
    last := routable[len(routable)-1]
    destination := *locs[last.OrderID]
    waypoints := make([]model.GeoPoint, 0, len(routable)-1)
    for _, s := range routable[:len(routable)-1] {
        waypoints = append(waypoints, *locs[s.OrderID])
    }

    order, err := o.Provider.Reorder(ctx, origin, destination, waypoints)
    if err != nil {
        return nil, err
    }
    if len(order) != len(waypoints) {
        return nil, fmt.Errorf("optimize: provider returned %d indices for %d waypoints", len(order), len(waypoints))
    }
    seen := make([]bool, len(waypoints))
    for _, idx := range order {
        if idx < 0 || idx >= len(waypoints) || seen[idx] {
            return nil, fmt.Errorf("optimize: invalid waypoint permutation %v", order)
        }
        seen[idx] = true
    }

    out := make([]model.RouteStop, 0, len(stops))
    for _, idx := range order {
        out = append(out, routable[idx])
    }
    out = append(out, last)
    out = append(out, rest...)
    for i := range out {
        out[i].Seq = i + 1
    }
    return out, nil
}
