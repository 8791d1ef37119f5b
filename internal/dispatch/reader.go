package dispatch

import (
    "context"

    "dispatchd/internal/model"
)

const unknownClient = "Unknown client"

// RouteDetails returns the printable stop list for a route. Orders that
// lost their client record still render, with a placeholder name.
func (mg *Manager) RouteDetails(ctx context.Context, routeID string) ([]model.StopDetail, error) {
    details, err := mg.Store.RouteDetails(ctx, routeID)
    if err != nil { return nil, err }
    for i := range details {
        if details[i].ClientName == "" { details[i].ClientName = unknownClient }
    }
    return details, nil
}
