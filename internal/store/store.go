package store

import (
    "context"
    "errors"
    "time"

    "dispatchd/internal/model"
)

// Store is the persistence boundary for the dispatch core. Individual
// operations are atomic; multi-table transactions are NOT assumed, which is
// why order and stop writes are separate calls (see the completion
// workflow's dual-write tolerance).
type Store interface {
    // Orders
    CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
    GetOrder(ctx context.Context, id string) (model.Order, error)
    // ListMatchableOrders returns candidate orders for manifest matching in
    // one batched query: pending orders not yet attached to a route.
    ListMatchableOrders(ctx context.Context) ([]model.Order, error)
    MarkOrderDelivered(ctx context.Context, orderID, photoURL string, at time.Time) error

    // Routes
    // CreateRoute inserts the route header, one stop per order in the given
    // sequence, then points every order at the route. No rollback on partial
    // failure; the error is surfaced and re-running with the same input is
    // the recovery path.
    CreateRoute(ctx context.Context, name, driverID string, orderIDs []string) (model.Route, error)
    GetRoute(ctx context.Context, routeID string) (model.Route, error)
    // ListRoutes pages by id. The returned cursor is non-empty only when
    // more routes remain past this page.
    ListRoutes(ctx context.Context, cursor string, limit int) ([]model.Route, string, error)
    ReorderStops(ctx context.Context, routeID string, orderedStopIDs []string) error
    RouteStats(ctx context.Context, routeID string) (model.RouteStats, error)
    RouteDetails(ctx context.Context, routeID string) ([]model.StopDetail, error)

    // Stops
    GetStop(ctx context.Context, routeID, stopID string) (model.RouteStop, error)
    MarkStopDelivered(ctx context.Context, routeID, stopID, photoURL string, at time.Time) error
    RescheduleStop(ctx context.Context, routeID, stopID, note string) error
    // CompleteRouteIfDone flips the route to completed when no stop remains
    // pending. Returns whether the transition happened.
    CompleteRouteIfDone(ctx context.Context, routeID string) (bool, error)

    // Delivery notification queue
    EnqueueNotification(ctx context.Context, orderID, url, secret string, payload []byte) (string, error)
    FetchDueNotifications(ctx context.Context, limit int) ([]Notification, error)
    MarkNotification(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string) error
    FailNotification(ctx context.Context, id string, lastError string) error
}

// Notification is one queued delivery-completed callback.
type Notification struct {
    ID       string
    OrderID  string
    URL      string
    Secret   string
    Payload  []byte
    Status   string
    Attempts int
}

var ErrNotFound = errors.New("not found")
