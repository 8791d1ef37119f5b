package store

import (
    "context"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"

    "dispatchd/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu       sync.Mutex
    orders   map[string]model.Order       // id -> order
    orderIDs []string                     // insertion order
    routes   map[string]model.Route       // id -> route (without stops)
    routeIDs []string
    stops    map[string][]model.RouteStop // routeId -> stops ordered by seq
    // notification queue state
    notifs   map[string]*memNotification
    notifIDs []string
}

func NewMemory() *Memory {
    return &Memory{
        orders: map[string]model.Order{},
        routes: map[string]model.Route{},
        stops:  map[string][]model.RouteStop{},
        notifs: map[string]*memNotification{},
    }
}

type memNotification struct {
    Notification
    NextAttemptAt time.Time
    LastError     string
}

func (m *Memory) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if o.ID == "" { o.ID = uuid.New().String() }
    if o.DeliveryStatus == "" { o.DeliveryStatus = model.OrderPending }
    m.orders[o.ID] = o
    m.orderIDs = append(m.orderIDs, o.ID)
    return o, nil
}

func (m *Memory) GetOrder(ctx context.Context, id string) (model.Order, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    o, ok := m.orders[id]
    if !ok { return model.Order{}, ErrNotFound }
    return o, nil
}

func (m *Memory) ListMatchableOrders(ctx context.Context) ([]model.Order, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Order{}
    for _, id := range m.orderIDs {
        o := m.orders[id]
        if o.DeliveryStatus == model.OrderPending && o.RouteID == "" {
            out = append(out, o)
        }
    }
    return out, nil
}

func (m *Memory) MarkOrderDelivered(ctx context.Context, orderID, photoURL string, at time.Time) error {
    m.mu.Lock(); defer m.mu.Unlock()
    o, ok := m.orders[orderID]
    if !ok { return ErrNotFound }
    o.DeliveryStatus = model.OrderDelivered
    o.DeliveryPhotoURL = photoURL
    o.DeliveredAt = &at
    m.orders[orderID] = o
    return nil
}

func (m *Memory) CreateRoute(ctx context.Context, name, driverID string, orderIDs []string) (model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    for _, oid := range orderIDs {
        if _, ok := m.orders[oid]; !ok {
            return model.Route{}, fmt.Errorf("create route: order %s: %w", oid, ErrNotFound)
        }
    }
    r := model.Route{ID: uuid.New().String(), Name: name, DriverID: driverID, Status: model.RouteInProgress, CreatedAt: time.Now().UTC()}
    m.routes[r.ID] = r
    m.routeIDs = append(m.routeIDs, r.ID)
    stops := make([]model.RouteStop, 0, len(orderIDs))
    for i, oid := range orderIDs {
        stops = append(stops, model.RouteStop{ID: uuid.New().String(), RouteID: r.ID, OrderID: oid, Seq: i + 1, Status: model.StopPending})
    }
    m.stops[r.ID] = stops
    for _, oid := range orderIDs {
        o := m.orders[oid]
        o.DeliveryStatus = model.OrderOutForDelivery
        o.RouteID = r.ID
        m.orders[oid] = o
    }
    r.Stops = append([]model.RouteStop(nil), stops...)
    return r, nil
}

func (m *Memory) GetRoute(ctx context.Context, routeID string) (model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.routes[routeID]
    if !ok { return model.Route{}, ErrNotFound }
    r.Stops = append([]model.RouteStop(nil), m.stops[routeID]...)
    return r, nil
}

func (m *Memory) ListRoutes(ctx context.Context, cursor string, limit int) ([]model.Route, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    start := 0
    if cursor != "" {
        for i, id := range m.routeIDs {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Route{}
    for i := start; i < len(m.routeIDs) && len(out) < limit; i++ {
        out = append(out, m.routes[m.routeIDs[i]])
    }
    // cursor only when rows remain, so an exactly full last page ends the walk
    var next string
    if len(out) > 0 && start+len(out) < len(m.routeIDs) {
        next = out[len(out)-1].ID
    }
    return out, next, nil
}

func (m *Memory) ReorderStops(ctx context.Context, routeID string, orderedStopIDs []string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    cur := m.stops[routeID]
    if cur == nil { return ErrNotFound }
    if len(orderedStopIDs) != len(cur) {
        return fmt.Errorf("reorder stops: got %d ids for %d stops", len(orderedStopIDs), len(cur))
    }
    byID := map[string]model.RouteStop{}
    for _, s := range cur { byID[s.ID] = s }
    out := make([]model.RouteStop, 0, len(cur))
    for i, id := range orderedStopIDs {
        s, ok := byID[id]
        if !ok { return fmt.Errorf("reorder stops: stop %s: %w", id, ErrNotFound) }
        s.Seq = i + 1
        out = append(out, s)
        delete(byID, id)
    }
    m.stops[routeID] = out
    return nil
}

func (m *Memory) RouteStats(ctx context.Context, routeID string) (model.RouteStats, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.routes[routeID]; !ok { return model.RouteStats{}, ErrNotFound }
    st := model.RouteStats{RouteID: routeID}
    for _, s := range m.stops[routeID] {
        st.Stops++
        switch s.Status {
        case model.StopPending:
            st.Pending++
        case model.StopDelivered:
            st.Delivered++
        case model.StopRescheduled:
            st.Rescheduled++
        }
    }
    return st, nil
}

func (m *Memory) RouteDetails(ctx context.Context, routeID string) ([]model.StopDetail, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.routes[routeID]; !ok { return nil, ErrNotFound }
    out := []model.StopDetail{}
    for _, s := range m.stops[routeID] {
        d := model.StopDetail{Seq: s.Seq, Status: s.Status, DeliveredAt: s.DeliveredAt, ProofPhotoURL: s.ProofPhotoURL}
        if o, ok := m.orders[s.OrderID]; ok {
            d.ClientName = o.ClientName
            d.Address = o.Address
            d.Folio = o.Folio
        }
        out = append(out, d)
    }
    return out, nil
}

func (m *Memory) GetStop(ctx context.Context, routeID, stopID string) (model.RouteStop, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    for _, s := range m.stops[routeID] {
        if s.ID == stopID { return s, nil }
    }
    return model.RouteStop{}, ErrNotFound
}

func (m *Memory) MarkStopDelivered(ctx context.Context, routeID, stopID, photoURL string, at time.Time) error {
    return m.setStop(routeID, stopID, func(s *model.RouteStop) {
        s.Status = model.StopDelivered
        s.ProofPhotoURL = photoURL
        s.DeliveredAt = &at
    })
}

func (m *Memory) RescheduleStop(ctx context.Context, routeID, stopID, note string) error {
    return m.setStop(routeID, stopID, func(s *model.RouteStop) {
        s.Status = model.StopRescheduled
        s.Note = note
    })
}

func (m *Memory) setStop(routeID, stopID string, fn func(*model.RouteStop)) error {
    m.mu.Lock(); defer m.mu.Unlock()
    stops := m.stops[routeID]
    for i := range stops {
        if stops[i].ID == stopID {
            fn(&stops[i])
            return nil
        }
    }
    return ErrNotFound
}

func (m *Memory) CompleteRouteIfDone(ctx context.Context, routeID string) (bool, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.routes[routeID]
    if !ok { return false, ErrNotFound }
    if r.Status == model.RouteCompleted { return false, nil }
    for _, s := range m.stops[routeID] {
        if s.Status == model.StopPending { return false, nil }
    }
    r.Status = model.RouteCompleted
    m.routes[routeID] = r
    return true, nil
}

// Notifications

func (m *Memory) EnqueueNotification(ctx context.Context, orderID, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    m.notifs[id] = &memNotification{
        Notification:  Notification{ID: id, OrderID: orderID, URL: url, Secret: secret, Payload: payload, Status: "pending"},
        NextAttemptAt: time.Now(),
    }
    m.notifIDs = append(m.notifIDs, id)
    return id, nil
}

func (m *Memory) FetchDueNotifications(ctx context.Context, limit int) ([]Notification, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []Notification{}
    ids := append([]string(nil), m.notifIDs...)
    sort.Strings(ids)
    for _, id := range ids {
        n := m.notifs[id]
        if n == nil { continue }
        if (n.Status == "pending" || n.Status == "retry") && !n.NextAttemptAt.After(now) {
            out = append(out, n.Notification)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkNotification(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    n := m.notifs[id]
    if n == nil { return nil }
    n.Attempts++
    if success {
        n.Status = "delivered"
    } else {
        n.Status = "retry"
        n.LastError = lastError
        if nextAttemptAt != nil { n.NextAttemptAt = *nextAttemptAt } else { n.NextAttemptAt = time.Now().Add(1 * time.Minute) }
    }
    return nil
}

func (m *Memory) FailNotification(ctx context.Context, id string, lastError string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if n := m.notifs[id]; n != nil {
        n.Status = "failed"
        n.LastError = lastError
    }
    return nil
}
