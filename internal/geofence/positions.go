package geofence

import (
    "context"
    "sync"
    "time"

    "dispatchd/internal/model"
)

// Positions caches the latest reported location per driver per route.
// Live position tracking is a continuous subscription: the validator is
// called repeatedly against whatever is cached here, and entries past TTL
// are treated as absent so the geofence fails closed on stale data.
type Positions interface {
    Upsert(ctx context.Context, p model.Position) error
    Latest(ctx context.Context, routeID, driverID string) (*model.GeoPoint, bool)
    ListByRoute(ctx context.Context, routeID string) []model.Position
}

type memEntry struct {
    pos model.Position
    at  time.Time
}

// MemPositions is the in-memory cache used when no REDIS_URL is set.
type MemPositions struct {
    mu  sync.Mutex
    ttl time.Duration
    m   map[string]memEntry // routeId|driverId
    now func() time.Time
}

func NewMemPositions(ttl time.Duration) *MemPositions {
    if ttl <= 0 { ttl = 5 * time.Minute }
    return &MemPositions{ttl: ttl, m: map[string]memEntry{}, now: time.Now}
}

func posKey(routeID, driverID string) string { return routeID + "|" + driverID }

func (c *MemPositions) Upsert(ctx context.Context, p model.Position) error {
    if p.RouteID == "" || p.DriverID == "" { return nil }
    c.mu.Lock(); defer c.mu.Unlock()
    c.m[posKey(p.RouteID, p.DriverID)] = memEntry{pos: p, at: c.now()}
    return nil
}

func (c *MemPositions) Latest(ctx context.Context, routeID, driverID string) (*model.GeoPoint, bool) {
    c.mu.Lock(); defer c.mu.Unlock()
    e, ok := c.m[posKey(routeID, driverID)]
    if !ok || c.now().Sub(e.at) > c.ttl { return nil, false }
    return &model.GeoPoint{Lat: e.pos.Lat, Lng: e.pos.Lng}, true
}

func (c *MemPositions) ListByRoute(ctx context.Context, routeID string) []model.Position {
    c.mu.Lock(); defer c.mu.Unlock()
    out := []model.Position{}
    prefix := routeID + "|"
    for k, e := range c.m {
        if len(k) >= len(prefix) && k[:len(prefix)] == prefix && c.now().Sub(e.at) <= c.ttl {
            out = append(out, e.pos)
        }
    }
    return out
}
