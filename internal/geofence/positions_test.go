package geofence

import (
    "context"
    "testing"
    "time"

    "dispatchd/internal/model"
)

func TestMemPositionsLatestAndTTL(t *testing.T) {
    c := NewMemPositions(time.Minute)
    now := time.Unix(1000, 0)
    c.now = func() time.Time { return now }
    ctx := context.Background()

    _ = c.Upsert(ctx, model.Position{RouteID: "r1", DriverID: "d1", Lat: 1, Lng: 2})
    pt, ok := c.Latest(ctx, "r1", "d1")
    if !ok || pt.Lat != 1 || pt.Lng != 2 {
        t.Fatalf("latest: %v %v", pt, ok)
    }

    // stale entries are absent
    now = now.Add(2 * time.Minute)
    if _, ok := c.Latest(ctx, "r1", "d1"); ok {
        t.Fatal("stale position should be treated as absent")
    }
    if got := c.ListByRoute(ctx, "r1"); len(got) != 0 {
        t.Fatalf("stale list: %v", got)
    }
}

func TestMemPositionsListByRoute(t *testing.T) {
    c := NewMemPositions(time.Minute)
    ctx := context.Background()
    _ = c.Upsert(ctx, model.Position{RouteID: "r1", DriverID: "d1", Lat: 1, Lng: 1})
    _ = c.Upsert(ctx, model.Position{RouteID: "r1", DriverID: "d2", Lat: 2, Lng: 2})
    _ = c.Upsert(ctx, model.Position{RouteID: "r2", DriverID: "d3", Lat: 3, Lng: 3})
    if got := c.ListByRoute(ctx, "r1"); len(got) != 2 {
        t.Fatalf("expected 2 positions on r1, got %d", len(got))
    }
    // missing ids are ignored, not stored
    _ = c.Upsert(ctx, model.Position{RouteID: "", DriverID: "d9"})
    if _, ok := c.Latest(ctx, "", "d9"); ok {
        t.Fatal("position without route id should not be cached")
    }
}
