package store

import (
    "context"
    "os"
    "testing"

    "dispatchd/internal/model"
)

// Runs only against a throwaway database, e.g.
// TEST_DATABASE_URL=postgres://localhost/dispatchd_test go test ./internal/store
func TestPostgresRoundTrip(t *testing.T) {
    dsn := os.Getenv("TEST_DATABASE_URL")
    if dsn == "" {
        t.Skip("TEST_DATABASE_URL not set")
    }
    p, err := NewPostgres(dsn)
    if err != nil {
        t.Fatalf("NewPostgres: %v", err)
    }
    if err := p.MigrateDir("../../db/migrations"); err != nil {
        t.Fatalf("MigrateDir: %v", err)
    }

    ctx := context.Background()
    o, err := p.CreateOrder(ctx, model.Order{Folio: "42", TaxID: "769210296", ClientName: "ACME", Location: &model.GeoPoint{Lat: -33.45, Lng: -70.66}})
    if err != nil {
        t.Fatalf("CreateOrder: %v", err)
    }
    r, err := p.CreateRoute(ctx, "it-route", "drv", []string{o.ID})
    if err != nil {
        t.Fatalf("CreateRoute: %v", err)
    }
    got, err := p.GetRoute(ctx, r.ID)
    if err != nil || len(got.Stops) != 1 || got.Stops[0].Seq != 1 {
        t.Fatalf("GetRoute: %+v err=%v", got, err)
    }
    st, err := p.RouteStats(ctx, r.ID)
    if err != nil || st.Pending != 1 {
        t.Fatalf("RouteStats: %+v err=%v", st, err)
    }
}
