package optimize

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"

    "dispatchd/internal/model"
)

func TestDirectionsClientReorder(t *testing.T) {
    var gotReq directionsRequest
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _ = json.NewDecoder(r.Body).Decode(&gotReq)
        _ = json.NewEncoder(w).Encode(map[string]any{"status": "OK", "waypoint_order": []int{1, 0}})
    }))
    defer srv.Close()

    c := NewDirectionsClient(srv.URL, "k")
    order, err := c.Reorder(context.Background(), model.GeoPoint{Lat: 1}, model.GeoPoint{Lat: 2}, []model.GeoPoint{{Lat: 3}, {Lat: 4}})
    if err != nil {
        t.Fatalf("Reorder: %v", err)
    }
    if len(order) != 2 || order[0] != 1 {
        t.Fatalf("order: %v", order)
    }
    if !gotReq.OptimizeWaypoints || gotReq.Mode != "driving" {
        t.Fatalf("request not marked for optimization: %+v", gotReq)
    }
}

func TestDirectionsClientProviderStatusError(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _ = json.NewEncoder(w).Encode(map[string]any{"status": "ZERO_RESULTS"})
    }))
    defer srv.Close()

    c := NewDirectionsClient(srv.URL, "")
    if _, err := c.Reorder(context.Background(), model.GeoPoint{}, model.GeoPoint{}, nil); err == nil {
        t.Fatal("expected provider status error")
    }
}

func TestDirectionsClientRetriesServerErrors(t *testing.T) {
    attempts := 0
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        attempts++
        if attempts < 2 {
            w.WriteHeader(http.StatusBadGateway)
            return
        }
        _ = json.NewEncoder(w).Encode(map[string]any{"status": "OK", "waypoint_order": []int{0}})
    }))
    defer srv.Close()

    c := NewDirectionsClient(srv.URL, "")
    order, err := c.Reorder(context.Background(), model.GeoPoint{}, model.GeoPoint{}, []model.GeoPoint{{Lat: 1}})
    if err != nil {
        t.Fatalf("Reorder after retry: %v", err)
    }
    if attempts != 2 || len(order) != 1 {
        t.Fatalf("attempts=%d order=%v", attempts, order)
    }
}
