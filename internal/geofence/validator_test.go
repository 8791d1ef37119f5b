package geofence

import (
    "testing"

    "dispatchd/internal/model"
)

func TestValidateDistanceGate(t *testing.T) {
    cur := &model.GeoPoint{Lat: 0, Lng: 0}

    // 0.01 deg lng at the equator is ~1113 m: outside a 500 m fence
    ok, d := Validate(cur, &model.GeoPoint{Lat: 0, Lng: 0.01}, DeliveryThresholdM, false)
    if ok {
        t.Fatal("1113 m should fail a 500 m threshold")
    }
    if d == nil || *d < 1100 || *d > 1130 {
        t.Fatalf("distance: %v", d)
    }

    // 0.001 deg is ~111 m: inside
    ok, d = Validate(cur, &model.GeoPoint{Lat: 0, Lng: 0.001}, DeliveryThresholdM, false)
    if !ok {
        t.Fatal("111 m should pass a 500 m threshold")
    }
    if d == nil || *d < 105 || *d > 120 {
        t.Fatalf("distance: %v", d)
    }

    // same 1113 m passes the wider check-in radius
    if ok, _ := Validate(cur, &model.GeoPoint{Lat: 0, Lng: 0.01}, CheckInThresholdM, false); !ok {
        t.Fatal("1113 m should pass a 2000 m threshold")
    }
}

func TestValidateEdgeCases(t *testing.T) {
    far := &model.GeoPoint{Lat: 50, Lng: 50}

    if ok, _ := Validate(&model.GeoPoint{}, far, DeliveryThresholdM, true); !ok {
        t.Fatal("override must always pass")
    }
    if ok, _ := Validate(far, nil, DeliveryThresholdM, false); !ok {
        t.Fatal("missing target must pass")
    }
    ok, d := Validate(nil, far, DeliveryThresholdM, false)
    if ok {
        t.Fatal("missing current position must fail closed")
    }
    if d != nil {
        t.Fatal("no distance without a position")
    }
}
