package geo

import (
    "math"
    "testing"
)

func TestHaversineMeters(t *testing.T) {
    // ~111 km per degree of latitude at the equator
    d := HaversineMeters(0, 0, 1, 0)
    if math.Abs(d-111195) > 200 {
        t.Fatalf("one degree lat: got %f", d)
    }
    // 0.01 deg of longitude at the equator is ~1113 m
    d = HaversineMeters(0, 0, 0, 0.01)
    if math.Abs(d-1113) > 5 {
        t.Fatalf("0.01 deg lng: got %f", d)
    }
    if HaversineMeters(10, 20, 10, 20) != 0 {
        t.Fatal("identical points should be 0")
    }
}

func TestValid(t *testing.T) {
    if Valid(0, 0) {
        t.Fatal("(0,0) must be treated as missing")
    }
    if !Valid(-33.45, -70.66) {
        t.Fatal("valid coordinate rejected")
    }
    if Valid(91, 0) || Valid(0, 181) {
        t.Fatal("out-of-range coordinate accepted")
    }
}

func TestNormalizeLng(t *testing.T) {
    if got := NormalizeLng(190); got != -170 {
        t.Fatalf("190 -> %f", got)
    }
    if got := NormalizeLng(-190); got != 170 {
        t.Fatalf("-190 -> %f", got)
    }
    if got := NormalizeLng(45); got != 45 {
        t.Fatalf("45 -> %f", got)
    }
}
