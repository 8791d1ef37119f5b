package geo

import "math"

const earthRadiusM = 6371000.0

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
    dLat := (lat2 - lat1) * math.Pi / 180
    dLon := (lon2 - lon1) * math.Pi / 180
    a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
    c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
    return earthRadiusM * c
}

// Valid reports whether lat/lng form a usable coordinate. (0,0) is treated
// as missing; geocoders in the upstream CRM emit it for failed lookups.
func Valid(lat, lng float64) bool {
    if lat == 0 && lng == 0 {
        return false
    }
    if math.IsNaN(lat) || math.IsNaN(lng) {
        return false
    }
    return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// NormalizeLng wraps a longitude into [-180, 180).
func NormalizeLng(lng float64) float64 {
    for lng < -180 {
        lng += 360
    }
    for lng >= 180 {
        lng -= 360
    }
    return lng
}
