package model

import "time"

// Order delivery statuses. The sales workflow creates orders as pending;
// this core only moves them forward.
const (
    OrderPending        = "pending"
    OrderOutForDelivery = "out_for_delivery"
    OrderDelivered      = "delivered"
)

// Route statuses.
const (
    RouteInProgress = "in_progress"
    RouteCompleted  = "completed"
)

// Stop statuses. Delivered is terminal; a rescheduled stop may still be
// delivered on a later attempt.
const (
    StopPending     = "pending"
    StopDelivered   = "delivered"
    StopRescheduled = "rescheduled"
)

type GeoPoint struct {
    Lat float64 `json:"lat"`
    Lng float64 `json:"lng"`
}

type Order struct {
    ID               string     `json:"id"`
    Folio            string     `json:"folio"`
    TaxID            string     `json:"taxId"`
    ClientName       string     `json:"clientName,omitempty"`
    Address          string     `json:"address,omitempty"`
    Location         *GeoPoint  `json:"location,omitempty"`
    DeliveryStatus   string     `json:"deliveryStatus"`
    RouteID          string     `json:"routeId,omitempty"`
    DeliveryPhotoURL string     `json:"deliveryPhotoUrl,omitempty"`
    DeliveredAt      *time.Time `json:"deliveredAt,omitempty"`
}

type Route struct {
    ID        string      `json:"id"`
    Name      string      `json:"name"`
    DriverID  string      `json:"driverId,omitempty"`
    Status    string      `json:"status"`
    CreatedAt time.Time   `json:"createdAt"`
    Stops     []RouteStop `json:"stops,omitempty"`
}

// RouteStop is one delivery assignment within a route. Seq values within a
// route are dense and 1-based after creation or re-optimization.
type RouteStop struct {
    ID            string     `json:"id"`
    RouteID       string     `json:"routeId"`
    OrderID       string     `json:"orderId"`
    Seq           int        `json:"seq"`
    Status        string     `json:"status"`
    Note          string     `json:"note,omitempty"`
    ProofPhotoURL string     `json:"proofPhotoUrl,omitempty"`
    DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
}

// ManifestRow is one line of an imported delivery manifest. Raw values are
// kept as supplied so unmatched reports can show the operator the original
// text. Never persisted.
type ManifestRow struct {
    TaxID string `json:"taxId"`
    Folio string `json:"folio"`
    Line  int    `json:"line,omitempty"`
}

// MatchedOrder pairs a manifest row with the order it resolved to.
type MatchedOrder struct {
    Row   ManifestRow `json:"row"`
    Order Order       `json:"order"`
}

// UnmatchedRow is a manifest row that could not be resolved, with the reason
// (no_match, duplicate_key) surfaced for operator remediation.
type UnmatchedRow struct {
    Row    ManifestRow `json:"row"`
    Reason string      `json:"reason"`
}

// MatchReport is the output of one manifest import.
type MatchReport struct {
    MatchedCount   int            `json:"matchedCount"`
    UnmatchedCount int            `json:"unmatchedCount"`
    Matched        []MatchedOrder `json:"matched"`
    Unmatched      []UnmatchedRow `json:"unmatched"`
}

// StopDetail is the read-only inspection view of one stop.
type StopDetail struct {
    Seq           int        `json:"seq"`
    Status        string     `json:"status"`
    ClientName    string     `json:"clientName"`
    Address       string     `json:"address"`
    Folio         string     `json:"folio"`
    DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
    ProofPhotoURL string     `json:"proofPhotoUrl,omitempty"`
}

// API request/response bodies

type CreateRouteRequest struct {
    Name     string   `json:"name"`
    DriverID string   `json:"driverId"`
    OrderIDs []string `json:"orderIds"`
}

type GeofenceCheckRequest struct {
    Current    *GeoPoint `json:"current,omitempty"`
    Target     *GeoPoint `json:"target,omitempty"`
    ThresholdM float64   `json:"thresholdM,omitempty"`
    Override   bool      `json:"override,omitempty"`
}

type GeofenceCheckResponse struct {
    OK        bool     `json:"ok"`
    DistanceM *float64 `json:"distanceM,omitempty"`
}

type RescheduleRequest struct {
    Note string `json:"note"`
}

type CompletionResult struct {
    OrderID  string `json:"orderId"`
    StopID   string `json:"stopId"`
    PhotoURL string `json:"photoUrl"`
    // Warning is set when the order was marked delivered but the stop record
    // could not be updated (dual-write tolerance).
    Warning string `json:"warning,omitempty"`
}

// Position is a driver's live location report.
type Position struct {
    RouteID  string  `json:"routeId"`
    DriverID string  `json:"driverId"`
    Lat      float64 `json:"lat"`
    Lng      float64 `json:"lng"`
    TS       string  `json:"ts"`
}

// RouteStats aggregates stop counts for operator dashboards.
type RouteStats struct {
    RouteID     string `json:"routeId"`
    Stops       int    `json:"stops"`
    Pending     int    `json:"pending"`
    Delivered   int    `json:"delivered"`
    Rescheduled int    `json:"rescheduled"`
}
