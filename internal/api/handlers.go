package api

import (
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"
    "time"

    "dispatchd/internal/dispatch"
    "dispatchd/internal/geo"
    "dispatchd/internal/geofence"
    "dispatchd/internal/match"
    "dispatchd/internal/manifest"
    "dispatchd/internal/model"
    "dispatchd/internal/store"
)

const maxManifestBytes = 8 << 20
const maxPhotoBytes = 16 << 20

// ManifestImportHandler handles POST /v1/manifests/import.
// Accepts a CSV either as multipart field "file" or as the raw body.
func (s *Server) ManifestImportHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    r.Body = http.MaxBytesReader(w, r.Body, maxManifestBytes)
    var src io.Reader = r.Body
    if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "multipart/form-data") {
        f, _, err := r.FormFile("file")
        if err != nil {
            writeProblem(w, http.StatusBadRequest, "Missing manifest file", err.Error(), r.URL.Path)
            return
        }
        defer f.Close()
        src = f
    }
    rows, err := manifest.Parse(src)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid manifest", err.Error(), r.URL.Path)
        return
    }
    candidates, err := s.Store.ListMatchableOrders(r.Context())
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "List orders failed", err.Error(), r.URL.Path)
        return
    }
    matched, unmatched := match.Match(rows, candidates)
    s.Metrics.ManifestRows.WithLabelValues("matched").Add(float64(len(matched)))
    s.Metrics.ManifestRows.WithLabelValues("unmatched").Add(float64(len(unmatched)))
    writeJSON(w, http.StatusOK, model.MatchReport{
        MatchedCount:   len(matched),
        UnmatchedCount: len(unmatched),
        Matched:        matched,
        Unmatched:      unmatched,
    })
}

// OrdersHandler handles POST /v1/orders (bulk create) and GET /v1/orders.
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var req struct {
            Orders []model.Order `json:"orders"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        created := []model.Order{}
        for _, o := range req.Orders {
            got, err := s.Store.CreateOrder(r.Context(), o)
            if err != nil {
                writeProblem(w, http.StatusInternalServerError, "Create orders failed", err.Error(), r.URL.Path)
                return
            }
            created = append(created, got)
        }
        writeJSON(w, http.StatusCreated, map[string]any{"created": len(created), "orders": created})
    case http.MethodGet:
        items, err := s.Store.ListMatchableOrders(r.Context())
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List orders failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// RoutesIndexHandler handles POST/GET /v1/routes.
func (s *Server) RoutesIndexHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var req model.CreateRouteRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        route, err := s.Manager.CreateRoute(r.Context(), req)
        if err != nil {
            switch {
            case errors.Is(err, dispatch.ErrNoOrders), errors.Is(err, dispatch.ErrNoDriver):
                writeProblem(w, http.StatusBadRequest, "Invalid route request", err.Error(), r.URL.Path)
            case errors.Is(err, store.ErrNotFound):
                writeProblem(w, http.StatusNotFound, "Order not found", err.Error(), r.URL.Path)
            default:
                writeProblem(w, http.StatusBadRequest, "Create route failed", err.Error(), r.URL.Path)
            }
            return
        }
        writeJSON(w, http.StatusCreated, route)
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListRoutes(r.Context(), cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List routes failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// RouteByIDHandler handles /v1/routes/{id} and its subresources:
// details, stats, optimize, positions, events/stream and
// stops/{stopId}/complete|reschedule.
func (s *Server) RouteByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/routes/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]

    if len(parts) == 1 {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        route, err := s.Store.GetRoute(r.Context(), id)
        if err != nil {
            writeProblem(w, storeStatus(err), "Route not found", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, route)
        return
    }

    switch parts[1] {
    case "details":
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        details, err := s.Manager.RouteDetails(r.Context(), id)
        if err != nil {
            writeProblem(w, storeStatus(err), "Route details failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"routeId": id, "stops": details})
    case "stats":
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        st, err := s.Store.RouteStats(r.Context(), id)
        if err != nil {
            writeProblem(w, storeStatus(err), "Route stats failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, st)
    case "optimize":
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        s.optimizeRoute(w, r, id)
    case "positions":
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        writeJSON(w, http.StatusOK, map[string]any{"items": s.Positions.ListByRoute(r.Context(), id)})
    case "events":
        if len(parts) > 2 && parts[2] == "stream" {
            if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
            s.streamRouteEvents(w, r, id)
            return
        }
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
    case "stops":
        if len(parts) < 4 {
            writeProblem(w, http.StatusNotFound, "Not Found", "missing stop action", r.URL.Path)
            return
        }
        stopID, action := parts[2], parts[3]
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        switch action {
        case "complete":
            s.completeStop(w, r, id, stopID)
        case "reschedule":
            s.rescheduleStop(w, r, id, stopID)
        default:
            writeProblem(w, http.StatusNotFound, "Not Found", "unknown stop action", r.URL.Path)
        }
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
    }
}

func (s *Server) optimizeRoute(w http.ResponseWriter, r *http.Request, id string) {
    if s.Optimizer == nil {
        writeProblem(w, http.StatusServiceUnavailable, "Optimizer not configured", "set DIRECTIONS_URL", r.URL.Path)
        return
    }
    route, err := s.Store.GetRoute(r.Context(), id)
    if err != nil {
        writeProblem(w, storeStatus(err), "Route not found", err.Error(), r.URL.Path)
        return
    }
    locs := map[string]*model.GeoPoint{}
    for _, st := range route.Stops {
        o, err := s.Store.GetOrder(r.Context(), st.OrderID)
        if err != nil { continue }
        locs[st.OrderID] = o.Location
    }
    origin, _ := s.Positions.Latest(r.Context(), id, route.DriverID)
    reordered, err := s.Optimizer.Reorder(r.Context(), route.Stops, locs, origin)
    if err != nil {
        s.Metrics.OptimizerCalls.WithLabelValues("error").Inc()
        writeProblem(w, http.StatusBadGateway, "Optimize failed", err.Error(), r.URL.Path)
        return
    }
    s.Metrics.OptimizerCalls.WithLabelValues("ok").Inc()
    ids := make([]string, len(reordered))
    for i, st := range reordered { ids[i] = st.ID }
    if err := s.Store.ReorderStops(r.Context(), id, ids); err != nil {
        writeProblem(w, http.StatusInternalServerError, "Persist order failed", err.Error(), r.URL.Path)
        return
    }
    s.Broker.Publish(id, RouteEvent{Type: "route.optimized", Data: map[string]any{"routeId": id, "stops": len(ids)}})
    route, err = s.Store.GetRoute(r.Context(), id)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Reload route failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, route)
}

func (s *Server) completeStop(w http.ResponseWriter, r *http.Request, routeID, stopID string) {
    r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
    if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid multipart form", err.Error(), r.URL.Path)
        return
    }
    in := dispatch.CompletionInput{RouteID: routeID, StopID: stopID}
    if f, hdr, err := r.FormFile("photo"); err == nil {
        defer f.Close()
        b, err := io.ReadAll(f)
        if err != nil {
            writeProblem(w, http.StatusBadRequest, "Read photo failed", err.Error(), r.URL.Path)
            return
        }
        in.Photo = b
        in.ContentType = hdr.Header.Get("Content-Type")
    }
    latStr, lngStr := r.FormValue("lat"), r.FormValue("lng")
    if latStr != "" && lngStr != "" {
        lat, err1 := strconv.ParseFloat(latStr, 64)
        lng, err2 := strconv.ParseFloat(lngStr, 64)
        if err1 != nil || err2 != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid coordinates", "lat/lng must be numbers", r.URL.Path)
            return
        }
        in.Position = &model.GeoPoint{Lat: lat, Lng: lng}
    }
    in.Override = r.FormValue("override") == "true" || r.FormValue("override") == "1"

    res, err := s.Manager.CompleteDelivery(r.Context(), in)
    if err != nil {
        var gfe *dispatch.GeofenceError
        switch {
        case errors.As(err, &gfe):
            writeProblem(w, http.StatusConflict, "Outside geofence", gfe.Error(), r.URL.Path)
        case errors.Is(err, dispatch.ErrPhotoRequired):
            writeProblem(w, http.StatusBadRequest, "Photo required", err.Error(), r.URL.Path)
        case errors.Is(err, dispatch.ErrStopDelivered):
            writeProblem(w, http.StatusConflict, "Stop already delivered", err.Error(), r.URL.Path)
        case errors.Is(err, store.ErrNotFound):
            writeProblem(w, http.StatusNotFound, "Stop not found", err.Error(), r.URL.Path)
        default:
            writeProblem(w, http.StatusInternalServerError, "Complete failed", err.Error(), r.URL.Path)
        }
        return
    }
    s.Broker.Publish(routeID, RouteEvent{Type: "stop.delivered", Data: map[string]any{
        "routeId": routeID, "stopId": stopID, "orderId": res.OrderID, "ts": time.Now().Format(time.RFC3339),
    }})
    writeJSON(w, http.StatusOK, res)
}

func (s *Server) rescheduleStop(w http.ResponseWriter, r *http.Request, routeID, stopID string) {
    var req model.RescheduleRequest
    if r.Body != nil { _ = json.NewDecoder(r.Body).Decode(&req) }
    if err := s.Manager.Reschedule(r.Context(), routeID, stopID, req.Note); err != nil {
        switch {
        case errors.Is(err, dispatch.ErrStopNotPending):
            writeProblem(w, http.StatusConflict, "Stop already closed", err.Error(), r.URL.Path)
        case errors.Is(err, store.ErrNotFound):
            writeProblem(w, http.StatusNotFound, "Stop not found", err.Error(), r.URL.Path)
        default:
            writeProblem(w, http.StatusInternalServerError, "Reschedule failed", err.Error(), r.URL.Path)
        }
        return
    }
    s.Broker.Publish(routeID, RouteEvent{Type: "stop.rescheduled", Data: map[string]any{
        "routeId": routeID, "stopId": stopID, "ts": time.Now().Format(time.RFC3339),
    }})
    writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) streamRouteEvents(w http.ResponseWriter, r *http.Request, id string) {
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"routeId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"routeId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// GeofenceCheckHandler handles POST /v1/geofence/check: a dry-run of the
// check-in gate with the wider check-in threshold by default.
func (s *Server) GeofenceCheckHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req model.GeofenceCheckRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    threshold := req.ThresholdM
    if threshold <= 0 { threshold = geofence.CheckInThresholdM }
    ok, dist := geofence.Validate(req.Current, req.Target, threshold, req.Override)
    result := "pass"
    if !ok { result = "fail" } else if req.Override { result = "override" }
    s.Metrics.GeofenceChecks.WithLabelValues(result).Inc()
    writeJSON(w, http.StatusOK, model.GeofenceCheckResponse{OK: ok, DistanceM: dist})
}

// PositionsHandler handles POST /v1/positions: JSON ingest of one driver
// position report.
func (s *Server) PositionsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var p model.Position
    if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := s.ingestPosition(r, p); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid position", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (s *Server) ingestPosition(r *http.Request, p model.Position) error {
    if p.RouteID == "" || p.DriverID == "" {
        return errors.New("routeId and driverId required")
    }
    if !geo.Valid(p.Lat, p.Lng) {
        return errors.New("invalid coordinates")
    }
    if p.TS == "" { p.TS = time.Now().UTC().Format(time.RFC3339) }
    if err := s.Positions.Upsert(r.Context(), p); err != nil { return err }
    s.Metrics.PositionsIngested.Inc()
    s.Broker.Publish(p.RouteID, RouteEvent{Type: "driver.position", Data: map[string]any{
        "routeId": p.RouteID, "driverId": p.DriverID, "lat": p.Lat, "lng": p.Lng, "ts": p.TS,
    }})
    return nil
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    if _, _, err := s.Store.ListRoutes(r.Context(), "", 1); err != nil {
        writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func storeStatus(err error) int {
    if errors.Is(err, store.ErrNotFound) { return http.StatusNotFound }
    return http.StatusInternalServerError
}
