package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "dispatchd/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// MigrateDir applies *.sql files in lexical order (dev helper).
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    names := []string{}
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { names = append(names, e.Name()) }
    }
    sort.Strings(names)
    for _, name := range names {
        b, err := os.ReadFile(filepath.Join(dir, name))
        if err != nil { return err }
        if _, err := p.db.Exec(string(b)); err != nil {
            return fmt.Errorf("migrate %s: %w", name, err)
        }
    }
    return nil
}

func (p *Postgres) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
    if o.ID == "" { o.ID = uuid.New().String() }
    if o.DeliveryStatus == "" { o.DeliveryStatus = model.OrderPending }
    var lat, lng any
    if o.Location != nil { lat, lng = o.Location.Lat, o.Location.Lng }
    _, err := p.db.ExecContext(ctx, `INSERT INTO orders (id, folio, tax_id, client_name, address, lat, lng, delivery_status) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
        o.ID, o.Folio, nullIfEmpty(o.TaxID), nullIfEmpty(o.ClientName), nullIfEmpty(o.Address), lat, lng, o.DeliveryStatus)
    if err != nil { return model.Order{}, err }
    return o, nil
}

const orderCols = `id::text, folio, COALESCE(tax_id,''), COALESCE(client_name,''), COALESCE(address,''), lat, lng, delivery_status, COALESCE(route_id::text,''), COALESCE(delivery_photo_url,''), delivered_at`

func scanOrder(row interface{ Scan(...any) error }) (model.Order, error) {
    var o model.Order
    var lat, lng sql.NullFloat64
    var deliveredAt sql.NullTime
    if err := row.Scan(&o.ID, &o.Folio, &o.TaxID, &o.ClientName, &o.Address, &lat, &lng, &o.DeliveryStatus, &o.RouteID, &o.DeliveryPhotoURL, &deliveredAt); err != nil {
        return model.Order{}, err
    }
    if lat.Valid && lng.Valid { o.Location = &model.GeoPoint{Lat: lat.Float64, Lng: lng.Float64} }
    if deliveredAt.Valid { t := deliveredAt.Time; o.DeliveredAt = &t }
    return o, nil
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (model.Order, error) {
    o, err := scanOrder(p.db.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
    if errors.Is(err, sql.ErrNoRows) { return model.Order{}, ErrNotFound }
    return o, err
}

func (p *Postgres) ListMatchableOrders(ctx context.Context) ([]model.Order, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders WHERE delivery_status=$1 AND route_id IS NULL ORDER BY created_at, id`, model.OrderPending)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Order{}
    for rows.Next() {
        o, err := scanOrder(rows)
        if err != nil { return nil, err }
        out = append(out, o)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkOrderDelivered(ctx context.Context, orderID, photoURL string, at time.Time) error {
    res, err := p.db.ExecContext(ctx, `UPDATE orders SET delivery_status=$1, delivery_photo_url=$2, delivered_at=$3 WHERE id=$4`,
        model.OrderDelivered, photoURL, at, orderID)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// CreateRoute performs the three writes sequentially with no surrounding
// transaction: a failure after the header insert leaves the partial route in
// place and surfaces the error (operators retry with the same input).
func (p *Postgres) CreateRoute(ctx context.Context, name, driverID string, orderIDs []string) (model.Route, error) {
    r := model.Route{ID: uuid.New().String(), Name: name, DriverID: driverID, Status: model.RouteInProgress, CreatedAt: time.Now().UTC()}
    _, err := p.db.ExecContext(ctx, `INSERT INTO routes (id, name, driver_id, status, created_at) VALUES ($1,$2,$3,$4,$5)`,
        r.ID, r.Name, r.DriverID, r.Status, r.CreatedAt)
    if err != nil { return model.Route{}, err }
    for i, oid := range orderIDs {
        s := model.RouteStop{ID: uuid.New().String(), RouteID: r.ID, OrderID: oid, Seq: i + 1, Status: model.StopPending}
        _, err := p.db.ExecContext(ctx, `INSERT INTO route_stops (id, route_id, order_id, seq, status) VALUES ($1,$2,$3,$4,$5)`,
            s.ID, s.RouteID, s.OrderID, s.Seq, s.Status)
        if err != nil { return model.Route{}, fmt.Errorf("create route %s: stop %d: %w", r.ID, i+1, err) }
        r.Stops = append(r.Stops, s)
    }
    for _, oid := range orderIDs {
        _, err := p.db.ExecContext(ctx, `UPDATE orders SET delivery_status=$1, route_id=$2 WHERE id=$3`, model.OrderOutForDelivery, r.ID, oid)
        if err != nil { return model.Route{}, fmt.Errorf("create route %s: order %s: %w", r.ID, oid, err) }
    }
    return r, nil
}

func (p *Postgres) GetRoute(ctx context.Context, routeID string) (model.Route, error) {
    var r model.Route
    var driverID sql.NullString
    row := p.db.QueryRowContext(ctx, `SELECT id::text, name, driver_id::text, status, created_at FROM routes WHERE id=$1`, routeID)
    if err := row.Scan(&r.ID, &r.Name, &driverID, &r.Status, &r.CreatedAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return r, ErrNotFound }
        return r, err
    }
    r.DriverID = driverID.String
    stops, err := p.listStops(ctx, routeID)
    if err != nil { return r, err }
    r.Stops = stops
    return r, nil
}

func (p *Postgres) listStops(ctx context.Context, routeID string) ([]model.RouteStop, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, order_id::text, seq, status, COALESCE(note,''), COALESCE(proof_photo_url,''), delivered_at FROM route_stops WHERE route_id=$1 ORDER BY seq`, routeID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.RouteStop{}
    for rows.Next() {
        s := model.RouteStop{RouteID: routeID}
        var deliveredAt sql.NullTime
        if err := rows.Scan(&s.ID, &s.OrderID, &s.Seq, &s.Status, &s.Note, &s.ProofPhotoURL, &deliveredAt); err != nil { return nil, err }
        if deliveredAt.Valid { t := deliveredAt.Time; s.DeliveredAt = &t }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) ListRoutes(ctx context.Context, cursor string, limit int) ([]model.Route, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    // fetch one extra row so an exactly full last page yields no cursor
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, driver_id::text, status, created_at FROM routes WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit+1)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, driver_id::text, status, created_at FROM routes ORDER BY id LIMIT $1`, limit+1)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Route{}
    for rows.Next() {
        var r model.Route
        var driverID sql.NullString
        if err := rows.Scan(&r.ID, &r.Name, &driverID, &r.Status, &r.CreatedAt); err != nil { return nil, "", err }
        r.DriverID = driverID.String
        out = append(out, r)
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) > limit {
        out = out[:limit]
        next = out[limit-1].ID
    }
    return out, next, nil
}

func (p *Postgres) ReorderStops(ctx context.Context, routeID string, orderedStopIDs []string) error {
    cur, err := p.listStops(ctx, routeID)
    if err != nil { return err }
    if len(cur) == 0 { return ErrNotFound }
    if len(orderedStopIDs) != len(cur) {
        return fmt.Errorf("reorder stops: got %d ids for %d stops", len(orderedStopIDs), len(cur))
    }
    known := map[string]bool{}
    for _, s := range cur { known[s.ID] = true }
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func() { _ = tx.Rollback() }()
    for i, id := range orderedStopIDs {
        if !known[id] { return fmt.Errorf("reorder stops: stop %s: %w", id, ErrNotFound) }
        if _, err := tx.ExecContext(ctx, `UPDATE route_stops SET seq=$1 WHERE route_id=$2 AND id=$3`, i+1, routeID, id); err != nil { return err }
    }
    return tx.Commit()
}

func (p *Postgres) RouteStats(ctx context.Context, routeID string) (model.RouteStats, error) {
    if _, err := p.GetRoute(ctx, routeID); err != nil { return model.RouteStats{}, err }
    row := p.db.QueryRowContext(ctx, `SELECT COUNT(*),
        COALESCE(SUM(CASE WHEN status='pending' THEN 1 ELSE 0 END),0),
        COALESCE(SUM(CASE WHEN status='delivered' THEN 1 ELSE 0 END),0),
        COALESCE(SUM(CASE WHEN status='rescheduled' THEN 1 ELSE 0 END),0)
        FROM route_stops WHERE route_id=$1`, routeID)
    st := model.RouteStats{RouteID: routeID}
    if err := row.Scan(&st.Stops, &st.Pending, &st.Delivered, &st.Rescheduled); err != nil { return model.RouteStats{}, err }
    return st, nil
}

func (p *Postgres) RouteDetails(ctx context.Context, routeID string) ([]model.StopDetail, error) {
    if _, err := p.GetRoute(ctx, routeID); err != nil { return nil, err }
    rows, err := p.db.QueryContext(ctx, `SELECT s.seq, s.status, COALESCE(o.client_name,''), COALESCE(o.address,''), COALESCE(o.folio,''), s.delivered_at, COALESCE(s.proof_photo_url,'')
        FROM route_stops s LEFT JOIN orders o ON o.id = s.order_id
        WHERE s.route_id=$1 ORDER BY s.seq`, routeID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.StopDetail{}
    for rows.Next() {
        var d model.StopDetail
        var deliveredAt sql.NullTime
        if err := rows.Scan(&d.Seq, &d.Status, &d.ClientName, &d.Address, &d.Folio, &deliveredAt, &d.ProofPhotoURL); err != nil { return nil, err }
        if deliveredAt.Valid { t := deliveredAt.Time; d.DeliveredAt = &t }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) GetStop(ctx context.Context, routeID, stopID string) (model.RouteStop, error) {
    s := model.RouteStop{RouteID: routeID}
    var deliveredAt sql.NullTime
    row := p.db.QueryRowContext(ctx, `SELECT id::text, order_id::text, seq, status, COALESCE(note,''), COALESCE(proof_photo_url,''), delivered_at FROM route_stops WHERE route_id=$1 AND id=$2`, routeID, stopID)
    if err := row.Scan(&s.ID, &s.OrderID, &s.Seq, &s.Status, &s.Note, &s.ProofPhotoURL, &deliveredAt); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return s, ErrNotFound }
        return s, err
    }
    if deliveredAt.Valid { t := deliveredAt.Time; s.DeliveredAt = &t }
    return s, nil
}

func (p *Postgres) MarkStopDelivered(ctx context.Context, routeID, stopID, photoURL string, at time.Time) error {
    res, err := p.db.ExecContext(ctx, `UPDATE route_stops SET status=$1, proof_photo_url=$2, delivered_at=$3 WHERE route_id=$4 AND id=$5`,
        model.StopDelivered, photoURL, at, routeID, stopID)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) RescheduleStop(ctx context.Context, routeID, stopID, note string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE route_stops SET status=$1, note=$2 WHERE route_id=$3 AND id=$4`,
        model.StopRescheduled, nullIfEmpty(note), routeID, stopID)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) CompleteRouteIfDone(ctx context.Context, routeID string) (bool, error) {
    res, err := p.db.ExecContext(ctx, `UPDATE routes SET status=$1 WHERE id=$2 AND status<>$1
        AND NOT EXISTS (SELECT 1 FROM route_stops WHERE route_id=$2 AND status=$3)`,
        model.RouteCompleted, routeID, model.StopPending)
    if err != nil { return false, err }
    n, _ := res.RowsAffected()
    return n > 0, nil
}

// Notifications

func (p *Postgres) EnqueueNotification(ctx context.Context, orderID, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO notifications (id, order_id, url, secret, payload, status, attempts, next_attempt_at) VALUES ($1,$2,$3,$4,$5,'pending',0,now())`,
        id, orderID, url, nullIfEmpty(secret), payload)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueNotifications(ctx context.Context, limit int) ([]Notification, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, order_id::text, url, COALESCE(secret,''), payload, status, attempts
        FROM notifications WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []Notification{}
    for rows.Next() {
        var n Notification
        if err := rows.Scan(&n.ID, &n.OrderID, &n.URL, &n.Secret, &n.Payload, &n.Status, &n.Attempts); err != nil { return nil, err }
        out = append(out, n)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkNotification(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string) error {
    if success {
        _, err := p.db.ExecContext(ctx, `UPDATE notifications SET status='delivered', attempts=attempts+1, delivered_at=now() WHERE id=$1`, id)
        return err
    }
    if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
    _, err := p.db.ExecContext(ctx, `UPDATE notifications SET status='retry', attempts=attempts+1, last_error=$2, next_attempt_at=$3 WHERE id=$1`,
        id, nullIfEmpty(lastError), *nextAttemptAt)
    return err
}

func (p *Postgres) FailNotification(ctx context.Context, id string, lastError string) error {
    _, err := p.db.ExecContext(ctx, `UPDATE notifications SET status='failed', last_error=$2 WHERE id=$1`, id, nullIfEmpty(lastError))
    return err
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
