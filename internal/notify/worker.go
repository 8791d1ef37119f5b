package notify

import (
    "bytes"
    "context"
    "fmt"
    "io"
    "log"
    "net/http"
    "time"

    "dispatchd/internal/metrics"
    "dispatchd/internal/store"
)

// Worker drains the notification queue: POST the payload, mark delivered on
// 2xx, otherwise back off exponentially until MaxAttempts, then dead-letter
// the row as failed.
type Worker struct {
    Store       store.Store
    Client      *http.Client
    Interval    time.Duration
    BatchSize   int
    MaxAttempts int
    Metrics     *metrics.Metrics
    Log         *log.Logger
}

func NewWorker(s store.Store, m *metrics.Metrics, lg *log.Logger) *Worker {
    return &Worker{
        Store:       s,
        Client:      &http.Client{Timeout: 15 * time.Second},
        Interval:    5 * time.Second,
        BatchSize:   50,
        MaxAttempts: 8,
        Metrics:     m,
        Log:         lg,
    }
}

func (w *Worker) Run(ctx context.Context) {
    t := time.NewTicker(w.Interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            w.tick(ctx)
        }
    }
}

func (w *Worker) tick(ctx context.Context) {
    due, err := w.Store.FetchDueNotifications(ctx, w.BatchSize)
    if err != nil {
        w.logf("fetch due notifications: %v", err)
        return
    }
    for _, n := range due {
        w.deliver(ctx, n)
    }
}

func (w *Worker) deliver(ctx context.Context, n store.Notification) {
    err := w.post(ctx, n)
    if err == nil {
        if w.Metrics != nil { w.Metrics.NotifyDeliveries.WithLabelValues("delivered").Inc() }
        if err := w.Store.MarkNotification(ctx, n.ID, true, nil, ""); err != nil {
            w.logf("mark notification %s delivered: %v", n.ID, err)
        }
        return
    }
    if n.Attempts+1 >= w.MaxAttempts {
        if w.Metrics != nil { w.Metrics.NotifyDeliveries.WithLabelValues("failed").Inc() }
        w.logf("notification %s dead-lettered after %d attempts: %v", n.ID, n.Attempts+1, err)
        if err := w.Store.FailNotification(ctx, n.ID, err.Error()); err != nil {
            w.logf("fail notification %s: %v", n.ID, err)
        }
        return
    }
    if w.Metrics != nil { w.Metrics.NotifyDeliveries.WithLabelValues("retry").Inc() }
    next := time.Now().Add(backoff(n.Attempts))
    if err := w.Store.MarkNotification(ctx, n.ID, false, &next, err.Error()); err != nil {
        w.logf("mark notification %s retry: %v", n.ID, err)
    }
}

func (w *Worker) post(ctx context.Context, n store.Notification) error {
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(n.Payload))
    if err != nil { return err }
    req.Header.Set("Content-Type", "application/json")
    if n.Secret != "" { req.Header.Set("X-Signature", Sign(n.Secret, n.Payload)) }
    resp, err := w.Client.Do(req)
    if err != nil { return err }
    defer resp.Body.Close()
    _, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
    if resp.StatusCode < 200 || resp.StatusCode > 299 {
        return fmt.Errorf("status %d", resp.StatusCode)
    }
    return nil
}

// backoff doubles per attempt starting at one minute, capped at an hour.
func backoff(attempts int) time.Duration {
    if attempts > 6 { attempts = 6 }
    return time.Minute << uint(attempts)
}

func (w *Worker) logf(format string, args ...any) {
    if w.Log != nil { w.Log.Printf(format, args...) }
}
