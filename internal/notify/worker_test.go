package notify

import (
    "context"
    "crypto/hmac"
    "encoding/json"
    "io"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "dispatchd/internal/model"
    "dispatchd/internal/store"
)

func TestPublisherEnqueuesSignedPayload(t *testing.T) {
    m := store.NewMemory()
    at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
    p := &Publisher{Store: m, URL: "http://cb", Secret: "s3cret"}
    p.DeliveryCompleted(context.Background(), model.Order{ID: "o1", Folio: "42", DeliveryPhotoURL: "http://b/p.jpg", DeliveredAt: &at})

    due, err := m.FetchDueNotifications(context.Background(), 10)
    if err != nil || len(due) != 1 {
        t.Fatalf("due: %+v err=%v", due, err)
    }
    var ev map[string]any
    if err := json.Unmarshal(due[0].Payload, &ev); err != nil {
        t.Fatalf("payload: %v", err)
    }
    if ev["event"] != "delivery.completed" || ev["orderId"] != "o1" || ev["folio"] != "42" {
        t.Fatalf("event: %+v", ev)
    }
    if due[0].Secret != "s3cret" || due[0].URL != "http://cb" {
        t.Fatalf("row: %+v", due[0])
    }
}

func TestPublisherNoURLIsNoop(t *testing.T) {
    m := store.NewMemory()
    (&Publisher{Store: m}).DeliveryCompleted(context.Background(), model.Order{ID: "o1"})
    due, _ := m.FetchDueNotifications(context.Background(), 10)
    if len(due) != 0 {
        t.Fatal("no callback URL configured, nothing should be queued")
    }
}

func TestWorkerDeliversAndSigns(t *testing.T) {
    var gotSig string
    var gotBody []byte
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        gotSig = r.Header.Get("X-Signature")
        gotBody, _ = io.ReadAll(r.Body)
    }))
    defer srv.Close()

    m := store.NewMemory()
    id, _ := m.EnqueueNotification(context.Background(), "o1", srv.URL, "s3cret", []byte(`{"a":1}`))
    w := NewWorker(m, nil, nil)
    w.tick(context.Background())

    if !hmac.Equal([]byte(gotSig), []byte(Sign("s3cret", gotBody))) {
        t.Fatalf("signature mismatch: %q", gotSig)
    }
    due, _ := m.FetchDueNotifications(context.Background(), 10)
    if len(due) != 0 {
        t.Fatalf("notification %s should be delivered", id)
    }
}

func TestWorkerSchedulesRetry(t *testing.T) {
    calls := 0
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        calls++
        w.WriteHeader(http.StatusBadGateway)
    }))
    defer srv.Close()

    m := store.NewMemory()
    _, _ = m.EnqueueNotification(context.Background(), "o1", srv.URL, "", []byte(`{}`))
    w := NewWorker(m, nil, nil)
    w.tick(context.Background())

    if calls != 1 {
        t.Fatalf("calls: %d", calls)
    }
    due, _ := m.FetchDueNotifications(context.Background(), 10)
    if len(due) != 0 {
        t.Fatal("retry must be scheduled in the future, not immediately due")
    }
    // worker does not re-post until the backoff elapses
    w.tick(context.Background())
    if calls != 1 {
        t.Fatalf("backed-off row was re-posted: %d calls", calls)
    }
}

func TestWorkerDeadLettersAtMaxAttempts(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusBadGateway)
    }))
    defer srv.Close()

    m := store.NewMemory()
    _, _ = m.EnqueueNotification(context.Background(), "o1", srv.URL, "", []byte(`{}`))
    w := NewWorker(m, nil, nil)
    w.MaxAttempts = 1
    w.tick(context.Background())

    due, _ := m.FetchDueNotifications(context.Background(), 10)
    if len(due) != 0 {
        t.Fatal("dead-lettered notification must leave the queue")
    }
}

func TestBackoffDoublesAndCaps(t *testing.T) {
    if backoff(0) != time.Minute {
        t.Fatalf("first retry: %v", backoff(0))
    }
    if backoff(1) != 2*time.Minute {
        t.Fatalf("second retry: %v", backoff(1))
    }
    if backoff(20) != 64*time.Minute {
        t.Fatalf("cap: %v", backoff(20))
    }
}
