package store

import (
    "context"
    "errors"
    "testing"
    "time"

    "dispatchd/internal/model"
)

func seedOrders(t *testing.T, m *Memory, n int) []string {
    t.Helper()
    ids := []string{}
    for i := 0; i < n; i++ {
        o, err := m.CreateOrder(context.Background(), model.Order{Folio: "100", TaxID: "769210296"})
        if err != nil {
            t.Fatalf("CreateOrder: %v", err)
        }
        ids = append(ids, o.ID)
    }
    return ids
}

func TestCreateRouteAssignsDenseSequence(t *testing.T) {
    m := NewMemory()
    ids := seedOrders(t, m, 3)

    r, err := m.CreateRoute(context.Background(), "north", "drv-1", ids)
    if err != nil {
        t.Fatalf("CreateRoute: %v", err)
    }
    if len(r.Stops) != 3 {
        t.Fatalf("stops: %d", len(r.Stops))
    }
    for i, s := range r.Stops {
        if s.Seq != i+1 {
            t.Fatalf("seq at %d: %d", i, s.Seq)
        }
        if s.Status != model.StopPending {
            t.Fatalf("status: %s", s.Status)
        }
    }
    for _, id := range ids {
        o, _ := m.GetOrder(context.Background(), id)
        if o.DeliveryStatus != model.OrderOutForDelivery || o.RouteID != r.ID {
            t.Fatalf("order %s not attached: %+v", id, o)
        }
    }
}

func TestCreateRouteUnknownOrder(t *testing.T) {
    m := NewMemory()
    ids := seedOrders(t, m, 1)
    _, err := m.CreateRoute(context.Background(), "r", "d", append(ids, "nope"))
    if !errors.Is(err, ErrNotFound) {
        t.Fatalf("want ErrNotFound, got %v", err)
    }
}

func TestListMatchableOrdersExcludesRouted(t *testing.T) {
    m := NewMemory()
    ids := seedOrders(t, m, 2)
    if _, err := m.CreateRoute(context.Background(), "r", "d", ids[:1]); err != nil {
        t.Fatalf("CreateRoute: %v", err)
    }
    got, err := m.ListMatchableOrders(context.Background())
    if err != nil {
        t.Fatalf("ListMatchableOrders: %v", err)
    }
    if len(got) != 1 || got[0].ID != ids[1] {
        t.Fatalf("matchable: %+v", got)
    }
}

func TestReorderStopsValidatesIDSet(t *testing.T) {
    m := NewMemory()
    ids := seedOrders(t, m, 3)
    r, _ := m.CreateRoute(context.Background(), "r", "d", ids)

    reversed := []string{r.Stops[2].ID, r.Stops[1].ID, r.Stops[0].ID}
    if err := m.ReorderStops(context.Background(), r.ID, reversed); err != nil {
        t.Fatalf("ReorderStops: %v", err)
    }
    got, _ := m.GetRoute(context.Background(), r.ID)
    for i, s := range got.Stops {
        if s.ID != reversed[i] || s.Seq != i+1 {
            t.Fatalf("stop %d: %+v", i, s)
        }
    }

    if err := m.ReorderStops(context.Background(), r.ID, reversed[:2]); err == nil {
        t.Fatal("short id list must be rejected")
    }
    bad := []string{reversed[0], reversed[1], "nope"}
    if !errors.Is(m.ReorderStops(context.Background(), r.ID, bad), ErrNotFound) {
        t.Fatal("unknown stop id must be rejected")
    }
}

func TestCompleteRouteIfDone(t *testing.T) {
    m := NewMemory()
    ids := seedOrders(t, m, 2)
    r, _ := m.CreateRoute(context.Background(), "r", "d", ids)

    done, err := m.CompleteRouteIfDone(context.Background(), r.ID)
    if err != nil || done {
        t.Fatalf("pending stops must block completion: %v %v", done, err)
    }
    now := time.Now()
    if err := m.MarkStopDelivered(context.Background(), r.ID, r.Stops[0].ID, "u", now); err != nil {
        t.Fatalf("MarkStopDelivered: %v", err)
    }
    if err := m.RescheduleStop(context.Background(), r.ID, r.Stops[1].ID, "closed"); err != nil {
        t.Fatalf("RescheduleStop: %v", err)
    }
    done, err = m.CompleteRouteIfDone(context.Background(), r.ID)
    if err != nil || !done {
        t.Fatalf("mixed terminal stops should complete route: %v %v", done, err)
    }
    got, _ := m.GetRoute(context.Background(), r.ID)
    if got.Status != model.RouteCompleted {
        t.Fatalf("status: %s", got.Status)
    }
    // second call is a no-op
    done, _ = m.CompleteRouteIfDone(context.Background(), r.ID)
    if done {
        t.Fatal("already completed route should not transition again")
    }
}

func TestRouteStatsCounts(t *testing.T) {
    m := NewMemory()
    ids := seedOrders(t, m, 3)
    r, _ := m.CreateRoute(context.Background(), "r", "d", ids)
    _ = m.MarkStopDelivered(context.Background(), r.ID, r.Stops[0].ID, "u", time.Now())
    _ = m.RescheduleStop(context.Background(), r.ID, r.Stops[1].ID, "")

    st, err := m.RouteStats(context.Background(), r.ID)
    if err != nil {
        t.Fatalf("RouteStats: %v", err)
    }
    if st.Stops != 3 || st.Delivered != 1 || st.Rescheduled != 1 || st.Pending != 1 {
        t.Fatalf("stats: %+v", st)
    }
}

func TestNotificationQueueLifecycle(t *testing.T) {
    m := NewMemory()
    id, err := m.EnqueueNotification(context.Background(), "o1", "http://cb", "s3cret", []byte(`{"a":1}`))
    if err != nil {
        t.Fatalf("EnqueueNotification: %v", err)
    }

    due, err := m.FetchDueNotifications(context.Background(), 10)
    if err != nil || len(due) != 1 || due[0].ID != id {
        t.Fatalf("due: %+v err=%v", due, err)
    }

    later := time.Now().Add(time.Hour)
    if err := m.MarkNotification(context.Background(), id, false, &later, "502"); err != nil {
        t.Fatalf("MarkNotification: %v", err)
    }
    due, _ = m.FetchDueNotifications(context.Background(), 10)
    if len(due) != 0 {
        t.Fatalf("retry scheduled in the future must not be due: %+v", due)
    }

    if err := m.MarkNotification(context.Background(), id, true, nil, ""); err != nil {
        t.Fatalf("MarkNotification success: %v", err)
    }
    due, _ = m.FetchDueNotifications(context.Background(), 10)
    if len(due) != 0 {
        t.Fatal("delivered notification must leave the queue")
    }
}

func TestListRoutesPagination(t *testing.T) {
    m := NewMemory()
    for i := 0; i < 5; i++ {
        ids := seedOrders(t, m, 1)
        if _, err := m.CreateRoute(context.Background(), "r", "d", ids); err != nil {
            t.Fatalf("CreateRoute: %v", err)
        }
    }
    page1, cur, err := m.ListRoutes(context.Background(), "", 2)
    if err != nil || len(page1) != 2 || cur == "" {
        t.Fatalf("page1: %d cur=%q err=%v", len(page1), cur, err)
    }
    page2, cur2, _ := m.ListRoutes(context.Background(), cur, 2)
    if len(page2) != 2 || page2[0].ID == page1[0].ID {
        t.Fatalf("page2 overlaps page1")
    }
    page3, cur3, _ := m.ListRoutes(context.Background(), cur2, 2)
    if len(page3) != 1 || cur3 != "" {
        t.Fatalf("page3: %d cur=%q", len(page3), cur3)
    }
}

func TestListRoutesExactlyFullLastPage(t *testing.T) {
    m := NewMemory()
    for i := 0; i < 4; i++ {
        ids := seedOrders(t, m, 1)
        if _, err := m.CreateRoute(context.Background(), "r", "d", ids); err != nil {
            t.Fatalf("CreateRoute: %v", err)
        }
    }
    _, cur, err := m.ListRoutes(context.Background(), "", 2)
    if err != nil || cur == "" { t.Fatalf("page1 cur=%q err=%v", cur, err) }
    page2, cur2, err := m.ListRoutes(context.Background(), cur, 2)
    if err != nil { t.Fatalf("page2: %v", err) }
    if len(page2) != 2 { t.Fatalf("page2 len=%d", len(page2)) }
    // the last page fills the limit exactly; there is nothing past it so
    // no cursor should come back
    if cur2 != "" { t.Fatalf("page2 cur=%q, want empty", cur2) }
}
