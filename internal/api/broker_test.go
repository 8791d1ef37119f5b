package api

import (
    "testing"
    "time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    rid := "r1"
    ch := b.Subscribe(rid)

    evt := RouteEvent{Type: "driver.position", Data: map[string]any{"lat": 1.0}}
    b.Publish(rid, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["lat"].(float64) != 1.0 { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(rid, ch)
    select {
    case _, ok := <-ch:
        if ok { t.Fatal("channel should be closed after unsubscribe") }
    case <-time.After(50 * time.Millisecond):
        // acceptable if already drained and closed
    }
}

func TestBrokerDropsSlowSubscribers(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("r1")
    // fill the buffer past capacity, Publish must not block
    for i := 0; i < 20; i++ {
        b.Publish("r1", RouteEvent{Type: "driver.position"})
    }
    drained := 0
    for {
        select {
        case <-ch:
            drained++
            continue
        default:
        }
        break
    }
    if drained == 0 || drained > 8 {
        t.Fatalf("drained %d events, want buffered amount", drained)
    }
}
