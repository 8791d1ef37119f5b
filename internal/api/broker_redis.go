package api

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

type EventBroker interface {
    Subscribe(routeID string) chan RouteEvent
    Unsubscribe(routeID string, ch chan RouteEvent)
    Publish(routeID string, evt RouteEvent)
}

// RedisBroker implements EventBroker over Redis Pub/Sub so position streams
// work across multiple API replicas. Each subscriber owns one PubSub; the
// broker tracks it so Unsubscribe can tear the subscription down.
type RedisBroker struct {
    rdb  *redis.Client
    mu   sync.Mutex
    subs map[chan RouteEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    return &RedisBroker{rdb: redis.NewClient(opt), subs: map[chan RouteEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(routeID string) chan RouteEvent {
    ch := make(chan RouteEvent, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(routeID))
    // initial consume to ensure subscription
    _, _ = ps.Receive(ctx)
    b.mu.Lock()
    b.subs[ch] = ps
    b.mu.Unlock()
    go func() {
        // sole closer of ch: runs after ps.Channel drains, so no send can
        // race the close
        defer close(ch)
        for msg := range ps.Channel() {
            var evt RouteEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
                select { case ch <- evt: default: }
            }
        }
    }()
    return ch
}

// Unsubscribe closes the underlying PubSub. That ends ps.Channel, the
// reader goroutine exits and closes ch exactly once.
func (b *RedisBroker) Unsubscribe(routeID string, ch chan RouteEvent) {
    b.mu.Lock()
    ps := b.subs[ch]
    delete(b.subs, ch)
    b.mu.Unlock()
    if ps != nil { _ = ps.Close() }
}

func (b *RedisBroker) Publish(routeID string, evt RouteEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(evt)
    _ = b.rdb.Publish(ctx, b.chanName(routeID), data).Err()
}

func (b *RedisBroker) chanName(routeID string) string { return "dispatch:route:" + routeID }
