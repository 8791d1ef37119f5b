package notify

import (
    "context"
    "encoding/json"
    "log"
    "time"

    "dispatchd/internal/model"
    "dispatchd/internal/store"
)

// Publisher enqueues delivery-completed callbacks. Enqueue failures are
// logged and dropped: notifications never block or fail a completion.
type Publisher struct {
    Store  store.Store
    URL    string
    Secret string
    Log    *log.Logger
}

type deliveryEvent struct {
    Event       string    `json:"event"`
    OrderID     string    `json:"orderId"`
    Folio       string    `json:"folio"`
    PhotoURL    string    `json:"photoUrl,omitempty"`
    DeliveredAt time.Time `json:"deliveredAt"`
}

func (p *Publisher) DeliveryCompleted(ctx context.Context, o model.Order) {
    if p.URL == "" { return }
    at := time.Now().UTC()
    if o.DeliveredAt != nil { at = *o.DeliveredAt }
    payload, err := json.Marshal(deliveryEvent{
        Event: "delivery.completed", OrderID: o.ID, Folio: o.Folio,
        PhotoURL: o.DeliveryPhotoURL, DeliveredAt: at,
    })
    if err != nil { return }
    if _, err := p.Store.EnqueueNotification(ctx, o.ID, p.URL, p.Secret, payload); err != nil {
        if p.Log != nil { p.Log.Printf("enqueue notification for order %s: %v", o.ID, err) }
    }
}
