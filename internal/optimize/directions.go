package optimize

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net"
    "net/http"
    "time"

    "golang.org/x/time/rate"

    "dispatchd/internal/model"
)

// Provider returns the optimized visiting order for a set of waypoints as a
// permutation of their indices. Implementations are external black boxes so
// tests can substitute a deterministic fake.
type Provider interface {
    Reorder(ctx context.Context, origin, destination model.GeoPoint, waypoints []model.GeoPoint) ([]int, error)
}

type directionsRequest struct {
    Origin            model.GeoPoint   `json:"origin"`
    Destination       model.GeoPoint   `json:"destination"`
    Waypoints         []model.GeoPoint `json:"waypoints"`
    Mode              string           `json:"mode"`
    OptimizeWaypoints bool             `json:"optimizeWaypoints"`
}

type directionsResponse struct {
    Status        string `json:"status"`
    WaypointOrder []int  `json:"waypoint_order"`
}

// DirectionsClient talks to the external directions/optimization service.
// Calls are rate limited against the provider quota and transient failures
// are retried with backoff.
type DirectionsClient struct {
    URL     string
    Key     string
    HTTP    *http.Client
    limiter *rate.Limiter
}

func NewDirectionsClient(url, key string) *DirectionsClient {
    return &DirectionsClient{
        URL:     url,
        Key:     key,
        HTTP:    &http.Client{Timeout: 10 * time.Second},
        limiter: rate.NewLimiter(rate.Limit(5), 5),
    }
}

func (c *DirectionsClient) Reorder(ctx context.Context, origin, destination model.GeoPoint, waypoints []model.GeoPoint) ([]int, error) {
    if err := c.limiter.Wait(ctx); err != nil {
        return nil, err
    }
    body, _ := json.Marshal(directionsRequest{
        Origin:            origin,
        Destination:       destination,
        Waypoints:         waypoints,
        Mode:              "driving",
        OptimizeWaypoints: true,
    })

    var lastErr error
    backoff := 200 * time.Millisecond
    for attempt := 1; attempt <= 3; attempt++ {
        if err := ctx.Err(); err != nil {
            return nil, err
        }
        order, retryable, err := c.once(ctx, body)
        if err == nil {
            return order, nil
        }
        lastErr = err
        if !retryable || attempt == 3 {
            break
        }
        timer := time.NewTimer(backoff)
        select {
        case <-ctx.Done():
            timer.Stop()
            return nil, ctx.Err()
        case <-timer.C:
        }
        backoff *= 2
    }
    return nil, lastErr
}

func (c *DirectionsClient) once(ctx context.Context, body []byte) ([]int, bool, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
    if err != nil {
        return nil, false, err
    }
    req.Header.Set("Content-Type", "application/json")
    if c.Key != "" {
        req.Header.Set("Authorization", c.Key)
    }
    resp, err := c.HTTP.Do(req)
    if err != nil {
        var netErr net.Error
        return nil, errors.As(err, &netErr), err
    }
    defer func() { _ = resp.Body.Close() }()
    if resp.StatusCode != http.StatusOK {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
        retry := resp.StatusCode == 429 || resp.StatusCode >= 500
        return nil, retry, fmt.Errorf("directions: status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
    }
    var dr directionsResponse
    if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
        return nil, false, fmt.Errorf("directions: decode: %w", err)
    }
    if dr.Status != "" && dr.Status != "OK" {
        return nil, false, fmt.Errorf("directions: provider status %s", dr.Status)
    }
    return dr.WaypointOrder, false, nil
}
