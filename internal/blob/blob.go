package blob

import (
    "bytes"
    "context"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "sync"
    "time"
)

// Store uploads proof-of-delivery photos and returns a public URL.
type Store interface {
    Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// HTTPStore PUTs objects to a bucket-style HTTP endpoint (S3-compatible
// gateway, or the dev nginx in docker-compose).
type HTTPStore struct {
    BaseURL string
    Client  *http.Client
}

func NewHTTPStore(baseURL string) *HTTPStore {
    return &HTTPStore{BaseURL: strings.TrimRight(baseURL, "/"), Client: &http.Client{Timeout: 30 * time.Second}}
}

func (s *HTTPStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
    target := s.BaseURL + "/" + url.PathEscape(key)
    req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
    if err != nil { return "", err }
    if contentType != "" { req.Header.Set("Content-Type", contentType) }
    resp, err := s.Client.Do(req)
    if err != nil { return "", err }
    defer resp.Body.Close()
    _, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
    if resp.StatusCode < 200 || resp.StatusCode > 299 {
        return "", fmt.Errorf("blob upload %s: status %d", key, resp.StatusCode)
    }
    return target, nil
}

// MemStore keeps uploads in memory for tests and the zero-config dev setup.
type MemStore struct {
    mu      sync.Mutex
    objects map[string][]byte
}

func NewMemStore() *MemStore { return &MemStore{objects: map[string][]byte{}} }

func (s *MemStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    s.objects[key] = append([]byte(nil), data...)
    return "mem://" + key, nil
}

func (s *MemStore) Get(key string) ([]byte, bool) {
    s.mu.Lock(); defer s.mu.Unlock()
    b, ok := s.objects[key]
    return b, ok
}
