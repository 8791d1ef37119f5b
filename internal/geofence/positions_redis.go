package geofence

import (
    "context"
    "encoding/json"
    "time"

    redis "github.com/redis/go-redis/v9"

    "dispatchd/internal/model"
)

// RedisPositions shares driver positions across API instances. One hash per
// route keyed by driver; the stored timestamp decides staleness since Redis
// has no per-field TTL, and the whole hash expires after idle routes end.
type RedisPositions struct {
    rdb *redis.Client
    ttl time.Duration
}

func NewRedisPositions(url string, ttl time.Duration) (*RedisPositions, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    if ttl <= 0 { ttl = 5 * time.Minute }
    return &RedisPositions{rdb: redis.NewClient(opt), ttl: ttl}, nil
}

type redisEntry struct {
    model.Position
    At time.Time `json:"at"`
}

func routeHash(routeID string) string { return "pos:" + routeID }

func (c *RedisPositions) Upsert(ctx context.Context, p model.Position) error {
    if p.RouteID == "" || p.DriverID == "" { return nil }
    b, _ := json.Marshal(redisEntry{Position: p, At: time.Now().UTC()})
    pipe := c.rdb.Pipeline()
    pipe.HSet(ctx, routeHash(p.RouteID), p.DriverID, b)
    pipe.Expire(ctx, routeHash(p.RouteID), 24*time.Hour)
    _, err := pipe.Exec(ctx)
    return err
}

func (c *RedisPositions) Latest(ctx context.Context, routeID, driverID string) (*model.GeoPoint, bool) {
    v, err := c.rdb.HGet(ctx, routeHash(routeID), driverID).Result()
    if err != nil { return nil, false }
    var e redisEntry
    if json.Unmarshal([]byte(v), &e) != nil { return nil, false }
    if time.Since(e.At) > c.ttl { return nil, false }
    return &model.GeoPoint{Lat: e.Lat, Lng: e.Lng}, true
}

func (c *RedisPositions) ListByRoute(ctx context.Context, routeID string) []model.Position {
    vals, err := c.rdb.HGetAll(ctx, routeHash(routeID)).Result()
    if err != nil { return []model.Position{} }
    out := []model.Position{}
    for _, v := range vals {
        var e redisEntry
        if json.Unmarshal([]byte(v), &e) == nil && time.Since(e.At) <= c.ttl {
            out = append(out, e.Position)
        }
    }
    return out
}
