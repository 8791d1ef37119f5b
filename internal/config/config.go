package config

import (
    "fmt"
    "os"
    "strconv"
    "time"

    "github.com/joho/godotenv"
    "gopkg.in/yaml.v3"
)

// Config is assembled in three layers: defaults, then an optional YAML file
// (CONFIG_FILE, default config.yaml if present), then environment variables.
// Env wins so docker-compose and CI can override a checked-in file.
type Config struct {
    Port        string  `yaml:"port"`
    DatabaseURL string  `yaml:"database_url"`
    RedisURL    string  `yaml:"redis_url"`

    DirectionsURL string `yaml:"directions_url"`
    DirectionsKey string `yaml:"directions_key"`

    BlobURL string `yaml:"blob_url"`

    NotifyURL         string `yaml:"notify_url"`
    NotifySecret      string `yaml:"notify_secret"`
    NotifyMaxAttempts int    `yaml:"notify_max_attempts"`

    DepotLat float64 `yaml:"depot_lat"`
    DepotLng float64 `yaml:"depot_lng"`

    PositionTTL time.Duration `yaml:"position_ttl"`
}

func defaults() Config {
    return Config{
        Port:              "8080",
        NotifyMaxAttempts: 8,
        PositionTTL:       10 * time.Minute,
    }
}

// Load reads .env (if present), the YAML file, then env overrides.
func Load() (Config, error) {
    _ = godotenv.Load()

    cfg := defaults()
    path := os.Getenv("CONFIG_FILE")
    optional := path == ""
    if optional { path = "config.yaml" }
    if b, err := os.ReadFile(path); err == nil {
        if err := yaml.Unmarshal(b, &cfg); err != nil {
            return cfg, fmt.Errorf("parse %s: %w", path, err)
        }
    } else if !optional {
        return cfg, fmt.Errorf("read %s: %w", path, err)
    }

    overrideStr(&cfg.Port, "PORT")
    overrideStr(&cfg.DatabaseURL, "DATABASE_URL")
    overrideStr(&cfg.RedisURL, "REDIS_URL")
    overrideStr(&cfg.DirectionsURL, "DIRECTIONS_URL")
    overrideStr(&cfg.DirectionsKey, "DIRECTIONS_KEY")
    overrideStr(&cfg.BlobURL, "BLOB_URL")
    overrideStr(&cfg.NotifyURL, "NOTIFY_URL")
    overrideStr(&cfg.NotifySecret, "NOTIFY_SECRET")
    if err := overrideInt(&cfg.NotifyMaxAttempts, "NOTIFY_MAX_ATTEMPTS"); err != nil { return cfg, err }
    if err := overrideFloat(&cfg.DepotLat, "DEPOT_LAT"); err != nil { return cfg, err }
    if err := overrideFloat(&cfg.DepotLng, "DEPOT_LNG"); err != nil { return cfg, err }
    if err := overrideDur(&cfg.PositionTTL, "POSITION_TTL"); err != nil { return cfg, err }
    return cfg, nil
}

func overrideStr(dst *string, key string) {
    if v := os.Getenv(key); v != "" { *dst = v }
}

func overrideInt(dst *int, key string) error {
    v := os.Getenv(key)
    if v == "" { return nil }
    n, err := strconv.Atoi(v)
    if err != nil { return fmt.Errorf("%s: %w", key, err) }
    *dst = n
    return nil
}

func overrideFloat(dst *float64, key string) error {
    v := os.Getenv(key)
    if v == "" { return nil }
    f, err := strconv.ParseFloat(v, 64)
    if err != nil { return fmt.Errorf("%s: %w", key, err) }
    *dst = f
    return nil
}

func overrideDur(dst *time.Duration, key string) error {
    v := os.Getenv(key)
    if v == "" { return nil }
    d, err := time.ParseDuration(v)
    if err != nil { return fmt.Errorf("%s: %w", key, err) }
    *dst = d
    return nil
}
