package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ServerConfig defines HTTP server behavior.
type ServerConfig struct {
    Port            string
    ShutdownTimeout time.Duration
}

// DownloadConfig bounds remote document fetches.
type DownloadConfig struct {
    MaxBytes       int64
    ConnectTimeout time.Duration
    ReadTimeout    time.Duration
    ProbeTimeout   time.Duration
}

// GatewayConfig routes submissions between inline and deferred handling.
type GatewayConfig struct {
    SyncThreshold int64
    JobTTL        time.Duration
    InlineTimeout time.Duration
}

// WorkerConfig defines the background analysis loop.
type WorkerConfig struct {
    IdleSleep    time.Duration
    FaultBackoff time.Duration
    JobTimeout   time.Duration
    CleanupEvery time.Duration
    CleanupAge   time.Duration
}

// StoreConfig selects the job store and pricing table backends.
type StoreConfig struct {
    Backend  string // "memory"|"redis"
    RedisURL string
}

// ArchiveConfig configures encrypted document retention.
type ArchiveConfig struct {
    Enabled  bool
    Bucket   string
    Password string
}

// Config is the top-level configuration.
type Config struct {
    Logging  LoggingConfig
    Axiom    AxiomConfig
    Server   ServerConfig
    Download DownloadConfig
    Gateway  GatewayConfig
    Worker   WorkerConfig
    Store    StoreConfig
    Archive  ArchiveConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/printquote.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_printquote",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Server = ServerConfig{
        Port:            getEnv("PORT", "8080"),
        ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "15s"), 15*time.Second),
    }

    cfg.Download = DownloadConfig{
        MaxBytes:       parseInt64(getEnv("DOWNLOAD_MAX_BYTES", ""), 50<<20),
        ConnectTimeout: parseDuration(getEnv("DOWNLOAD_CONNECT_TIMEOUT", "5s"), 5*time.Second),
        ReadTimeout:    parseDuration(getEnv("DOWNLOAD_READ_TIMEOUT", "2m"), 2*time.Minute),
        ProbeTimeout:   parseDuration(getEnv("DOWNLOAD_PROBE_TIMEOUT", "5s"), 5*time.Second),
    }

    cfg.Gateway = GatewayConfig{
        SyncThreshold: parseInt64(getEnv("SYNC_THRESHOLD_BYTES", ""), 10<<20),
        JobTTL:        parseDuration(getEnv("JOB_TTL", "2h"), 2*time.Hour),
        InlineTimeout: parseDuration(getEnv("INLINE_TIMEOUT", "90s"), 90*time.Second),
    }

    cfg.Worker = WorkerConfig{
        IdleSleep:    parseDuration(getEnv("WORKER_IDLE_SLEEP", "1s"), time.Second),
        FaultBackoff: parseDuration(getEnv("WORKER_FAULT_BACKOFF", "5s"), 5*time.Second),
        JobTimeout:   parseDuration(getEnv("WORKER_JOB_TIMEOUT", "5m"), 5*time.Minute),
        CleanupEvery: parseDuration(getEnv("TEMP_CLEANUP_INTERVAL", "10m"), 10*time.Minute),
        CleanupAge:   parseDuration(getEnv("TEMP_CLEANUP_AGE", "1h"), time.Hour),
    }

    cfg.Store = StoreConfig{
        Backend:  strings.ToLower(getEnv("STORE_BACKEND", "memory")),
        RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
    }

    cfg.Archive = ArchiveConfig{
        Enabled:  parseBool(getEnv("ARCHIVE_ENABLED", "0")),
        Bucket:   getEnv("ARCHIVE_S3_BUCKET", ""),
        Password: getEnv("ARCHIVE_PASSWORD", ""),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseInt64(s string, def int64) int64 {
    if s == "" { return def }
    if n, err := strconv.ParseInt(s, 10, 64); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
