package config

import "time"

// Config holds runtime settings for the carledger client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the record store gRPC endpoint.
//   - OnlineCheckInterval / RequestTimeout: connectivity probe period and per-call deadline.
//   - DataDir / Backend: where the local key-value store lives (sqlite, memory or s3).
//   - S3*: object storage settings for the s3 backend.
//   - Encrypt: seal local values with a passphrase-derived key.
//   - UserID / AccessToken: the session; both opaque to the client.
//   - StatusAddr: listen address of the local status API, empty disables it.
//   - DebounceDelay, SuccessWindow, ErrorWindow, SyncInterval: scheduler timings.
//   - MaxAttempts / QueuePolicy: queue replay policy ("retain" or "clear").
//   - LogLevel: debug, info, warn or error.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	DataDir             string
	Backend             string
	S3Endpoint          string
	S3Region            string
	S3Bucket            string
	S3Prefix            string
	S3AccessKey         string
	S3SecretKey         string
	Encrypt             bool
	UserID              string
	AccessToken         string
	StatusAddr          string
	DebounceDelay       time.Duration
	SuccessWindow       time.Duration
	ErrorWindow         time.Duration
	SyncInterval        time.Duration
	MaxAttempts         int
	QueuePolicy         string
	LogLevel            string
}

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendS3     = "s3"
)

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 5 * time.Second
	c.DataDir = ".carledger"
	c.Backend = BackendSQLite
	c.S3Region = "us-east-1"
	c.S3Prefix = "carledger"
	c.StatusAddr = "127.0.0.1:8089"
	c.DebounceDelay = time.Second
	c.SuccessWindow = 3 * time.Second
	c.ErrorWindow = 5 * time.Second
	c.MaxAttempts = 5
	c.QueuePolicy = "retain"
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a config file (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
