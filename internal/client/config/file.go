package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/carledger/internal/flagx"
	"github.com/dmitrijs2005/carledger/internal/timex"
)

// FileConfig is a DTO used exclusively for config file unmarshalling.
// Durations use timex.Duration so files can specify them either as strings
// like "3s" or as integer nanoseconds.
type FileConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	DataDir             string         `json:"data_dir" yaml:"data_dir"`
	Backend             string         `json:"backend" yaml:"backend"`
	S3Endpoint          string         `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3Region            string         `json:"s3_region" yaml:"s3_region"`
	S3Bucket            string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix            string         `json:"s3_prefix" yaml:"s3_prefix"`
	S3AccessKey         string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	Encrypt             bool           `json:"encrypt" yaml:"encrypt"`
	UserID              string         `json:"user_id" yaml:"user_id"`
	AccessToken         string         `json:"access_token" yaml:"access_token"`
	StatusAddr          string         `json:"status_addr" yaml:"status_addr"`
	DebounceDelay       timex.Duration `json:"debounce_delay" yaml:"debounce_delay"`
	SuccessWindow       timex.Duration `json:"success_window" yaml:"success_window"`
	ErrorWindow         timex.Duration `json:"error_window" yaml:"error_window"`
	SyncInterval        timex.Duration `json:"sync_interval" yaml:"sync_interval"`
	MaxAttempts         int            `json:"max_attempts" yaml:"max_attempts"`
	QueuePolicy         string         `json:"queue_policy" yaml:"queue_policy"`
	LogLevel            string         `json:"log_level" yaml:"log_level"`
}

func toFile(c *Config) FileConfig {
	return FileConfig{
		ServerEndpointAddr:  c.ServerEndpointAddr,
		OnlineCheckInterval: timex.Duration{Duration: c.OnlineCheckInterval},
		RequestTimeout:      timex.Duration{Duration: c.RequestTimeout},
		DataDir:             c.DataDir,
		Backend:             c.Backend,
		S3Endpoint:          c.S3Endpoint,
		S3Region:            c.S3Region,
		S3Bucket:            c.S3Bucket,
		S3Prefix:            c.S3Prefix,
		S3AccessKey:         c.S3AccessKey,
		S3SecretKey:         c.S3SecretKey,
		Encrypt:             c.Encrypt,
		UserID:              c.UserID,
		AccessToken:         c.AccessToken,
		StatusAddr:          c.StatusAddr,
		DebounceDelay:       timex.Duration{Duration: c.DebounceDelay},
		SuccessWindow:       timex.Duration{Duration: c.SuccessWindow},
		ErrorWindow:         timex.Duration{Duration: c.ErrorWindow},
		SyncInterval:        timex.Duration{Duration: c.SyncInterval},
		MaxAttempts:         c.MaxAttempts,
		QueuePolicy:         c.QueuePolicy,
		LogLevel:            c.LogLevel,
	}
}

func (f FileConfig) apply(c *Config) {
	c.ServerEndpointAddr = f.ServerEndpointAddr
	c.OnlineCheckInterval = f.OnlineCheckInterval.Duration
	c.RequestTimeout = f.RequestTimeout.Duration
	c.DataDir = f.DataDir
	c.Backend = f.Backend
	c.S3Endpoint = f.S3Endpoint
	c.S3Region = f.S3Region
	c.S3Bucket = f.S3Bucket
	c.S3Prefix = f.S3Prefix
	c.S3AccessKey = f.S3AccessKey
	c.S3SecretKey = f.S3SecretKey
	c.Encrypt = f.Encrypt
	c.UserID = f.UserID
	c.AccessToken = f.AccessToken
	c.StatusAddr = f.StatusAddr
	c.DebounceDelay = f.DebounceDelay.Duration
	c.SuccessWindow = f.SuccessWindow.Duration
	c.ErrorWindow = f.ErrorWindow.Duration
	c.SyncInterval = f.SyncInterval.Duration
	c.MaxAttempts = f.MaxAttempts
	c.QueuePolicy = f.QueuePolicy
	c.LogLevel = f.LogLevel
}

// parseFile overlays Config with values loaded from a config file.
//
// The path comes from -c or -config; without it nothing is loaded. Files
// ending in .yaml or .yml are read as YAML, anything else as JSON. Keys
// missing from the file keep their current value.
//
// Panics on read or unmarshal errors (caller should recover if desired).
//
// Intended usage is: defaults -> parseFile -> parseFlags, where later stages
// override earlier ones.
func parseFile(cfg *Config) {
	path := flagx.ConfigFile(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := toFile(cfg)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}
