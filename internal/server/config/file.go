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

// FileConfig is the config file DTO. Durations accept "1m" style strings
// or integer nanoseconds.
type FileConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	AllowedTables               []string       `json:"allowed_tables" yaml:"allowed_tables"`
	RunMigrations               bool           `json:"run_migrations" yaml:"run_migrations"`
	LogLevel                    string         `json:"log_level" yaml:"log_level"`
}

// parseFile loads configuration values from the file named by -c or
// -config into cfg. Keys absent from the file keep their current value.
// .yaml and .yml files are YAML, everything else JSON. Panics if the file
// cannot be read or parsed.
func parseFile(cfg *Config) {
	path := flagx.ConfigFile(os.Args[1:])

	// nothing to load
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := FileConfig{
		EndpointAddrGRPC:            cfg.EndpointAddrGRPC,
		DatabaseDSN:                 cfg.DatabaseDSN,
		SecretKey:                   cfg.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: cfg.AccessTokenValidityDuration},
		AllowedTables:               cfg.AllowedTables,
		RunMigrations:               cfg.RunMigrations,
		LogLevel:                    cfg.LogLevel,
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	cfg.EndpointAddrGRPC = fc.EndpointAddrGRPC
	cfg.DatabaseDSN = fc.DatabaseDSN
	cfg.SecretKey = fc.SecretKey
	cfg.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	cfg.AllowedTables = fc.AllowedTables
	cfg.RunMigrations = fc.RunMigrations
	cfg.LogLevel = fc.LogLevel
}
