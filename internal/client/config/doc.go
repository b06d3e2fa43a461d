// Package config loads runtime configuration for the carledger client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file (see parseFile) selected via flags: -c or -config.
//     YAML when the name ends in .yaml/.yml, JSON otherwise.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string          address:port of the record store gRPC endpoint
//	-i int             online status check interval (seconds)
//	-timeout duration  per-request timeout
//	-d string          local data directory
//	-backend string    sqlite | memory | s3
//	-u string          user id
//	-token string      access token
//	-status string     status API address ("" disables)
//	-policy string     retain | clear
//	-encrypt, -v       switches
//
// # File schema
//
// Durations accept strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "backend": "sqlite",
//	  "queue_policy": "retain"
//	}
//
// Note: This package does not read environment variables directly; use the
// config file or flags to configure values.
package config
