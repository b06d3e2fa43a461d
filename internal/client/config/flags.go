package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/carledger/internal/flagx"
)

var (
	valuedFlags = []string{
		"-a", "-i", "-timeout", "-d", "-backend",
		"-s3-endpoint", "-s3-region", "-s3-bucket", "-s3-prefix",
		"-u", "-token", "-status", "-debounce", "-sync-interval",
		"-max-attempts", "-policy", "-log-level",
	}
	switchFlags = []string{"-encrypt", "-v"}
)

// parseFlags populates Config fields from command-line flags.
//
// Only the flags listed in valuedFlags and switchFlags are considered;
// os.Args is filtered with flagx.FilterArgs first so -c/-config and
// anything else is left alone. S3 credentials are file-only.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], valuedFlags, switchFlags...)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per-request timeout")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "local data directory")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "local storage backend: sqlite, memory or s3")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "S3 endpoint (empty for AWS)")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "S3 key prefix")
	fs.BoolVar(&cfg.Encrypt, "encrypt", cfg.Encrypt, "encrypt local data with a passphrase")
	fs.StringVar(&cfg.UserID, "u", cfg.UserID, "user id")
	fs.StringVar(&cfg.AccessToken, "token", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.StatusAddr, "status", cfg.StatusAddr, "status API listen address (empty disables)")
	fs.DurationVar(&cfg.DebounceDelay, "debounce", cfg.DebounceDelay, "delay before syncing after reconnect")
	fs.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "periodic sync interval (0 disables)")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "refusals tolerated per queued mutation")
	fs.StringVar(&cfg.QueuePolicy, "policy", cfg.QueuePolicy, "queue policy after sync: retain or clear")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	verbose := fs.Bool("v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	if *verbose {
		cfg.LogLevel = "debug"
	}
}
