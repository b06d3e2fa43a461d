package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/carledger/internal/client/config"
	"github.com/dmitrijs2005/carledger/internal/client/gateway"
	"github.com/dmitrijs2005/carledger/internal/client/kvstore"
	"github.com/dmitrijs2005/carledger/internal/client/local"
	"github.com/dmitrijs2005/carledger/internal/client/migration"
	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/monitor"
	"github.com/dmitrijs2005/carledger/internal/client/remote"
	"github.com/dmitrijs2005/carledger/internal/client/statusapi"
	"github.com/dmitrijs2005/carledger/internal/client/syncer"
	"github.com/dmitrijs2005/carledger/internal/cryptox"
	"github.com/dmitrijs2005/carledger/internal/filex"
	"github.com/dmitrijs2005/carledger/internal/logging"
)

const dbFileName = "carledger.db"

var (
	ErrUnknownBackend = errors.New("unknown local backend")
	ErrNoUser         = errors.New("user id is required")
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	registry *local.Registry
	gateways *gateway.Set
	engine   *syncer.Engine
	monitor  *monitor.Monitor
	migrator *migration.Runner
	reader   *bufio.Reader
	out      io.Writer
	closers  []io.Closer

	mu     sync.Mutex
	userID string
}

// NewApp opens the local store and the remote connection described by cfg
// and wires the sync components on top of them.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	store, closers, err := openStore(ctx, cfg, os.Stdout)
	if err != nil {
		return nil, err
	}

	rs, err := remote.NewGRPCStore(cfg.ServerEndpointAddr, cfg.AccessToken, cfg.RequestTimeout)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	closers = append(closers, rs)

	a, err := assemble(cfg, store, rs, logger, bufio.NewReader(os.Stdin), os.Stdout)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	a.closers = closers
	return a, nil
}

// openStore builds the key-value store for the configured backend,
// wrapped in an EncryptedStore when encryption is on.
func openStore(ctx context.Context, cfg *config.Config, w io.Writer) (kvstore.Store, []io.Closer, error) {
	var (
		store   kvstore.Store
		closers []io.Closer
	)

	switch cfg.Backend {
	case config.BackendMemory:
		store = kvstore.NewMemoryStore()

	case config.BackendS3:
		s3, err := kvstore.NewS3Store(ctx, kvstore.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		store = s3

	case config.BackendSQLite, "":
		dir, err := filex.EnsureDataDir(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		db, err := kvstore.OpenSQLite(ctx, filepath.Join(dir, dbFileName))
		if err != nil {
			return nil, nil, fmt.Errorf("open local database: %w", err)
		}
		store = kvstore.NewSQLiteStore(db)
		closers = append(closers, db)

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	if !cfg.Encrypt {
		return store, closers, nil
	}

	pass, err := GetPassword(w, "Passphrase: ")
	if err != nil {
		closeAll(closers)
		return nil, nil, err
	}
	defer cryptox.Wipe(pass)

	enc, err := kvstore.NewEncryptedStore(ctx, store, pass)
	if err != nil {
		closeAll(closers)
		return nil, nil, err
	}
	return enc, closers, nil
}

func assemble(cfg *config.Config, store kvstore.Store, rs remote.Store, logger logging.Logger, in *bufio.Reader, out io.Writer) (*App, error) {
	policy, err := syncer.ParsePolicy(cfg.QueuePolicy)
	if err != nil {
		return nil, err
	}

	schema := models.DefaultSchema()
	reg := local.NewRegistry(store, schema, logger)
	set := gateway.NewSet(reg, rs, logger)
	engine := syncer.New(reg, rs, logger, syncer.WithPolicy(policy), syncer.WithMaxAttempts(cfg.MaxAttempts))

	a := &App{
		config:   cfg,
		logger:   logger,
		registry: reg,
		gateways: set,
		engine:   engine,
		migrator: migration.New(store, set, schema, logger),
		reader:   in,
		out:      out,
		userID:   cfg.UserID,
	}

	a.monitor = monitor.New(engine, rs, a.session, monitor.Config{
		CheckInterval:    cfg.OnlineCheckInterval,
		PingTimeout:      cfg.RequestTimeout,
		Debounce:         cfg.DebounceDelay,
		SuccessWindow:    cfg.SuccessWindow,
		ErrorWindow:      cfg.ErrorWindow,
		PeriodicInterval: cfg.SyncInterval,
	}, logger)

	return a, nil
}

func (a *App) session() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID, a.userID != ""
}

func (a *App) setUser(id string) {
	a.mu.Lock()
	a.userID = id
	a.mu.Unlock()
}

func (a *App) user() string {
	id, _ := a.session()
	return id
}

// Run asks for the user id if the config has none, migrates legacy local
// data once, starts the connectivity monitor and the status API, and
// blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.user() == "" {
		id, err := GetSimpleText(a.reader, "User id:", a.out)
		if err != nil {
			return err
		}
		if id == "" {
			return ErrNoUser
		}
		a.setUser(id)
	}

	a.migrateOnStart(ctx)

	go a.monitor.Run(ctx)

	if a.config.StatusAddr != "" {
		go func() {
			handler := statusapi.New(a.monitor, a.registry, a.logger)
			if err := statusapi.Serve(ctx, a.config.StatusAddr, handler, a.logger); err != nil {
				a.logger.Error(ctx, "status api stopped", "error", err)
			}
		}()
	}

	printlnFn("Type 'help' for the list of commands.")
	runREPL(ctx, a, a.prompt, a.reader)
	return nil
}

func (a *App) migrateOnStart(ctx context.Context) {
	res, err := a.migrator.RunOnce(ctx, a.user())
	if err != nil {
		a.logger.Warn(ctx, "legacy migration failed", "error", err)
		return
	}
	if res.AlreadyDone || res.MigratedCount == 0 {
		return
	}
	fmt.Fprintln(a.out, migrationSummary(res))
}

func (a *App) prompt() string {
	return stateLabel(a.monitor.State())
}

// Close releases the local database and the remote connection.
func (a *App) Close() {
	closeAll(a.closers)
	a.closers = nil
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i].Close()
	}
}
