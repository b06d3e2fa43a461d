// Package statusapi exposes the sync scheduler over local HTTP: health,
// status snapshot, pending counts and a manual sync trigger.
package statusapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/monitor"
	"github.com/dmitrijs2005/carledger/internal/logging"
)

type Scheduler interface {
	Status(ctx context.Context) (monitor.Status, error)
	ManualSync(ctx context.Context) (models.SyncResult, error)
}

type PendingSource interface {
	Pending(ctx context.Context) (map[string]int, error)
}

// New returns a router with every operation registered.
func New(s Scheduler, p PendingSource, logger logging.Logger) *chi.Mux {
	mux := chi.NewMux()
	api := humachi.New(mux, huma.DefaultConfig("carledger sync status", "1.0.0"))
	NewHandler(s, p, logger).SetupRoutes(api)
	return mux
}

// Serve runs the API on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger logging.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "status api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
