package statusapi

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/monitor"
	"github.com/dmitrijs2005/carledger/internal/logging"
)

type emptyInput struct{}

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"OK"`
	}
}

type statusOutput struct {
	Body monitor.Status
}

type syncOutput struct {
	Body models.SyncResult
}

type pendingOutput struct {
	Body struct {
		Total  int            `json:"total"`
		Tables map[string]int `json:"tables"`
	}
}

type Handler struct {
	scheduler Scheduler
	pending   PendingSource
	logger    logging.Logger
}

func NewHandler(s Scheduler, p PendingSource, logger logging.Logger) *Handler {
	return &Handler{scheduler: s, pending: p, logger: logger.With("module", "statusapi")}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, healthOp(), h.health)
	huma.Register(api, statusOp(), h.status)
	huma.Register(api, syncOp(), h.sync)
	huma.Register(api, pendingOp(), h.pendingCounts)
}

func (h *Handler) health(_ context.Context, _ *emptyInput) (*healthOutput, error) {
	out := &healthOutput{}
	out.Body.Status = "OK"
	return out, nil
}

func (h *Handler) status(ctx context.Context, _ *emptyInput) (*statusOutput, error) {
	st, err := h.scheduler.Status(ctx)
	if err != nil {
		h.logger.Error(ctx, "status failed", "error", err)
		return nil, huma.Error500InternalServerError("status unavailable", err)
	}
	return &statusOutput{Body: st}, nil
}

func (h *Handler) sync(ctx context.Context, _ *emptyInput) (*syncOutput, error) {
	res, err := h.scheduler.ManualSync(ctx)
	switch {
	case errors.Is(err, monitor.ErrSyncInProgress):
		return nil, huma.Error409Conflict("a sync is already running")
	case errors.Is(err, monitor.ErrNoSession):
		return nil, huma.Error401Unauthorized("no user session")
	case err != nil:
		h.logger.Warn(ctx, "manual sync failed", "error", err)
		return nil, huma.Error500InternalServerError("sync failed", err)
	}
	return &syncOutput{Body: res}, nil
}

func (h *Handler) pendingCounts(ctx context.Context, _ *emptyInput) (*pendingOutput, error) {
	tables, err := h.pending.Pending(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("queues unreadable", err)
	}
	out := &pendingOutput{}
	out.Body.Tables = tables
	for _, n := range tables {
		out.Body.Total += n
	}
	return out, nil
}
