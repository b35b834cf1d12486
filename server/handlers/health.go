package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/connection"
	"github.com/nnnkkk7/agriqa/pkg/dataset"
	"github.com/nnnkkk7/agriqa/pkg/logging"
	"github.com/nnnkkk7/agriqa/server/types"
)

const healthTimeout = 5 * time.Second

// HealthHandler reports store reachability and view coverage.
type HealthHandler struct {
	mgr    *connection.Manager
	loader *dataset.Loader
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(mgr *connection.Manager, loader *dataset.Loader, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		mgr:    mgr,
		loader: loader,
		logger: logging.OrNop(logger).Named("health_handler"),
	}
}

// Health handles GET /health. An unreachable store answers 503; missing
// views are reported but do not fail the check.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.mgr.DB().PingContext(ctx); err != nil {
		h.logger.Warn("store ping failed", zap.Error(err))
		sendJSON(w, h.logger, http.StatusServiceUnavailable, types.HealthResponse{Status: "unavailable", Store: err.Error()})
		return
	}

	resp := types.HealthResponse{Status: "ok", Store: "ok"}
	summaries, err := h.loader.Summaries(ctx)
	if err != nil {
		h.logger.Warn("view summaries failed", zap.Error(err))
		resp.Status = "degraded"
	}
	for _, s := range summaries {
		if s.Err != "" {
			resp.Status = "degraded"
		}
		resp.Views = append(resp.Views, types.ViewSummary{
			View:    s.View,
			MinYear: s.MinYear,
			MaxYear: s.MaxYear,
			Rows:    s.Rows,
			Error:   s.Err,
		})
	}
	sendJSON(w, h.logger, http.StatusOK, resp)
}
