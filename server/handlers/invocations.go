package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/engine"
	"github.com/nnnkkk7/agriqa/pkg/logging"
	"github.com/nnnkkk7/agriqa/server/apierror"
	"github.com/nnnkkk7/agriqa/server/types"
)

// InvocationHandler reports on and cancels asynchronous template runs.
type InvocationHandler struct {
	history *engine.History
	logger  *zap.Logger
}

// NewInvocationHandler creates a new invocation handler.
func NewInvocationHandler(history *engine.History, logger *zap.Logger) *InvocationHandler {
	return &InvocationHandler{
		history: history,
		logger:  logging.OrNop(logger).Named("invocation_handler"),
	}
}

// Get handles GET /api/v1/invocations/{id}.
func (h *InvocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invocationID(w, r)
	if !ok {
		return
	}

	entry, err := h.history.Get(id)
	if err != nil {
		sendError(w, h.logger, apierror.FromError(err))
		return
	}
	sendJSON(w, h.logger, http.StatusOK, types.InvocationResponse{Success: true, Data: toInvocationStatus(entry)})
}

// Cancel handles POST /api/v1/invocations/{id}/cancel.
func (h *InvocationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.invocationID(w, r)
	if !ok {
		return
	}

	if err := h.history.Cancel(id); err != nil {
		sendError(w, h.logger, apierror.FromError(err))
		return
	}
	h.logger.Info("invocation canceled", zap.String("invocation_id", id.String()))

	entry, err := h.history.Get(id)
	if err != nil {
		sendError(w, h.logger, apierror.FromError(err))
		return
	}
	sendJSON(w, h.logger, http.StatusOK, types.InvocationResponse{Success: true, Data: toInvocationStatus(entry)})
}

func (h *InvocationHandler) invocationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, h.logger, apierror.NewInvalidRequestError("Invalid invocation id").WithData("id", chi.URLParam(r, "id")))
		return uuid.Nil, false
	}
	return id, true
}
