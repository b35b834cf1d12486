package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/engine"
	"github.com/nnnkkk7/agriqa/pkg/logging"
	"github.com/nnnkkk7/agriqa/server/apierror"
	"github.com/nnnkkk7/agriqa/server/types"
)

// TemplateHandler lists and runs catalogue templates.
type TemplateHandler struct {
	engine  *engine.Engine
	history *engine.History
	logger  *zap.Logger
}

// NewTemplateHandler creates a new template handler. history may be nil, in
// which case asynchronous runs are refused.
func NewTemplateHandler(eng *engine.Engine, history *engine.History, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		engine:  eng,
		history: history,
		logger:  logging.OrNop(logger).Named("template_handler"),
	}
}

// List handles GET /api/v1/templates.
func (h *TemplateHandler) List(w http.ResponseWriter, _ *http.Request) {
	entries := h.engine.Catalog().List()
	infos := make([]types.TemplateInfo, 0, len(entries))
	for _, e := range entries {
		info := types.TemplateInfo{ID: e.ID, File: e.File, Description: e.Description}
		if len(e.Params) > 0 {
			info.Params = make(map[string]string, len(e.Params))
			for name, class := range e.Params {
				info.Params[name] = class.String()
			}
		}
		infos = append(infos, info)
	}
	sendJSON(w, h.logger, http.StatusOK, types.TemplatesResponse{Success: true, Data: infos})
}

// Run handles POST /api/v1/templates/{id}/run. Unit failures are reported
// per unit with a 200 response; only rejected input fails the request.
// With ?async=true the run is submitted and answered with 202 and its
// invocation status.
func (h *TemplateHandler) Run(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.engine.Catalog().Has(id) {
		sendError(w, h.logger, apierror.NewTemplateNotFoundError(id))
		return
	}

	var req types.RunRequest
	if apiErr := decodeBody(w, r, &req); apiErr != nil {
		sendError(w, h.logger, apiErr)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		h.submit(w, id, req.Params)
		return
	}

	inv, err := h.engine.Run(r.Context(), id, req.Params)
	if err != nil {
		apiErr := apierror.FromError(err)
		if apiErr.Code == apierror.CodeInternalError {
			h.logger.Error("template run failed", zap.String("template", id), zap.Error(err))
		}
		sendError(w, h.logger, apiErr)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, types.RunResponse{Success: true, Data: toRunData(inv)})
}

func (h *TemplateHandler) submit(w http.ResponseWriter, id string, raw map[string]interface{}) {
	if h.history == nil {
		sendError(w, h.logger, apierror.NewInvalidRequestError("Asynchronous runs are not enabled"))
		return
	}

	entry, err := h.history.Submit(id, raw)
	if err != nil {
		sendError(w, h.logger, apierror.FromError(err))
		return
	}
	sendJSON(w, h.logger, http.StatusAccepted, types.InvocationResponse{Success: true, Data: toInvocationStatus(entry)})
}
