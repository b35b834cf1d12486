// Package ui renders the HTML ask page.
package ui

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	gomponents "maragu.dev/gomponents"

	"github.com/nnnkkk7/agriqa/pkg/assistant"
	"github.com/nnnkkk7/agriqa/pkg/logging"
	"github.com/nnnkkk7/agriqa/server/apierror"
)

type Handler struct {
	Assistant *assistant.Service
	logger    *zap.Logger
}

func NewHandler(svc *assistant.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Assistant: svc,
		logger:    logging.OrNop(logger).Named("ui"),
	}
}

// MountRoutes registers the page routes. limit wraps the question route and
// may be nil.
func MountRoutes(r chi.Router, h *Handler, limit func(http.Handler) http.Handler) {
	r.Get("/", h.Home)
	if limit != nil {
		r.With(limit).Post("/ask", h.Ask)
		return
	}
	r.Post("/ask", h.Ask)
}

func (h *Handler) Home(w http.ResponseWriter, _ *http.Request) {
	renderHTML(w, http.StatusOK, askPage(askState{Offline: h.Assistant.Offline()}))
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderHTML(w, http.StatusBadRequest, askPage(askState{Error: "Invalid form submission."}))
		return
	}

	state := askState{
		Question: strings.TrimSpace(r.Form.Get("question")),
		Offline:  r.Form.Get("offline") != "",
	}

	ans, err := h.Assistant.Ask(r.Context(), state.Question, state.Offline)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, assistant.ErrEmptyQuestion) {
			apiErr := apierror.FromError(err)
			status = apiErr.Status()
			if apiErr.Code == apierror.CodeInternalError {
				h.logger.Error("ask failed", zap.Error(err))
			}
		}
		state.Error = err.Error()
		renderHTML(w, status, askPage(state))
		return
	}

	state.Answer = ans
	renderHTML(w, http.StatusOK, askPage(state))
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}
