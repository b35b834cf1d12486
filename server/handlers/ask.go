package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/assistant"
	"github.com/nnnkkk7/agriqa/pkg/logging"
	"github.com/nnnkkk7/agriqa/server/apierror"
	"github.com/nnnkkk7/agriqa/server/types"
)

// AskHandler answers natural-language questions.
type AskHandler struct {
	svc    *assistant.Service
	logger *zap.Logger
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(svc *assistant.Service, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		svc:    svc,
		logger: logging.OrNop(logger).Named("ask_handler"),
	}
}

// Ask handles POST /api/v1/ask.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req types.AskRequest
	if apiErr := decodeBody(w, r, &req); apiErr != nil {
		sendError(w, h.logger, apiErr)
		return
	}

	offline := req.Offline != nil && *req.Offline
	ans, err := h.svc.Ask(r.Context(), req.Question, offline)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyQuestion) {
			sendError(w, h.logger, apierror.NewInvalidRequestError("Question is required"))
			return
		}
		apiErr := apierror.FromError(err)
		if apiErr.Code == apierror.CodeInternalError {
			h.logger.Error("ask failed", zap.Error(err))
		}
		sendError(w, h.logger, apiErr)
		return
	}

	inv := ans.Invocation
	citations := make([]types.Citation, 0, len(ans.Citations))
	for _, c := range ans.Citations {
		citations = append(citations, types.Citation{Source: c.Source, File: c.File})
	}
	sources := ans.Sources
	if sources == nil {
		sources = []string{}
	}

	sendJSON(w, h.logger, http.StatusOK, types.AskResponse{
		Success: true,
		Data: &types.AskData{
			InvocationID: inv.ID.String(),
			Question:     ans.Question,
			Template:     inv.TemplateID,
			Mapping:      string(ans.Mapping.Source),
			Params:       ans.Mapping.Params,
			SQL:          inv.RenderedSQL,
			Results:      toStatementResults(inv.Results),
			Sources:      sources,
			Citations:    citations,
			Answer:       ans.Reply.Text,
			Model:        ans.Reply.Model,
			Fallback:     ans.Reply.Fallback,
			Offline:      ans.Offline,
			Flags:        toParamFlags(inv.Flags),
			Missing:      inv.Missing,
		},
	})
}
