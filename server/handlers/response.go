// Package handlers provides HTTP handlers for the question and template API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/engine"
	"github.com/nnnkkk7/agriqa/pkg/params"
	"github.com/nnnkkk7/agriqa/pkg/query"
	"github.com/nnnkkk7/agriqa/server/apierror"
	"github.com/nnnkkk7/agriqa/server/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// sendJSON writes body with status. A body that fails to encode is answered
// with a 500 envelope.
func sendJSON(w http.ResponseWriter, logger *zap.Logger, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		logger.Error("failed to encode response", zap.Int("status", status), zap.Error(err))
		status = http.StatusInternalServerError
		data, _ = json.Marshal(apierror.NewInternalError("Failed to encode response").ToResponse())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		logger.Debug("failed to write response", zap.Error(err))
	}
}

func sendError(w http.ResponseWriter, logger *zap.Logger, err *apierror.APIError) {
	sendJSON(w, logger, err.Status(), err.ToResponse())
}

// decodeBody decodes the JSON request body into v. An empty body leaves v
// unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) *apierror.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apierror.NewInvalidRequestError("Invalid request body: " + err.Error())
	}
	return nil
}

// toStatementResults converts executed units to their wire form.
func toStatementResults(results []query.StatementResult) []types.StatementResult {
	out := make([]types.StatementResult, 0, len(results))
	for _, r := range results {
		sr := types.StatementResult{
			Label:    r.Label,
			SQL:      r.SQL,
			Combined: r.Combined,
		}
		if !r.OK() {
			sr.Error = r.Err.Error()
			out = append(out, sr)
			continue
		}
		sr.Columns = r.Table.Columns
		sr.RowType = r.Table.ColumnTypes
		sr.RowSet = r.Table.Rows
		sr.Returned = int64(r.Table.RowCount())
		out = append(out, sr)
	}
	return out
}

func toParamFlags(findings []params.Finding) []types.ParamFlag {
	if len(findings) == 0 {
		return nil
	}
	out := make([]types.ParamFlag, 0, len(findings))
	for _, f := range findings {
		out = append(out, types.ParamFlag{Name: f.Name, Fingerprint: f.Fingerprint})
	}
	return out
}

func toRunData(inv *engine.Invocation) *types.RunData {
	return &types.RunData{
		InvocationID: inv.ID.String(),
		Template:     inv.TemplateID,
		Params:       inv.Params,
		SQL:          inv.RenderedSQL,
		Results:      toStatementResults(inv.Results),
		Failed:       inv.Failed(),
		Missing:      inv.Missing,
		Flags:        toParamFlags(inv.Flags),
		DurationMs:   inv.Duration.Milliseconds(),
	}
}

func toInvocationStatus(e engine.Entry) *types.InvocationStatus {
	status := &types.InvocationStatus{
		InvocationID: e.ID.String(),
		Template:     e.TemplateID,
		Status:       string(e.Status),
		SubmittedAt:  e.SubmittedAt,
		CompletedAt:  e.CompletedAt,
	}
	if e.Err != nil {
		status.Error = e.Err.Error()
	}
	if e.Invocation != nil {
		status.Result = toRunData(e.Invocation)
	}
	return status
}
