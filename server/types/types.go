// Package types provides the request and response bodies of the HTTP API.
package types

import "time"

// Ask API Types

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	Question string `json:"question"`
	// Offline forces the deterministic summary; nil uses the server setting.
	Offline *bool `json:"offline,omitempty"`
}

type AskResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Code    string   `json:"code,omitempty"`
	Data    *AskData `json:"data,omitempty"`
}

type AskData struct {
	InvocationID string                 `json:"invocationId"`
	Question     string                 `json:"question"`
	Template     string                 `json:"template"`
	Mapping      string                 `json:"mapping"`
	Params       map[string]interface{} `json:"params"`
	SQL          string                 `json:"sql"`
	Results      []StatementResult      `json:"results"`
	Sources      []string               `json:"sources"`
	Citations    []Citation             `json:"citations"`
	Answer       string                 `json:"answer"`
	Model        string                 `json:"model,omitempty"`
	Fallback     bool                   `json:"fallback"`
	Offline      bool                   `json:"offline"`
	Flags        []ParamFlag            `json:"flags,omitempty"`
	Missing      []string               `json:"missing,omitempty"`
}

type Citation struct {
	Source string `json:"source"`
	File   string `json:"file"`
}

// ParamFlag is a parameter value that resembled SQL when screened.
type ParamFlag struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
}

// Template API Types

type TemplateInfo struct {
	ID          string            `json:"id"`
	File        string            `json:"file"`
	Description string            `json:"description,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
}

type TemplatesResponse struct {
	Success bool           `json:"success"`
	Data    []TemplateInfo `json:"data"`
}

// RunRequest is the body of POST /api/v1/templates/{id}/run.
type RunRequest struct {
	Params map[string]interface{} `json:"params"`
}

type RunResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Code    string   `json:"code,omitempty"`
	Data    *RunData `json:"data,omitempty"`
}

type RunData struct {
	InvocationID string                 `json:"invocationId"`
	Template     string                 `json:"template"`
	Params       map[string]interface{} `json:"params"`
	SQL          string                 `json:"sql"`
	Results      []StatementResult      `json:"results"`
	Failed       int                    `json:"failed"`
	Missing      []string               `json:"missing,omitempty"`
	Flags        []ParamFlag            `json:"flags,omitempty"`
	DurationMs   int64                  `json:"durationMs"`
}

// StatementResult is one executed unit: a row set or an error, never both.
type StatementResult struct {
	Label    string           `json:"label"`
	SQL      string           `json:"sql"`
	Combined bool             `json:"combined"`
	Columns  []string         `json:"columns,omitempty"`
	RowType  []ColumnMetadata `json:"rowtype,omitempty"`
	RowSet   [][]interface{}  `json:"rowset,omitempty"`
	Returned int64            `json:"returned"`
	Error    string           `json:"error,omitempty"`
}

type ColumnMetadata struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Length    int64  `json:"length,omitempty"`
	Precision int64  `json:"precision,omitempty"`
	Scale     int64  `json:"scale,omitempty"`
	Nullable  bool   `json:"nullable"`
}

// Invocation API Types

// InvocationResponse answers asynchronous submissions and invocation lookups.
type InvocationResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Data    *InvocationStatus `json:"data,omitempty"`
}

// InvocationStatus describes a submitted run. Result is set once it has
// finished.
type InvocationStatus struct {
	InvocationID string     `json:"invocationId"`
	Template     string     `json:"template"`
	Status       string     `json:"status"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Error        string     `json:"error,omitempty"`
	Result       *RunData   `json:"result,omitempty"`
}

// Health API Types

type HealthResponse struct {
	Status string        `json:"status"`
	Store  string        `json:"store"`
	Views  []ViewSummary `json:"views,omitempty"`
}

type ViewSummary struct {
	View    string `json:"view"`
	MinYear int64  `json:"minYear,omitempty"`
	MaxYear int64  `json:"maxYear,omitempty"`
	Rows    int64  `json:"rows"`
	Error   string `json:"error,omitempty"`
}
