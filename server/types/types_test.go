package types

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAskRequestJSON(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantOffline *bool
	}{
		{"offline omitted", `{"question": "Compare rainfall in Punjab and Kerala"}`, nil},
		{"offline set", `{"question": "Compare rainfall in Punjab and Kerala", "offline": true}`, boolPtr(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req AskRequest
			if err := json.Unmarshal([]byte(tt.input), &req); err != nil {
				t.Fatalf("Failed to unmarshal AskRequest: %v", err)
			}
			if req.Question != "Compare rainfall in Punjab and Kerala" {
				t.Errorf("Question = %q", req.Question)
			}
			if diff := cmp.Diff(tt.wantOffline, req.Offline); diff != "" {
				t.Errorf("Offline mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunRequestJSON(t *testing.T) {
	input := `{"params": {"STATE": "Punjab", "N_YEARS": 5}}`

	var req RunRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		t.Fatalf("Failed to unmarshal RunRequest: %v", err)
	}

	want := map[string]interface{}{"STATE": "Punjab", "N_YEARS": float64(5)}
	if diff := cmp.Diff(want, req.Params); diff != "" {
		t.Errorf("Params mismatch (-want +got):\n%s", diff)
	}
}

func TestStatementResultJSON(t *testing.T) {
	failed := StatementResult{Label: "combined_stmt_2", SQL: "SELECT x", Combined: true, Error: "no such column"}

	data, err := json.Marshal(failed)
	if err != nil {
		t.Fatalf("Failed to marshal StatementResult: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	// A failed unit carries no row set fields.
	want := map[string]interface{}{
		"label":    "combined_stmt_2",
		"sql":      "SELECT x",
		"combined": true,
		"returned": float64(0),
		"error":    "no such column",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("StatementResult JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestRunResponseJSON(t *testing.T) {
	resp := RunResponse{
		Success: true,
		Data: &RunData{
			InvocationID: "6f1d2f3e-0000-4000-8000-000000000000",
			Template:     "trend_corr",
			Params:       map[string]interface{}{"STATE": "Punjab"},
			SQL:          "SELECT 1",
			Results: []StatementResult{{
				Label:    "stmt_1",
				SQL:      "SELECT 1",
				Columns:  []string{"1"},
				RowType:  []ColumnMetadata{{Name: "1", Type: "INTEGER", Nullable: true}},
				RowSet:   [][]interface{}{{float64(1)}},
				Returned: 1,
			}},
			DurationMs: 4,
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal RunResponse: %v", err)
	}

	var decoded RunResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal RunResponse: %v", err)
	}

	if diff := cmp.Diff(resp, decoded); diff != "" {
		t.Errorf("RunResponse mismatch (-want +got):\n%s", diff)
	}
}

func boolPtr(b bool) *bool { return &b }
