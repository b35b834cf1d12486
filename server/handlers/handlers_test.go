package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nnnkkk7/agriqa/pkg/assistant"
	"github.com/nnnkkk7/agriqa/pkg/audit"
	"github.com/nnnkkk7/agriqa/pkg/connection"
	"github.com/nnnkkk7/agriqa/pkg/dataset"
	"github.com/nnnkkk7/agriqa/pkg/engine"
	"github.com/nnnkkk7/agriqa/pkg/query"
	"github.com/nnnkkk7/agriqa/pkg/template"
	"github.com/nnnkkk7/agriqa/server/apierror"
	"github.com/nnnkkk7/agriqa/server/types"
)

// setupTestRouter wires the API handlers over an in-memory store. sample
// controls whether the sample views are installed.
func setupTestRouter(t *testing.T, sample bool) (http.Handler, *connection.Manager) {
	t.Helper()
	ctx := context.Background()

	mgr, err := connection.Open(ctx, "")
	if err != nil {
		t.Fatalf("failed to open DuckDB: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	loader := dataset.NewLoader(mgr, nil)
	if sample {
		if err := loader.LoadSample(ctx); err != nil {
			t.Fatalf("LoadSample() error = %v", err)
		}
	}
	catalog, err := template.Default()
	if err != nil {
		t.Fatalf("template.Default() error = %v", err)
	}

	eng := engine.New(catalog, nil, query.NewExecutor(mgr, nil), nil)
	svc := assistant.New(eng, nil, audit.NewLog(filepath.Join(t.TempDir(), "audit.csv"), nil), nil)

	askHandler := NewAskHandler(svc, nil)
	history := engine.NewHistory(ctx, eng, 0)
	templateHandler := NewTemplateHandler(eng, history, nil)
	invocationHandler := NewInvocationHandler(history, nil)
	healthHandler := NewHealthHandler(mgr, loader, nil)

	r := chi.NewRouter()
	r.Get("/health", healthHandler.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", askHandler.Ask)
		r.Get("/templates", templateHandler.List)
		r.Post("/templates/{id}/run", templateHandler.Run)
		r.Get("/invocations/{id}", invocationHandler.Get)
		r.Post("/invocations/{id}/cancel", invocationHandler.Cancel)
	})
	return r, mgr
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierror.ErrorResponse {
	t.Helper()
	var resp apierror.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Success {
		t.Error("error response has success = true")
	}
	return resp
}

func TestAskHandler_Ask(t *testing.T) {
	h, _ := setupTestRouter(t, true)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/ask", types.AskRequest{
		Question: "Analyze the production trend of Wheat in Punjab over the last 4 years and its correlation with rainfall",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}

	var resp types.AskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Data == nil {
		t.Fatalf("response = %+v", resp)
	}
	d := resp.Data
	if d.Template != "trend_corr" || d.Mapping != "rules" {
		t.Errorf("template/mapping = %s/%s, want trend_corr/rules", d.Template, d.Mapping)
	}
	if !d.Offline || !d.Fallback {
		t.Errorf("offline/fallback = %v/%v, want both true without a provider", d.Offline, d.Fallback)
	}
	if diff := cmp.Diff([]string{"crop_state_year", "state_year_rain"}, d.Sources); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}
	if len(d.Citations) != len(d.Sources) {
		t.Errorf("got %d citations for %d sources", len(d.Citations), len(d.Sources))
	}

	var labels []string
	for _, r := range d.Results {
		labels = append(labels, r.Label)
		if r.Error != "" {
			t.Errorf("%s failed: %s", r.Label, r.Error)
		}
	}
	if diff := cmp.Diff([]string{"combined_stmt_1", "combined_stmt_2"}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if d.Results[0].Returned != 4 {
		t.Errorf("combined_stmt_1 returned %d rows, want 4", d.Results[0].Returned)
	}
}

func TestAskHandler_Errors(t *testing.T) {
	h, _ := setupTestRouter(t, true)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed body", `{"question":`, http.StatusBadRequest, apierror.CodeInvalidRequest},
		{"empty body", ``, http.StatusBadRequest, apierror.CodeInvalidRequest},
		{"blank question", `{"question": "  "}`, http.StatusBadRequest, apierror.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeError(t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestTemplateHandler_List(t *testing.T) {
	h, _ := setupTestRouter(t, false)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/templates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp types.TemplatesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var ids []string
	for _, info := range resp.Data {
		ids = append(ids, info.ID)
	}
	want := []string{"compare_rain_and_top_crops", "district_high_low", "district_vs_state", "policy_args", "trend_corr"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("template ids mismatch (-want +got):\n%s", diff)
	}
}

func TestTemplateHandler_Run(t *testing.T) {
	h, _ := setupTestRouter(t, true)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/templates/policy_args/run", types.RunRequest{
		Params: map[string]interface{}{"STATE": "Punjab", "CROP_A": "Wheat", "CROP_B": "Rice", "N_YEARS": 3},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}

	var resp types.RunResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Template != "policy_args" || resp.Data.Failed != 0 {
		t.Errorf("template = %s, failed = %d", resp.Data.Template, resp.Data.Failed)
	}
	if resp.Data.InvocationID == "" {
		t.Error("invocation id missing")
	}
	for _, r := range resp.Data.Results {
		if r.Returned == 0 || len(r.RowType) != len(r.Columns) {
			t.Errorf("%s: returned %d rows, %d types for %d columns", r.Label, r.Returned, len(r.RowType), len(r.Columns))
		}
	}
}

func TestTemplateHandler_Run_UnitFailureIsNotRequestFailure(t *testing.T) {
	// Without views every unit fails but the request itself succeeds.
	h, _ := setupTestRouter(t, false)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/templates/trend_corr/run", types.RunRequest{
		Params: map[string]interface{}{"STATE": "Punjab", "CROP_NAME": "Wheat", "N_YEARS": 3},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp types.RunResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Failed != len(resp.Data.Results) || resp.Data.Failed == 0 {
		t.Errorf("failed = %d of %d, want all", resp.Data.Failed, len(resp.Data.Results))
	}
	for _, r := range resp.Data.Results {
		if r.Error == "" || r.RowSet != nil {
			t.Errorf("%s: want error without rows, got %+v", r.Label, r)
		}
	}
}

func TestTemplateHandler_Run_Errors(t *testing.T) {
	h, _ := setupTestRouter(t, true)

	tests := []struct {
		name       string
		path       string
		params     map[string]interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown template",
			path:       "/api/v1/templates/q9/run",
			wantStatus: http.StatusNotFound,
			wantCode:   apierror.CodeTemplateNotFound,
		},
		{
			name:       "injection attempt",
			path:       "/api/v1/templates/trend_corr/run",
			params:     map[string]interface{}{"STATE": "Punjab' OR '1'='1", "CROP_NAME": "Wheat", "N_YEARS": 3},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierror.CodeInvalidParameter,
		},
		{
			name:       "count out of grammar",
			path:       "/api/v1/templates/trend_corr/run",
			params:     map[string]interface{}{"STATE": "Punjab", "CROP_NAME": "Wheat", "N_YEARS": "3; DROP TABLE x"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierror.CodeInvalidParameter,
		},
		{
			name:       "nested value",
			path:       "/api/v1/templates/trend_corr/run",
			params:     map[string]interface{}{"STATE": map[string]interface{}{"a": 1}},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierror.CodeUnsupportedParameterType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, tt.path, types.RunRequest{Params: tt.params})
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeError(t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestHealthHandler_Health(t *testing.T) {
	t.Run("with views", func(t *testing.T) {
		h, _ := setupTestRouter(t, true)
		rec := doJSON(t, h, http.MethodGet, "/health", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp types.HealthResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Status != "ok" || len(resp.Views) != 3 {
			t.Errorf("health = %+v", resp)
		}
	})

	t.Run("without views", func(t *testing.T) {
		h, _ := setupTestRouter(t, false)
		rec := doJSON(t, h, http.MethodGet, "/health", nil)
		var resp types.HealthResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rec.Code != http.StatusOK || resp.Status != "degraded" {
			t.Errorf("status = %d/%s, want 200/degraded", rec.Code, resp.Status)
		}
	})

	t.Run("closed store", func(t *testing.T) {
		h, mgr := setupTestRouter(t, false)
		_ = mgr.DB().Close()
		rec := doJSON(t, h, http.MethodGet, "/health", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

// waitInvocation polls the invocation until it leaves the running state.
func waitInvocation(t *testing.T, h http.Handler, id string) types.InvocationStatus {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/invocations/"+id, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET invocation status = %d\n%s", rec.Code, rec.Body.String())
		}
		var resp types.InvocationResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Data.Status != string(engine.StatusRunning) {
			return *resp.Data
		}
		if time.Now().After(deadline) {
			t.Fatalf("invocation %s still running", id)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTemplateHandler_RunAsync(t *testing.T) {
	h, _ := setupTestRouter(t, true)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/templates/trend_corr/run?async=true", types.RunRequest{
		Params: map[string]interface{}{"STATE": "Punjab", "CROP_NAME": "Wheat", "N_YEARS": 3},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202\n%s", rec.Code, rec.Body.String())
	}
	var submitted types.InvocationResponse
	if err := json.NewDecoder(rec.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if submitted.Data == nil || submitted.Data.InvocationID == "" {
		t.Fatalf("submission = %+v", submitted)
	}

	got := waitInvocation(t, h, submitted.Data.InvocationID)
	if got.Status != string(engine.StatusSucceeded) {
		t.Fatalf("status = %s, error = %s", got.Status, got.Error)
	}
	if got.CompletedAt == nil || got.Result == nil {
		t.Fatal("finished invocation has no completion time or result")
	}
	if got.Result.InvocationID != submitted.Data.InvocationID {
		t.Errorf("result id = %s, want %s", got.Result.InvocationID, submitted.Data.InvocationID)
	}
	if len(got.Result.Results) != 2 || got.Result.Failed != 0 {
		t.Errorf("results = %d, failed = %d", len(got.Result.Results), got.Result.Failed)
	}

	// A finished run cannot be canceled.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/invocations/"+submitted.Data.InvocationID+"/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("cancel status = %d, want 409", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != apierror.CodeInvocationNotRunning {
		t.Errorf("cancel code = %s, want %s", code, apierror.CodeInvocationNotRunning)
	}
}

func TestTemplateHandler_RunAsync_RejectsParameters(t *testing.T) {
	h, _ := setupTestRouter(t, true)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/templates/trend_corr/run?async=1", types.RunRequest{
		Params: map[string]interface{}{"STATE": "Punjab' OR '1'='1"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != apierror.CodeInvalidParameter {
		t.Errorf("code = %s, want %s", code, apierror.CodeInvalidParameter)
	}
}

func TestInvocationHandler_Errors(t *testing.T) {
	h, _ := setupTestRouter(t, false)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"malformed id", http.MethodGet, "/api/v1/invocations/not-a-uuid", http.StatusBadRequest, apierror.CodeInvalidRequest},
		{"unknown id", http.MethodGet, "/api/v1/invocations/" + uuid.NewString(), http.StatusNotFound, apierror.CodeInvocationNotFound},
		{"cancel unknown", http.MethodPost, "/api/v1/invocations/" + uuid.NewString() + "/cancel", http.StatusNotFound, apierror.CodeInvocationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, tt.method, tt.path, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeError(t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestSendJSON_UnencodableBody(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	rec := httptest.NewRecorder()

	sendJSON(rec, zap.New(core), http.StatusOK, map[string]interface{}{"rain_production_corr": math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	resp := decodeError(t, rec)
	if resp.Code != apierror.CodeInternalError || resp.Success {
		t.Errorf("response = %+v, want an internal error", resp)
	}
	if n := logs.FilterMessage("failed to encode response").Len(); n != 1 {
		t.Errorf("logged %d encode failures, want 1", n)
	}
}
