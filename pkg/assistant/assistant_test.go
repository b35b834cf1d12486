package assistant

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nnnkkk7/agriqa/pkg/apperrors"
	"github.com/nnnkkk7/agriqa/pkg/audit"
	"github.com/nnnkkk7/agriqa/pkg/connection"
	"github.com/nnnkkk7/agriqa/pkg/dataset"
	"github.com/nnnkkk7/agriqa/pkg/engine"
	"github.com/nnnkkk7/agriqa/pkg/llm"
	"github.com/nnnkkk7/agriqa/pkg/nlmap"
	"github.com/nnnkkk7/agriqa/pkg/query"
	"github.com/nnnkkk7/agriqa/pkg/template"
)

const compareQuestion = "Compare rainfall in Punjab and Kerala over the last 3 years and list the top 2 crops"

// fakeGenerator answers mapping prompts with mapping and everything else
// with answer.
type fakeGenerator struct {
	mapping string
	answer  string
	calls   atomic.Int32
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.calls.Add(1)
	if strings.Contains(req.System, "strict parser") {
		return g.mapping, nil
	}
	return g.answer, nil
}

func (g *fakeGenerator) DefaultModel() string { return "fake-model" }

func setupTestService(t *testing.T, gen llm.Generator) (*Service, string) {
	t.Helper()
	ctx := context.Background()

	mgr, err := connection.Open(ctx, "")
	if err != nil {
		t.Fatalf("failed to open DuckDB: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	if err := dataset.NewLoader(mgr, nil).LoadSample(ctx); err != nil {
		t.Fatalf("LoadSample() error = %v", err)
	}
	catalog, err := template.Default()
	if err != nil {
		t.Fatalf("template.Default() error = %v", err)
	}

	auditPath := filepath.Join(t.TempDir(), "logs", "audit.csv")
	eng := engine.New(catalog, nil, query.NewExecutor(mgr, nil), nil)
	res := llm.NewResilient(gen, llm.Options{MaxRetries: 0}, nil)
	return New(eng, res, audit.NewLog(auditPath, nil), nil), auditPath
}

func readAudit(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	return rows
}

func TestService_Ask_Offline(t *testing.T) {
	svc, auditPath := setupTestService(t, nil)
	if !svc.Offline() {
		t.Fatal("Offline() = false for a service without a generator")
	}

	ans, err := svc.Ask(context.Background(), compareQuestion, false)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if ans.Mapping.TemplateID != nlmap.TemplateCompareRain || ans.Mapping.Source != nlmap.SourceRules {
		t.Errorf("Mapping = %+v, want rules mapping to %s", ans.Mapping, nlmap.TemplateCompareRain)
	}
	if !ans.Reply.Fallback || !strings.HasPrefix(ans.Reply.Text, "LLM unavailable") {
		t.Errorf("Reply = %+v, want deterministic summary", ans.Reply)
	}
	if diff := cmp.Diff([]string{"crop_state_year", "state_year_rain"}, ans.Sources); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}
	if len(ans.Citations) != 2 || ans.Citations[1].File != "data/rain_state_year.parquet" {
		t.Errorf("Citations = %+v", ans.Citations)
	}
	if ans.Invocation.Failed() != 0 {
		t.Errorf("Failed() = %d, want 0", ans.Invocation.Failed())
	}

	rows := readAudit(t, auditPath)
	if len(rows) != 2 {
		t.Fatalf("audit rows = %d, want header + 1", len(rows))
	}
	if diff := cmp.Diff(audit.Header, rows[0]); diff != "" {
		t.Errorf("audit header mismatch (-want +got):\n%s", diff)
	}
	rec := rows[1]
	if rec[1] != compareQuestion || rec[2] != nlmap.TemplateCompareRain || rec[6] != "1" {
		t.Errorf("audit record = %v", rec)
	}
	if rec[4] != audit.HashSQL(ans.Invocation.RenderedSQL) {
		t.Errorf("sql_hash = %s, want hash of rendered SQL", rec[4])
	}
}

func TestService_Ask_Online(t *testing.T) {
	gen := &fakeGenerator{answer: "Kerala receives far more rain than Punjab (source: state_year_rain)."}
	svc, _ := setupTestService(t, gen)

	ans, err := svc.Ask(context.Background(), compareQuestion, false)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if ans.Reply.Fallback || ans.Reply.Model != "fake-model" || ans.Reply.Text != gen.answer {
		t.Errorf("Reply = %+v, want provider answer", ans.Reply)
	}
	if ans.Offline {
		t.Error("Offline = true, want false")
	}
	// The rules matched, so only the answer was generated.
	if got := gen.calls.Load(); got != 1 {
		t.Errorf("generator calls = %d, want 1", got)
	}
}

func TestService_Ask_RequestOffline(t *testing.T) {
	gen := &fakeGenerator{answer: "unused"}
	svc, _ := setupTestService(t, gen)

	ans, err := svc.Ask(context.Background(), "Which districts matter?", true)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if gen.calls.Load() != 0 {
		t.Errorf("generator called %d times for an offline question", gen.calls.Load())
	}
	if ans.Mapping.Source != nlmap.SourceDefault {
		t.Errorf("Mapping.Source = %s, want default", ans.Mapping.Source)
	}
	if !ans.Offline || !ans.Reply.Fallback {
		t.Errorf("answer not offline: %+v", ans.Reply)
	}
}

func TestService_Ask_LLMMapping(t *testing.T) {
	gen := &fakeGenerator{
		mapping: `Sure: {"template_key": "trend_corr", "params": {"STATE": "Kerala", "CROP_NAME": "Rice", "N_YEARS": 3}}`,
		answer:  "Rice output in Kerala rose (source: crop_state_year).",
	}
	svc, _ := setupTestService(t, gen)

	ans, err := svc.Ask(context.Background(), "How has rice fared in Kerala?", false)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if ans.Mapping.Source != nlmap.SourceLLM || ans.Mapping.TemplateID != nlmap.TemplateTrendCorr {
		t.Errorf("Mapping = %+v, want llm mapping to trend_corr", ans.Mapping)
	}
	for _, r := range ans.Invocation.Results {
		if !r.OK() {
			t.Errorf("%s failed: %v", r.Label, r.Err)
		}
	}
	if gen.calls.Load() != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls.Load())
	}
}

func TestService_Ask_Errors(t *testing.T) {
	gen := &fakeGenerator{mapping: `{"template_key": "trend_corr", "params": {"STATE": "Kerala'; DROP TABLE x; --"}}`}
	svc, auditPath := setupTestService(t, gen)

	if _, err := svc.Ask(context.Background(), "   ", false); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("Ask(blank) error = %v, want ErrEmptyQuestion", err)
	}

	_, err := svc.Ask(context.Background(), "Tell me something", false)
	if !errors.Is(err, apperrors.ErrInvalidParameter) {
		t.Errorf("Ask() error = %v, want ErrInvalidParameter", err)
	}
	if _, statErr := os.Stat(auditPath); !os.IsNotExist(statErr) {
		t.Errorf("audit log written for a rejected question: %v", statErr)
	}
}
