package nlmap

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nnnkkk7/agriqa/pkg/llm"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubGenerator) DefaultModel() string { return "stub" }

func (g *stubGenerator) Generate(context.Context, llm.Request) (string, error) {
	g.calls++
	return g.reply, g.err
}

func knownTemplates(id string) bool {
	switch id {
	case TemplateCompareRain, TemplateDistrictHighLow, TemplateTrendCorr, TemplatePolicyArgs, TemplateDistrictVsState:
		return true
	}
	return false
}

func TestParseRules(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     Mapping
		wantOK   bool
	}{
		{
			name:     "compare rainfall with cereals",
			question: "Compare the average annual rainfall in Punjab and Kerala for the last 5 years and list the top 2 cereals",
			want: Mapping{TemplateID: TemplateCompareRain, Source: SourceRules, Params: map[string]any{
				"STATE_A": "Punjab", "STATE_B": "Kerala", "N_YEARS": 5, "TOP_M": 2, "CEREAL_WHERE": CerealFilter,
			}},
			wantOK: true,
		},
		{
			name:     "compare rainfall without cereals omits the filter",
			question: "compare rain in Tamil Nadu vs Haryana",
			want: Mapping{TemplateID: TemplateCompareRain, Source: SourceRules, Params: map[string]any{
				"STATE_A": "Tamil Nadu", "STATE_B": "Haryana", "N_YEARS": 10, "TOP_M": 3,
			}},
			wantOK: true,
		},
		{
			name:     "compare rainfall needs two states",
			question: "compare rainfall in Punjab",
			wantOK:   false,
		},
		{
			name:     "single-state comparison falls through to trend",
			question: "Compare the rainfall trend and wheat correlation in Punjab",
			want: Mapping{TemplateID: TemplateTrendCorr, Source: SourceRules, Params: map[string]any{
				"STATE": "Punjab", "CROP_NAME": "Wheat", "N_YEARS": 8,
			}},
			wantOK: true,
		},
		{
			name:     "year range sets the window",
			question: "Compare rainfall in Punjab and Kerala from 2008 to 2014",
			want: Mapping{TemplateID: TemplateCompareRain, Source: SourceRules, Params: map[string]any{
				"STATE_A": "Punjab", "STATE_B": "Kerala", "N_YEARS": 7, "TOP_M": 3,
			}},
			wantOK: true,
		},
		{
			name:     "last N years wins over a year range",
			question: "Rice production trend in Kerala between 2001 and 2014, last 5 years",
			want: Mapping{TemplateID: TemplateTrendCorr, Source: SourceRules, Params: map[string]any{
				"STATE": "Kerala", "CROP_NAME": "Rice", "N_YEARS": 5,
			}},
			wantOK: true,
		},
		{
			name:     "trend with crop",
			question: "What is the production trend of wheat in Haryana over the last 6 years?",
			want: Mapping{TemplateID: TemplateTrendCorr, Source: SourceRules, Params: map[string]any{
				"STATE": "Haryana", "CROP_NAME": "Wheat", "N_YEARS": 6,
			}},
			wantOK: true,
		},
		{
			name:     "correlation defaults",
			question: "Is there a correlation between rainfall and yield?",
			want: Mapping{TemplateID: TemplateTrendCorr, Source: SourceRules, Params: map[string]any{
				"STATE": "Punjab", "N_YEARS": 8,
			}},
			wantOK: true,
		},
		{
			name:     "district extremes",
			question: "Which district has the highest rice production in Punjab and which has the lowest in Kerala?",
			want: Mapping{TemplateID: TemplateDistrictHighLow, Source: SourceRules, Params: map[string]any{
				"STATE_A": "Punjab", "STATE_B": "Kerala", "CROP_NAME": "Rice",
			}},
			wantOK: true,
		},
		{
			name:     "policy arguments",
			question: "Give three policy arguments to promote Bajra over Rice in Rajasthan",
			want: Mapping{TemplateID: TemplatePolicyArgs, Source: SourceRules, Params: map[string]any{
				"STATE": "Rajasthan", "CROP_A": "Bajra", "CROP_B": "Rice", "N_YEARS": 10,
			}},
			wantOK: true,
		},
		{
			name:     "no rule",
			question: "How big is Ludhiana?",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRules(tt.question)
			if ok != tt.wantOK {
				t.Fatalf("ParseRules() ok = %v, want %v (%+v)", ok, tt.wantOK, got)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseRules() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractors(t *testing.T) {
	if diff := cmp.Diff([]string{"Kerala", "Punjab"}, ExtractStates("kerala then PUNJAB then Kerala")); diff != "" {
		t.Errorf("ExtractStates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2015, 2018}, ExtractYears("in 2018, 2015 and 2018; not 3018 or 12018")); diff != "" {
		t.Errorf("ExtractYears mismatch (-want +got):\n%s", diff)
	}
	if got := yearSpan([]int{2010}); got != 0 {
		t.Errorf("yearSpan(single year) = %d, want 0", got)
	}
	if n, m := ExtractCounts("Top 4 crops over the LAST 12 years"); n != 12 || m != 4 {
		t.Errorf("ExtractCounts() = %d, %d; want 12, 4", n, m)
	}
	if diff := cmp.Diff([]string{"Maize", "Rice"}, ExtractCrops("MAIZE, rice and maize")); diff != "" {
		t.Errorf("ExtractCrops mismatch (-want +got):\n%s", diff)
	}
}

func TestMapper_Map(t *testing.T) {
	ctx := context.Background()
	question := "Which districts grow the most sugar?"

	tests := []struct {
		name      string
		gen       *stubGenerator
		offline   bool
		want      Mapping
		wantCalls int
	}{
		{
			name:      "llm mapping",
			gen:       &stubGenerator{reply: `Here you go: {"template_key": "district_vs_state", "params": {"STATE": "Punjab", "TOP_M": 5}}`},
			want:      Mapping{TemplateID: TemplateDistrictVsState, Source: SourceLLM, Params: map[string]any{"STATE": "Punjab", "TOP_M": json.Number("5")}},
			wantCalls: 1,
		},
		{
			name:      "unknown template keeps params",
			gen:       &stubGenerator{reply: `{"template_key": "weather", "params": {"STATE_A": "Bihar"}}`},
			want:      Mapping{TemplateID: TemplateCompareRain, Source: SourceLLM, Params: map[string]any{"STATE_A": "Bihar"}},
			wantCalls: 1,
		},
		{
			name:      "unparseable reply",
			gen:       &stubGenerator{reply: "I think compare_rain"},
			want:      DefaultMapping(),
			wantCalls: 1,
		},
		{
			name:      "provider failure",
			gen:       &stubGenerator{err: errors.New("invalid api key")},
			want:      DefaultMapping(),
			wantCalls: 1,
		},
		{
			name:      "offline skips the llm",
			gen:       &stubGenerator{reply: `{"template_key": "trend_corr"}`},
			offline:   true,
			want:      DefaultMapping(),
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMapper(llm.NewResilient(tt.gen, llm.Options{Offline: tt.offline}, nil), knownTemplates, nil)
			got := m.Map(ctx, question)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Map() mismatch (-want +got):\n%s", diff)
			}
			if tt.gen.calls != tt.wantCalls {
				t.Errorf("generator calls = %d, want %d", tt.gen.calls, tt.wantCalls)
			}
		})
	}
}

func TestMapper_RulesWinOverLLM(t *testing.T) {
	gen := &stubGenerator{reply: `{"template_key": "policy_args"}`}
	m := NewMapper(llm.NewResilient(gen, llm.Options{}, nil), knownTemplates, nil)

	got := m.Map(context.Background(), "trend of rice in Bihar")
	if got.Source != SourceRules || got.TemplateID != TemplateTrendCorr {
		t.Errorf("Map() = %+v, want rule-based trend_corr", got)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times", gen.calls)
	}
}
