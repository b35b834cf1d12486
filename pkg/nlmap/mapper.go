package nlmap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/llm"
	"github.com/nnnkkk7/agriqa/pkg/logging"
)

// Source records which stage produced a Mapping.
type Source string

// Mapping sources.
const (
	SourceRules   Source = "rules"
	SourceLLM     Source = "llm"
	SourceDefault Source = "default"
)

// Mapping is a question resolved to a template and raw parameter values.
type Mapping struct {
	TemplateID string         `json:"template"`
	Params     map[string]any `json:"params"`
	Source     Source         `json:"source"`
}

// DefaultMapping is used when neither the rules nor the LLM yield a mapping.
func DefaultMapping() Mapping {
	return Mapping{
		TemplateID: TemplateCompareRain,
		Params: map[string]any{
			"STATE_A":      "Punjab",
			"STATE_B":      "Rajasthan",
			"N_YEARS":      10,
			"TOP_M":        3,
			"CEREAL_WHERE": CerealFilter,
		},
		Source: SourceDefault,
	}
}

// Mapper resolves questions. The LLM stage is skipped when the generator is
// offline.
type Mapper struct {
	gen    *llm.Resilient
	known  func(id string) bool
	logger *zap.Logger
}

// NewMapper creates a mapper. known reports whether a template id exists; an
// LLM answer naming an unknown template is mapped to the default template
// with the LLM's parameters.
func NewMapper(gen *llm.Resilient, known func(id string) bool, logger *zap.Logger) *Mapper {
	return &Mapper{gen: gen, known: known, logger: logging.OrNop(logger).Named("nlmap")}
}

const parseSystem = "You are a strict parser. Return ONLY a JSON object, no explanation."

func parsePrompt(question string) string {
	return fmt.Sprintf(`Given a user question about agriculture and climate in India, return a JSON object with:
- template_key: one of %s, %s, %s, %s, %s
- params: the parameters to substitute into the SQL template, e.g. {"STATE_A": "Punjab", "N_YEARS": 10}

Question: """%s"""

If you are not sure, pick the closest template and set params sensibly.`,
		TemplateCompareRain, TemplateDistrictHighLow, TemplateTrendCorr, TemplatePolicyArgs, TemplateDistrictVsState,
		question)
}

type llmMapping struct {
	TemplateKey string         `json:"template_key"`
	Params      map[string]any `json:"params"`
}

// Map resolves question. It never fails; the Source tells which stage answered.
func (m *Mapper) Map(ctx context.Context, question string) Mapping {
	if mapping, ok := ParseRules(question); ok {
		return mapping
	}
	if m.gen == nil || m.gen.Offline() {
		return DefaultMapping()
	}

	reply := m.gen.Generate(ctx, parseSystem, parsePrompt(question), func() string { return "" })
	if reply.Fallback {
		return DefaultMapping()
	}

	parsed, err := llm.ParseJSONReply[llmMapping](reply.Text)
	if err != nil {
		m.logger.Info("unparseable mapping reply", zap.String("model", reply.Model), zap.Error(err))
		return DefaultMapping()
	}
	if parsed.Params == nil {
		parsed.Params = map[string]any{}
	}

	id := parsed.TemplateKey
	if m.known != nil && !m.known(id) {
		m.logger.Info("mapping reply names unknown template", zap.String("template", id))
		id = TemplateCompareRain
	}
	return Mapping{TemplateID: id, Params: parsed.Params, Source: SourceLLM}
}
