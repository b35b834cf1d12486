// Package assistant answers natural-language questions: it maps the question
// to a catalogue template, runs it, and composes a cited answer from the
// result rows.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/audit"
	"github.com/nnnkkk7/agriqa/pkg/engine"
	"github.com/nnnkkk7/agriqa/pkg/llm"
	"github.com/nnnkkk7/agriqa/pkg/logging"
	"github.com/nnnkkk7/agriqa/pkg/narrative"
	"github.com/nnnkkk7/agriqa/pkg/nlmap"
	"github.com/nnnkkk7/agriqa/pkg/query"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is required")

// Answer is the outcome of one question.
type Answer struct {
	Question   string
	Mapping    nlmap.Mapping
	Invocation *engine.Invocation
	Sources    []string
	Citations  []narrative.Citation
	Reply      llm.Reply
	Offline    bool
}

// Service is safe for concurrent use.
type Service struct {
	engine *engine.Engine
	mapper *nlmap.Mapper
	gen    *llm.Resilient
	audit  *audit.Log
	logger *zap.Logger
}

// New creates a service. gen and auditLog may be nil: a nil generator always
// answers with the deterministic summary and a nil log records nothing.
func New(eng *engine.Engine, gen *llm.Resilient, auditLog *audit.Log, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger)
	return &Service{
		engine: eng,
		mapper: nlmap.NewMapper(gen, eng.Catalog().Has, logger),
		gen:    gen,
		audit:  auditLog,
		logger: logger.Named("assistant"),
	}
}

// Offline reports whether answers are composed without calling a provider.
func (s *Service) Offline() bool {
	return s.gen == nil || s.gen.Offline()
}

// Ask answers question. offline skips every provider call for this question
// regardless of the service setting. Errors come from parameter validation
// or the mutation guard; unit failures are part of the answer.
func (s *Service) Ask(ctx context.Context, question string, offline bool) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	offline = offline || s.Offline()

	mapping := s.mapQuestion(ctx, question, offline)
	s.logger.Info("question mapped",
		zap.String("template", mapping.TemplateID),
		zap.String("mapping", string(mapping.Source)))

	inv, err := s.engine.Run(ctx, mapping.TemplateID, mapping.Params)
	if err != nil {
		return nil, err
	}

	ans := &Answer{
		Question:   question,
		Mapping:    mapping,
		Invocation: inv,
		Sources:    query.ExtractSources(inv.RenderedSQL),
		Offline:    offline,
	}
	ans.Citations = narrative.Citations(ans.Sources)

	facts := narrative.Facts(inv.Results)
	local := func() string { return llm.LocalSummary(facts) }
	if offline {
		ans.Reply = llm.Reply{Text: local(), Fallback: true}
	} else {
		prompt := narrative.Prompt(question, inv.RenderedSQL, facts, ans.Sources)
		ans.Reply = s.gen.Generate(ctx, narrative.System, prompt, local)
	}

	s.record(ans)
	return ans, nil
}

func (s *Service) mapQuestion(ctx context.Context, question string, offline bool) nlmap.Mapping {
	if !offline {
		return s.mapper.Map(ctx, question)
	}
	if mapping, ok := nlmap.ParseRules(question); ok {
		return mapping
	}
	return nlmap.DefaultMapping()
}

// record appends the audit entry. A failed write is logged and not returned.
func (s *Service) record(ans *Answer) {
	if s.audit == nil {
		return
	}
	err := s.audit.Write(audit.Record{
		Timestamp: time.Now(),
		Question:  ans.Question,
		Template:  ans.Invocation.TemplateID,
		Params:    ans.Mapping.Params,
		SQL:       ans.Invocation.RenderedSQL,
		Sources:   ans.Sources,
		Offline:   ans.Offline,
		Flags:     ans.Invocation.Flags,
	})
	if err != nil {
		s.logger.Error("failed to write audit record",
			zap.String("path", s.audit.Path()),
			zap.String("invocation_id", ans.Invocation.ID.String()),
			zap.Error(err))
	}
}
