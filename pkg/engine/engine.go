// Package engine runs catalogue templates end to end: validate parameters,
// render, guard, split, bind and execute.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nnnkkk7/agriqa/pkg/apperrors"
	"github.com/nnnkkk7/agriqa/pkg/logging"
	"github.com/nnnkkk7/agriqa/pkg/params"
	"github.com/nnnkkk7/agriqa/pkg/query"
	"github.com/nnnkkk7/agriqa/pkg/template"
)

// Plan is a rendered template split into executable units.
type Plan struct {
	// ID becomes the invocation id when the plan is executed.
	ID          uuid.UUID
	TemplateID  string
	RenderedSQL string
	Params      map[string]any
	Units       []query.Unit
	Flags       []params.Finding
	// Missing lists placeholders that rendered as empty text.
	Missing []string
}

// Invocation is the outcome of one Run.
type Invocation struct {
	ID          uuid.UUID
	TemplateID  string
	RenderedSQL string
	Params      map[string]any
	Results     []query.StatementResult
	Flags       []params.Finding
	Missing     []string
	StartedAt   time.Time
	Duration    time.Duration
}

// Failed returns the number of units that ended in an error.
func (inv *Invocation) Failed() int {
	n := 0
	for _, r := range inv.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Engine is safe for concurrent use; invocations share only the store.
type Engine struct {
	catalog  *template.Catalog
	binder   query.Binder
	executor *query.Executor
	logger   *zap.Logger
}

// New creates an engine. A nil binder defaults to query.TokenBinder.
func New(catalog *template.Catalog, binder query.Binder, executor *query.Executor, logger *zap.Logger) *Engine {
	if binder == nil {
		binder = query.TokenBinder{}
	}
	return &Engine{
		catalog:  catalog,
		binder:   binder,
		executor: executor,
		logger:   logging.OrNop(logger).Named("engine"),
	}
}

// Catalog returns the template catalogue the engine resolves ids against.
func (e *Engine) Catalog() *template.Catalog {
	return e.catalog
}

// Prepare resolves templateID and produces its executable plan without
// touching the store.
func (e *Engine) Prepare(templateID string, raw map[string]any) (*Plan, error) {
	tmpl, err := e.catalog.Load(templateID)
	if err != nil {
		return nil, err
	}
	return e.prepare(tmpl.ID, tmpl.Text, tmpl.Params, raw)
}

// Run executes the catalogue template templateID with raw parameter values.
func (e *Engine) Run(ctx context.Context, templateID string, raw map[string]any) (*Invocation, error) {
	plan, err := e.Prepare(templateID, raw)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan)
}

// RunText executes an ad-hoc template. name identifies it in logs and results.
func (e *Engine) RunText(ctx context.Context, name, text string, raw map[string]any) (*Invocation, error) {
	plan, err := e.prepare(name, text, nil, raw)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan)
}

func (e *Engine) prepare(name, text string, declared map[string]params.Class, raw map[string]any) (*Plan, error) {
	safe, err := params.ValidateAll(raw, declared)
	if err != nil {
		e.logger.Info("parameter rejected", zap.String("template", name), zap.Error(err))
		return nil, err
	}

	flags := params.Screen(raw)
	for _, f := range flags {
		e.logger.Warn("parameter resembles SQL",
			zap.String("template", name),
			zap.String("param", f.Name),
			zap.String("fingerprint", f.Fingerprint))
	}

	missing := template.Missing(text, safe)
	if len(missing) > 0 {
		e.logger.Debug("placeholders without values render empty",
			zap.String("template", name),
			zap.Strings("missing", missing))
	}

	rendered := template.Render(text, safe)
	if err := query.CheckReadOnly(rendered); err != nil {
		e.logger.Warn("rendered SQL rejected",
			zap.String("template", name),
			zap.String("sql", logging.Preview(rendered, logging.PreviewWidth)),
			zap.Error(err))
		return nil, err
	}

	statements := query.SplitStatements(rendered)
	if len(statements) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNoStatements, name)
	}

	return &Plan{
		ID:          uuid.New(),
		TemplateID:  name,
		RenderedSQL: rendered,
		Params:      safe,
		Units:       e.binder.Bind(statements),
		Flags:       flags,
		Missing:     missing,
	}, nil
}

// Execute runs a prepared plan. Unit failures are recorded in the results;
// the error is non-nil only when the store could not be reached.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (*Invocation, error) {
	inv := &Invocation{
		ID:          plan.ID,
		TemplateID:  plan.TemplateID,
		RenderedSQL: plan.RenderedSQL,
		Params:      plan.Params,
		Flags:       plan.Flags,
		Missing:     plan.Missing,
		StartedAt:   time.Now(),
	}

	results, err := e.executor.Run(ctx, plan.Units)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", plan.TemplateID, err)
	}
	inv.Results = results
	inv.Duration = time.Since(inv.StartedAt)

	e.logger.Info("invocation completed",
		zap.String("invocation_id", inv.ID.String()),
		zap.String("template", inv.TemplateID),
		zap.Int("units", len(results)),
		zap.Int("failed", inv.Failed()),
		zap.Duration("duration", inv.Duration))

	return inv, nil
}
