package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is the lifecycle state of a submitted invocation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// ErrInvocationNotFound is returned for an unknown or expired invocation id.
var ErrInvocationNotFound = errors.New("invocation not found")

// ErrNotRunning is returned when canceling an invocation that has finished.
var ErrNotRunning = errors.New("invocation is not running")

// Entry is a snapshot of one submitted invocation.
type Entry struct {
	ID          uuid.UUID
	TemplateID  string
	Status      Status
	SubmittedAt time.Time
	CompletedAt *time.Time
	// Invocation is set once the run completes, including runs whose units
	// all failed.
	Invocation *Invocation
	Err        error
}

type historyEntry struct {
	Entry
	cancel context.CancelFunc
}

// History runs plans in the background and keeps their outcome for ttl after
// completion, so callers can submit a run and fetch its results later.
type History struct {
	engine *Engine
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[uuid.UUID]*historyEntry
	wg      sync.WaitGroup
}

// NewHistory creates a history that expires completed entries after ttl. The
// cleanup loop stops when ctx is done.
func NewHistory(ctx context.Context, eng *Engine, ttl time.Duration) *History {
	h := &History{
		engine:  eng,
		ttl:     ttl,
		entries: make(map[uuid.UUID]*historyEntry),
	}
	if ttl > 0 {
		go h.cleanupLoop(ctx)
	}
	return h
}

// Submit validates and renders templateID synchronously, then executes it in
// the background. Rejected parameters fail Submit itself; the returned entry
// is in the running state.
func (h *History) Submit(templateID string, raw map[string]any) (Entry, error) {
	plan, err := h.engine.Prepare(templateID, raw)
	if err != nil {
		return Entry{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &historyEntry{
		Entry: Entry{
			ID:          plan.ID,
			TemplateID:  plan.TemplateID,
			Status:      StatusRunning,
			SubmittedAt: time.Now(),
		},
		cancel: cancel,
	}

	h.mu.Lock()
	h.entries[e.ID] = e
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()
		inv, err := h.engine.Execute(ctx, plan)
		h.complete(e.ID, inv, err, ctx.Err() != nil)
	}()

	return e.Entry, nil
}

func (h *History) complete(id uuid.UUID, inv *Invocation, err error, canceled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.entries[id]
	if !ok {
		return
	}
	now := time.Now()
	e.CompletedAt = &now
	e.Invocation = inv
	e.Err = err
	switch {
	case canceled:
		e.Status = StatusCanceled
	case err != nil:
		e.Status = StatusFailed
	default:
		e.Status = StatusSucceeded
	}

	h.engine.logger.Debug("submitted invocation finished",
		zap.String("invocation_id", id.String()),
		zap.String("status", string(e.Status)))
}

// Get returns a snapshot of the entry with id.
func (h *History) Get(id uuid.UUID) (Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrInvocationNotFound, id)
	}
	return e.Entry, nil
}

// Cancel stops a running invocation. Units that already finished keep their
// results; the remaining ones fail with the context error.
func (h *History) Cancel(id uuid.UUID) error {
	h.mu.RLock()
	e, ok := h.entries[id]
	var status Status
	if ok {
		status = e.Status
	}
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrInvocationNotFound, id)
	}
	if status != StatusRunning {
		return fmt.Errorf("%w: %s is %s", ErrNotRunning, id, status)
	}
	e.cancel()
	return nil
}

// Wait blocks until every submitted invocation has finished.
func (h *History) Wait() {
	h.wg.Wait()
}

func (h *History) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(h.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanup(time.Now())
		}
	}
}

// cleanup removes entries completed more than ttl before now.
func (h *History) cleanup(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, e := range h.entries {
		if e.CompletedAt != nil && now.Sub(*e.CompletedAt) > h.ttl {
			delete(h.entries, id)
		}
	}
}
