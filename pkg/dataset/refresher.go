package dataset

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher recreates the dataset views on a cron schedule so that replaced
// dataset files are picked up without a restart.
type Refresher struct {
	cron   *cron.Cron
	loader *Loader
	paths  Paths
	logger *zap.Logger

	mu   sync.Mutex
	last *Report
}

// NewRefresher creates a refresher for paths.
func NewRefresher(loader *Loader, paths Paths) *Refresher {
	return &Refresher{
		cron:   cron.New(),
		loader: loader,
		paths:  paths,
		logger: loader.logger.Named("refresher"),
	}
}

// Start schedules the refresh with a standard cron spec or a descriptor such
// as "@every 1h", then starts the scheduler.
func (r *Refresher) Start(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.refresh); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("view refresh scheduled", zap.String("schedule", spec))
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("view refresh stopped")
}

// Last returns the report of the most recent successful refresh.
func (r *Refresher) Last() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Refresher) refresh() {
	report, err := r.loader.LoadViews(context.Background(), r.paths)
	if err != nil {
		r.logger.Warn("scheduled view refresh failed", zap.Error(err))
		return
	}
	r.mu.Lock()
	r.last = report
	r.mu.Unlock()
}
