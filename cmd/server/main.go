// Package main provides the entry point for the agriqa HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nnnkkk7/agriqa/pkg/assistant"
	"github.com/nnnkkk7/agriqa/pkg/audit"
	"github.com/nnnkkk7/agriqa/pkg/config"
	"github.com/nnnkkk7/agriqa/pkg/connection"
	"github.com/nnnkkk7/agriqa/pkg/dataset"
	"github.com/nnnkkk7/agriqa/pkg/engine"
	"github.com/nnnkkk7/agriqa/pkg/llm"
	"github.com/nnnkkk7/agriqa/pkg/logging"
	"github.com/nnnkkk7/agriqa/pkg/query"
	"github.com/nnnkkk7/agriqa/pkg/template"
	"github.com/nnnkkk7/agriqa/server/handlers"
	agrimw "github.com/nnnkkk7/agriqa/server/middleware"
	"github.com/nnnkkk7/agriqa/server/ui"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := pflag.String("config", os.Getenv("AGRIQA_CONFIG"), "path to a YAML config file")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	mgr, err := connection.Open(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	loader := dataset.NewLoader(mgr, logger)
	paths := dataset.PathsFromConfig(cfg.Data)
	if !cfg.ReadOnly {
		report, err := loader.LoadViews(ctx, paths)
		if err != nil {
			return fmt.Errorf("load views: %w", err)
		}
		logger.Info("views loaded", zap.Strings("created", report.Created), zap.Any("skipped", report.Skipped))

		if cfg.Data.Refresh != "" {
			refresher := dataset.NewRefresher(loader, paths)
			if err := refresher.Start(cfg.Data.Refresh); err != nil {
				return fmt.Errorf("schedule view refresh: %w", err)
			}
			defer refresher.Stop()
		}
	}

	catalog, err := loadCatalog(cfg.TemplateDir)
	if err != nil {
		return fmt.Errorf("template catalog: %w", err)
	}

	eng := engine.New(catalog, query.NewBinder(cfg.CTEBinder, cfg.CTEAlias), query.NewExecutor(mgr, logger), logger)

	gen, err := llm.New(cfg.LLM, cfg.Offline, logger)
	if err != nil {
		logger.Warn("llm provider unavailable, answering offline", zap.Error(err))
	}
	svc := assistant.New(eng, gen, audit.NewLog(cfg.AuditPath, logger), logger)

	var limit func(http.Handler) http.Handler
	if cfg.HTTP.AskRateLimit > 0 {
		limit = agrimw.RateLimiter(ctx, agrimw.RateLimitConfig{
			RequestsPerSecond: cfg.HTTP.AskRateLimit,
			Burst:             cfg.HTTP.AskBurst,
		}, logger)
	}

	askHandler := handlers.NewAskHandler(svc, logger)
	history := engine.NewHistory(ctx, eng, cfg.HTTP.InvocationTTL)
	templateHandler := handlers.NewTemplateHandler(eng, history, logger)
	invocationHandler := handlers.NewInvocationHandler(history, logger)
	healthHandler := handlers.NewHealthHandler(mgr, loader, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		if limit != nil {
			r.With(limit).Post("/ask", askHandler.Ask)
		} else {
			r.Post("/ask", askHandler.Ask)
		}
		r.Get("/templates", templateHandler.List)
		r.Post("/templates/{id}/run", templateHandler.Run)
		r.Get("/invocations/{id}", invocationHandler.Get)
		r.Post("/invocations/{id}/cancel", invocationHandler.Cancel)
	})

	ui.MountRoutes(r, ui.NewHandler(svc, logger), limit)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting agriqa",
			zap.String("addr", server.Addr),
			zap.Bool("offline", svc.Offline()),
			zap.Int("templates", len(catalog.List())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	history.Wait()
	return err
}

// loadCatalog reads templates from dir, or the embedded catalogue when dir is
// empty.
func loadCatalog(dir string) (*template.Catalog, error) {
	if dir == "" {
		return template.Default()
	}
	return template.New(os.DirFS(dir))
}
