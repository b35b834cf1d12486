package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

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
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	output     string
	sample     bool
	verbose    bool
}

func execute(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "agriqa",
		Short:         "Agri-climate question answering over DuckDB",
		Long:          "Run catalogue SQL templates and natural-language questions against the rainfall and crop production views.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := resolveFormat(opts.output, cmd.OutOrStdout())
			return err
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("AGRIQA_CONFIG"), "path to a YAML config file")
	flags.StringVarP(&opts.output, "output", "o", "", "output format (table, json); default is table on a terminal")
	flags.BoolVar(&opts.sample, "sample", false, "use an in-memory store with the built-in sample dataset")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log at the configured level instead of warnings only")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newAskCmd(opts))
	rootCmd.AddCommand(newViewsCmd(opts))
	rootCmd.AddCommand(newTemplatesCmd(opts))
	return rootCmd
}

// app is the wired stack one command runs against.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	mgr    *connection.Manager
	loader *dataset.Loader
	report *dataset.Report
	engine *engine.Engine
}

// openApp loads configuration, opens the store and installs the dataset
// views. With --sample the store is in memory and holds the sample tables.
func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	level := cfg.LogLevel
	if !opts.verbose {
		level = "warn"
	}
	logger, err := logging.New(level, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	dsn := cfg.DSN()
	if opts.sample {
		dsn = ""
	}
	mgr, err := connection.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, mgr: mgr, loader: dataset.NewLoader(mgr, logger)}
	switch {
	case opts.sample:
		if err := a.loader.LoadSample(ctx); err != nil {
			a.Close()
			return nil, err
		}
	case !cfg.ReadOnly:
		a.report, err = a.loader.LoadViews(ctx, dataset.PathsFromConfig(cfg.Data))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load views: %w", err)
		}
	}

	var catalog *template.Catalog
	if cfg.TemplateDir != "" {
		catalog, err = template.New(os.DirFS(cfg.TemplateDir))
	} else {
		catalog, err = template.Default()
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("template catalog: %w", err)
	}

	a.engine = engine.New(catalog, query.NewBinder(cfg.CTEBinder, cfg.CTEAlias), query.NewExecutor(mgr, logger), logger)
	return a, nil
}

// askService builds the question service. offline forces the deterministic
// path regardless of configuration.
func (a *app) askService(offline bool) *assistant.Service {
	gen, err := llm.New(a.cfg.LLM, a.cfg.Offline || offline, a.logger)
	if err != nil {
		a.logger.Warn("llm provider unavailable, answering offline", zap.Error(err))
	}
	return assistant.New(a.engine, gen, audit.NewLog(a.cfg.AuditPath, a.logger), a.logger)
}

func (a *app) Close() {
	if err := a.mgr.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
