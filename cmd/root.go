package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"codeguru/internal/analyzer"
	"codeguru/internal/config"
	"codeguru/internal/explain"
	"codeguru/internal/generate"
	"codeguru/internal/tui"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "codeguru",
	Short:         "Explain source code with structural analysis and LLMs",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.Error(err.Error(), suggest(err)))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./codeguru.yaml or ./.codeguru/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log cache hits, skipped providers and prompt assembly")
}

// app holds the collaborators one command needs.
type app struct {
	cfg        *config.Config
	logger     *log.Logger
	debug      *log.Logger
	analyzer   *analyzer.Analyzer
	client     *generate.Client
	engine     *explain.Engine
	closeCache func() error
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		return config.Load(flagConfig)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.LoadFromDir(wd)
}

// newAnalyzerApp loads the config and builds the analyzer only.
func newAnalyzerApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := log.New(os.Stderr, "codeguru: ", 0)
	debug := log.New(io.Discard, "", 0)
	if flagVerbose || cfg.Debug() {
		debug = log.New(os.Stderr, "codeguru: debug: ", log.Ltime)
	}

	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	a := analyzer.New(reg, analyzer.WithMaxFileSize(cfg.MaxFileSize), analyzer.WithLogger(debug))
	if err := a.Warm(); err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, debug: debug, analyzer: a, closeCache: func() error { return nil }}, nil
}

// newApp builds the analyzer, the providers, the cache and the engine.
func newApp(ctx context.Context) (*app, error) {
	a, err := newAnalyzerApp()
	if err != nil {
		return nil, err
	}
	providers, skipped, err := a.cfg.BuildProviders(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range skipped {
		a.debug.Printf("provider %s skipped: %s is not set", name, a.cfg.Providers[name].APIKeyEnv)
	}

	st, closeCache, err := a.cfg.OpenCache(a.logger)
	if err != nil {
		return nil, err
	}
	a.closeCache = closeCache
	a.client = generate.New(providers, st, a.cfg.ClientConfig(),
		generate.WithLogger(a.logger), generate.WithDebug(a.debug))
	a.engine = explain.NewEngine(a.analyzer, a.client, a.cfg.Order, explain.WithDebug(a.debug))
	a.debug.Printf("route: %s", strings.Join(a.client.EffectiveRoute(a.cfg.Order), " -> "))
	return a, nil
}

func (a *app) Close() error {
	return a.closeCache()
}
