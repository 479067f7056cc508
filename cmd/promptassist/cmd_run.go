package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"promptassist/internal/augment"
	"promptassist/internal/clipboard"
	"promptassist/internal/config"
	"promptassist/internal/engine"
	"promptassist/internal/health"
	"promptassist/internal/keystroke"
	"promptassist/internal/logging"
	"promptassist/internal/metrics"
	"promptassist/internal/notify"
	"promptassist/internal/sentinel"
	"promptassist/internal/snippets"
	"promptassist/internal/store"
)

func (a *app) runCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the expander in the foreground until interrupted",
		Long: `Install the keyboard hook and expand triggers until SIGINT or SIGTERM.

A default configuration file is written on first run. The augmentation
service URL and API key must be configured before run will start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout(), metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address (e.g. 127.0.0.1:9464)")
	return cmd
}

func (a *app) run(parent context.Context, out io.Writer, metricsAddr string) error {
	path := a.resolveConfigPath()
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if created {
		fmt.Fprintf(out, "Wrote default configuration to %s\n", path)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)
	log := logger.WithComponent("main")

	client, err := augment.New(augment.Config{
		BaseURL: cfg.Augment.BaseURL,
		APIKey:  cfg.Augment.APIKey,
		Timeout: cfg.Augment.Timeout(),
		Logger:  logger.WithComponent("augment"),
	})
	if err != nil {
		return fmt.Errorf("%w (set them in %s or via %s and %s)", err, path, config.EnvBaseURL, config.EnvAPIKey)
	}

	clip := clipboard.NewSystemAccessor()
	if !clip.Available() {
		return clipboard.ErrUnsupported
	}

	snips, err := snippets.Open(cfg.Storage.SnippetsPath, logger.WithComponent("snippets"))
	if err != nil {
		return err
	}

	history, err := store.Open(cfg.Storage.HistoryPath, cfg.Storage.HistoryMaxEntries, logger.WithComponent("history"))
	if err != nil {
		return err
	}
	defer history.Close()

	crash := logging.NewCrashHandler(
		logging.DefaultCrashDir(cfg.Logging.FilePath), Version, logger.WithComponent("crash"))

	eng, err := engine.New(cfg, engine.Deps{
		Hook:      keystroke.New(),
		Synth:     keystroke.NewSynthesizer(),
		Clipboard: clip,
		Focus:     sentinel.NewForegroundReader(),
		Client:    client,
		Notify:    notify.New(logger.WithComponent("notify")),
		Snippets:  snips,
		History:   history,
		Loader:    config.NewLoader(path, logger.WithComponent("config")),
		Crash:     crash,
		Logger:    logger.Logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("promptassist running",
		"version", Version,
		"config", path,
		"service", client.BaseURL(),
		"snippets", snips.Len())

	checker := health.NewChecker()
	checker.RegisterFunc("service", false, serviceCheck(client))
	checker.RegisterFunc("history", true, health.Ping(history.Ping, cfg.Storage.HistoryPath))

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsMux(eng.Metrics(), checker),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "addr", metricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		log.Info("serving metrics", "addr", metricsAddr)
	}

	fmt.Fprintln(out, "PromptAssist is running. Press Ctrl+C to stop.")

	checker.SetReady(true)
	defer checker.SetReady(false)
	if err := eng.Run(ctx); err != nil {
		return err
	}

	stats := eng.Stats()
	log.Info("promptassist stopped",
		"snippets_expanded", stats.Snippets,
		"rejected", stats.Rejected,
		"dropped", stats.Dropped)
	return nil
}

// metricsMux serves /metrics and /healthz.
func metricsMux(p *metrics.Pipeline, checker *health.Checker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Registry().HTTPHandler())
	mux.Handle("/healthz", checker.Handler())
	return mux
}

// newLogger builds the process logger from the [logging] section.
func newLogger(lc config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     lc.Output,
		FilePath:   lc.FilePath,
		MaxSize:    int64(lc.MaxSizeMB),
		MaxAge:     lc.MaxAgeDays,
		MaxBackups: lc.MaxBackups,
		Compress:   lc.Compress,
		Component:  "promptassist",
	})
}

// quietLogger discards output; commands that only read files use it so
// warnings do not clutter their output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
