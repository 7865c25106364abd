package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petasbytes/solver-agent/internal/browser"
	"github.com/petasbytes/solver-agent/internal/config"
	"github.com/petasbytes/solver-agent/internal/fsops"
	"github.com/petasbytes/solver-agent/internal/logging"
	"github.com/petasbytes/solver-agent/internal/metrics"
	"github.com/petasbytes/solver-agent/internal/provider"
	"github.com/petasbytes/solver-agent/internal/runner"
	"github.com/petasbytes/solver-agent/internal/sandbox"
	"github.com/petasbytes/solver-agent/internal/submit"
	"github.com/petasbytes/solver-agent/internal/telemetry"
	"github.com/petasbytes/solver-agent/memory"
	"github.com/petasbytes/solver-agent/tools"
)

// NewSolveCmd runs the solve loop against a task URL.
func NewSolveCmd(opts *Options) *cobra.Command {
	var transcriptPath string
	var metricsAddr string
	var modelOverride string

	cmd := &cobra.Command{
		Use:   "solve <task-url>",
		Short: "Solve the task at a URL and follow its continuations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskURL, err := parseTaskURL(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if modelOverride != "" {
				cfg.Provider.Model = modelOverride
			}

			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			if metricsAddr != "" {
				shutdown := serveMetrics(metricsAddr, m, logger)
				defer shutdown()
			}

			loop, cleanup, err := buildLoop(cfg, logger, m)
			if err != nil {
				return err
			}
			defer cleanup()

			runID := telemetry.NewRunID()
			ctx = telemetry.WithRunID(ctx, runID)
			msgs, res := loop.Run(ctx, seedConversation(taskURL))

			if transcriptPath != "" {
				if err := memory.SaveConversation(transcriptPath, msgs); err != nil {
					logger.Warn("failed to save transcript", zap.String("path", transcriptPath), zap.Error(err))
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run %s stopped: reason=%s iterations=%d submissions=%d elapsed=%s\n",
				runID, res.StopReason, res.Iterations, res.RetryCount, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "Write the final conversation to this JSON file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090) during the run")
	cmd.Flags().StringVar(&modelOverride, "model", "", "Override provider.model for this run")
	return cmd
}

func parseTaskURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid task url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("task url must be an absolute http(s) URL, got %q", raw)
	}
	return u.String(), nil
}

// buildLoop wires the tools and the model from cfg. cleanup releases the
// browser.
func buildLoop(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*runner.Loop, func(), error) {
	ws, err := fsops.NewWorkspace(cfg.Sandbox.Workspace)
	if err != nil {
		return nil, nil, fmt.Errorf("workspace: %w", err)
	}

	renderer, err := browser.New(browser.Options{
		Headless:  cfg.Browser.Headless,
		Bin:       cfg.Browser.Bin,
		Timeout:   cfg.Browser.Timeout,
		CacheSize: cfg.Browser.CacheSize,
	}, logger.Named("browser"))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := renderer.Close(); err != nil {
			logger.Warn("close browser", zap.Error(err))
		}
	}

	sb, err := sandbox.New(ws, sandbox.Options{
		PythonCommand:  cfg.Sandbox.PythonCommand,
		InstallCommand: cfg.Sandbox.InstallCommand,
		Timeout:        cfg.Sandbox.Timeout,
		MaxOutput:      cfg.Sandbox.MaxOutput,
	}, logger.Named("sandbox"))
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	submitter := submit.NewClient(nil, cfg.Submit.Timeout)
	registry := tools.NewRegistry(tools.Deps{
		Renderer:     renderer,
		Workspace:    ws,
		HTTPClient:   &http.Client{Timeout: cfg.Download.Timeout},
		MaxDownload:  cfg.Download.MaxBytes,
		MaxHTMLRunes: cfg.Browser.MaxRunes,
		Runner:       sb,
		Submitter:    submitter,
	})

	model, err := provider.New(cfg.Provider.Type, provider.Options{
		Model:     cfg.Provider.Model,
		APIKey:    cfg.Provider.APIKey,
		BaseURL:   cfg.Provider.BaseURL,
		MaxTokens: int64(cfg.Provider.MaxTokens),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	loop := runner.New(model, registry, submitter, runner.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		Pause:         cfg.Agent.Pause,
		Policy: runner.Policy{
			RetryLimit: cfg.Agent.RetryLimit,
			TimeLimit:  cfg.Agent.TimeLimit,
		},
	}, runner.Observer{
		Logger:  logger.Named("runner"),
		Metrics: m,
		Events:  telemetry.NewSink(cfg.Telemetry.ArtifactsDir, cfg.Telemetry.ObserveJSON),
	})
	return loop, cleanup, nil
}

// serveMetrics exposes /metrics until the returned shutdown is called.
func serveMetrics(addr string, m *metrics.Metrics, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
