package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"reease-summarizer/internal/config"
	"reease-summarizer/internal/monitor"
	"reease-summarizer/internal/records"
	"reease-summarizer/internal/server"
	"reease-summarizer/internal/service"
	"reease-summarizer/internal/textinput"
)

const shutdownTimeout = 10 * time.Second

var errMissingAPIKey = errors.New("GEMINI_API_KEY environment variable is not set")

func main() {
	// Handle health check flag for Docker containers
	if isHealthCheck(os.Args) {
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func isHealthCheck(args []string) bool {
	return len(args) > 1 && args[1] == "--health-check"
}

// app holds everything a subcommand needs once configuration is loaded
type app struct {
	settings   *config.Settings
	logger     *slog.Logger
	metrics    *monitor.Metrics
	summarizer *service.SummarizationService
}

func newApp(settings *config.Settings, logOutput io.Writer) *app {
	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: settings.LogLevel}))
	slog.SetDefault(logger)

	metrics := monitor.NewMetrics(nil)

	client := &http.Client{Timeout: settings.Timeout}
	gemini := service.NewGeminiService(client, settings.BaseURL, settings.Model, logger)
	gemini.SetMetrics(metrics)

	if settings.RateLimitingEnabled {
		rateLimiter := monitor.NewRateLimitManager(logger, []monitor.ProviderConfig{settings.RateLimit})
		rateLimiter.RegisterStatusCallback(func(providerID, status string) {
			logger.Warn("Provider rate limit status changed",
				"provider", providerID,
				"status", status,
				"usage", rateLimiter.WindowUsage(providerID))
		})
		gemini.SetRateLimiter(rateLimiter)

		logger.Info("Rate limit configuration loaded",
			"provider", settings.RateLimit.ProviderID,
			"per_minute", settings.RateLimit.Limits["minute"],
			"per_day", settings.RateLimit.Limits["day"],
			"warning_threshold", settings.RateLimit.Thresholds["warning"],
			"throttled_threshold", settings.RateLimit.Thresholds["throttled"])
	}

	grouper := service.NewThreadGrouper(gemini, service.ThreadGrouperOptions{
		MaxConcurrency:    settings.MaxConcurrency,
		RequestsPerSecond: settings.RequestsPerSecond,
	}, logger)
	grouper.SetMetrics(metrics)

	return &app{
		settings:   settings,
		logger:     logger,
		metrics:    metrics,
		summarizer: service.NewSummarizationService(gemini, grouper, logger),
	}
}

func (a *app) requireAPIKey() (string, error) {
	if a.settings.APIKey == "" {
		return "", errMissingAPIKey
	}
	return a.settings.APIKey, nil
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cfgService := config.NewEnvironmentConfigService(nil)
	var a *app

	rootCmd := &cobra.Command{
		Use:          "summarizer",
		Short:        "Summarize text and email threads with Gemini",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Try to load .env file from current directory (ignore error if file doesn't exist)
			_ = godotenv.Load()

			settings, err := config.Load(cmd.Context(), cfgService)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a = newApp(settings, stderr)

			if all, err := cfgService.GetAllConfigs(cmd.Context()); err == nil {
				a.logger.Debug("Effective configuration", "values", all)
			}
			return nil
		},
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.AddCommand(
		newTextCmd(func() *app { return a }),
		newThreadsCmd(func() *app { return a }),
		newServeCmd(func() *app { return a }, cfgService),
	)

	return rootCmd
}

func newTextCmd(getApp func() *app) *cobra.Command {
	var file, text, compression string

	cmd := &cobra.Command{
		Use:   "text",
		Short: "Summarize a text from --text, --file or stdin",
		Long:  "Summarize a text from --text, --file or stdin. A .json --file is read as a record file and summarized per thread.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()

			credential, err := a.requireAPIKey()
			if err != nil {
				return err
			}

			if file != "" && textinput.IsJSON(file) {
				return summarizeRecordFile(cmd, a, file, credential)
			}

			source, err := readSource(text, file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			result := a.summarizer.SummarizeText(cmd.Context(), source, service.ParseDirective(compression), credential)
			if !result.Success {
				return errors.New(result.Error)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Summary)
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path of a .txt, .md or .json file to summarize")
	cmd.Flags().StringVar(&text, "text", "", "text to summarize")
	cmd.Flags().StringVar(&compression, "compression", "regular", `target length: "25%", "50%", "75%" or "regular"`)
	cmd.MarkFlagsMutuallyExclusive("file", "text")

	return cmd
}

// readSource prefers --text, then --file, then stdin. The result is trimmed.
func readSource(text, file string, stdin io.Reader) (string, error) {
	switch {
	case text != "":
		return strings.TrimSpace(text), nil
	case file != "":
		return textinput.ExtractFile(file)
	default:
		return textinput.ExtractReader("stdin", stdin)
	}
}

func newThreadsCmd(getApp func() *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Summarize each email thread of a JSON record file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()

			credential, err := a.requireAPIKey()
			if err != nil {
				return err
			}

			return summarizeRecordFile(cmd, a, file, credential)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path of the JSON record file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// summarizeRecordFile prints the per-thread summaries of a JSON record file as indented JSON
func summarizeRecordFile(cmd *cobra.Command, a *app, file, credential string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	recs, err := records.ParseRecords(data)
	if err != nil {
		return err
	}

	report := a.summarizer.SummarizeRecordBatchReport(cmd.Context(), recs, credential)
	for _, omitted := range report.Omitted {
		a.logger.Warn("Thread omitted", "thread_id", omitted.GroupKey, "reason", omitted.Reason)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(report.Summaries)
}

func newServeCmd(getApp func() *app, cfgService *config.EnvironmentConfigService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			if a.settings.APIKey == "" {
				a.logger.Warn("GEMINI_API_KEY is not set; requests must carry api_key")
			}

			httpServer := server.NewHTTPServer(a.summarizer, server.Options{
				DefaultCredential: a.settings.APIKey,
				Metrics:           a.metrics,
			}, a.logger)

			return serve(cmd.Context(), &http.Server{
				Addr:              a.settings.HTTPAddr,
				Handler:           httpServer.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}, a.logger)
		},
	}

	cmd.Flags().String("addr", "", "listen address (defaults to HTTP_ADDR or :8080)")
	_ = cfgService.Viper().BindPFlag(config.KeyHTTPAddr, cmd.Flags().Lookup("addr"))

	return cmd
}

// serve runs srv until ctx is done, then shuts it down gracefully
func serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("HTTP server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout exceeded, forcing exit", "error", err)
		return err
	}

	logger.Info("HTTP server shutdown completed successfully")
	return nil
}
