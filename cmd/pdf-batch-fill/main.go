package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/a3tai/pdf-batch-fill/internal/batch"
	"github.com/a3tai/pdf-batch-fill/internal/config"
	"github.com/a3tai/pdf-batch-fill/internal/logging"
	"github.com/a3tai/pdf-batch-fill/internal/mcp"
	"github.com/a3tai/pdf-batch-fill/internal/pdf"
	pdferrors "github.com/a3tai/pdf-batch-fill/internal/pdf/errors"
	"github.com/a3tai/pdf-batch-fill/internal/web"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const shutdownTimeout = 10 * time.Second

// loadEnvFiles loads the dotenv files that exist. Variables already set in
// the environment win.
func loadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// setupLogging configures logging based on the run mode
func setupLogging(cfg *config.Config, w io.Writer) zerolog.Logger {
	return logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: w,
		// stdout carries the MCP protocol; stay quiet on stderr unless debugging
		Silent: cfg.IsStdioMode(),
	})
}

func newService(cfg *config.Config, logger zerolog.Logger) (*pdf.Service, error) {
	return pdf.NewService(pdf.Options{
		MaxFileSize: cfg.MaxFileSize,
		Directory:   cfg.Directory,
		OutputPath:  cfg.OutputPath(),
		Restrict:    !cfg.IsBatchMode(),
		Verify:      cfg.Verify,
		Logger:      logger,
	})
}

// runBatch fills the configured template once per input row and returns the
// process exit code
func runBatch(ctx context.Context, cfg *config.Config, svc *pdf.Service, stdout, stderr io.Writer) int {
	var bar *progressbar.ProgressBar
	opts := pdf.RunOptions{}
	if cfg.Progress {
		opts.OnProgress = func(s batch.Snapshot) {
			if bar == nil {
				bar = progressbar.NewOptions(s.Total,
					progressbar.OptionSetWriter(stderr),
					progressbar.OptionSetDescription("Filling"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(s.Rows)
		}
	}

	result, err := svc.FillBatch(ctx, pdf.BatchFillRequest{
		TemplatePath: cfg.Template,
		InputPath:    cfg.Input,
		OutputPath:   cfg.OutputPath(),
		Delimiter:    cfg.DelimiterRune(),
	}, opts)
	if bar != nil {
		_ = bar.Finish()
	}

	if err != nil {
		red := color.New(color.FgRed, color.Bold)
		red.Fprintf(stderr, "Batch failed: %v\n", err)
		if row := pdferrors.RowOf(err); row > 0 {
			fmt.Fprintf(stderr, "Failing row: %d. No output was written.\n", row)
		}
		return 1
	}

	green := color.New(color.FgGreen)
	green.Fprintf(stdout, "Merged %d rows (%d pages) into %s\n",
		result.Rows, result.Pages, filepath.Base(result.OutputPath))
	if len(result.Warnings) > 0 {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(stderr, "%d field warnings; run with --log-level=debug for details\n", len(result.Warnings))
	}
	return 0
}

// runServerMode serves the HTTP API until a shutdown signal arrives
func runServerMode(ctx context.Context, cfg *config.Config, svc *pdf.Service, logger zerolog.Logger) error {
	tpl, err := svc.LoadTemplate(cfg.Template)
	if err != nil {
		return err
	}
	server := web.NewServer(cfg, svc, tpl)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Start()
	}()

	select {
	case sig := <-signalCh:
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
	case <-ctx.Done():
	case err := <-serverErrCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped successfully")
	return nil
}

// runStdioMode serves MCP tools; the parent process controls our lifecycle
func runStdioMode(ctx context.Context, cfg *config.Config, svc *pdf.Service) error {
	server, err := mcp.NewServer(cfg, svc)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

func main() {
	if err := loadEnvFiles(".env", ".env.local"); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger := setupLogging(cfg, os.Stderr)
	logger.Debug().Str("config", cfg.String()).Msg("starting")

	svc, err := newService(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create PDF service")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case cfg.IsServerMode():
		if err := runServerMode(ctx, cfg, svc, logger); err != nil {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	case cfg.IsStdioMode():
		if err := runStdioMode(ctx, cfg, svc); err != nil {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	default:
		if code := runBatch(ctx, cfg, svc, os.Stdout, os.Stderr); code != 0 {
			cancel()
			os.Exit(code)
		}
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("PDF Batch Fill\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
