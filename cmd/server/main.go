package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marrfa-assistant/internal/config"
	"marrfa-assistant/internal/handler"
	"marrfa-assistant/internal/logger"
	"marrfa-assistant/internal/metrics"
	"marrfa-assistant/internal/repository"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "marrfa-assistant",
		Short:         "Marrfa query routing and retrieval engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		newAskCommand(),
		newClassifyCommand(),
		newIngestCommand(),
		newMigrateCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting marrfa assistant",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	gin.SetMode(cfg.Server.GinMode)
	m := metrics.New()

	a, err := buildApp(ctx, cfg, log, m, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.knowledge.Load(ctx); err != nil {
		// the server still answers property and out-of-context queries
		log.Warn("initial knowledge load failed", zap.Error(err))
	}

	deps := handler.Deps{
		Router:         a.router,
		Knowledge:      a.knowledge,
		EmbeddingDims:  cfg.OpenAI.EmbeddingDimensions,
		HealthChecks:   map[string]handler.HealthCheck{},
		Metrics:        m,
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PerPage:        cfg.Listings.PerPage,
		Build:          handler.BuildInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit},
	}
	if a.repo != nil {
		deps.Chunks = a.repo
		deps.Feedback = a.repo
		deps.HealthChecks["postgres"] = a.repo.Ping
	}
	if a.openai.IsEnabled() {
		deps.Embedder = a.openai
	}
	if a.usage != nil {
		deps.Usage = a.usage
		deps.HealthChecks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: handler.NewEngine(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// openRepository connects to PostgreSQL, or returns nil when it is disabled
func openRepository(cfg *config.Config) (*repository.PostgresRepository, error) {
	if !cfg.PostgreSQL.Enabled {
		return nil, nil
	}
	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repo, nil
}
