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

	"github.com/SAP-F-2025/skills-assessment-service/internal/cache"
	"github.com/SAP-F-2025/skills-assessment-service/internal/config"
	"github.com/SAP-F-2025/skills-assessment-service/internal/handlers"
	"github.com/SAP-F-2025/skills-assessment-service/internal/llm"
	"github.com/SAP-F-2025/skills-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/skills-assessment-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/skills-assessment-service/internal/services"
	"github.com/SAP-F-2025/skills-assessment-service/internal/utils"
	"github.com/SAP-F-2025/skills-assessment-service/internal/validator"
	"github.com/SAP-F-2025/skills-assessment-service/pkg"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	portOverride   string
	migrateOnStart bool
)

func init() {
	serveCmd.Flags().StringVar(&portOverride, "port", "", "listen port (overrides PORT)")
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "run schema migration before serving")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the session and results API.

Examples:
  # Serve with settings from .env
  assessment-service serve

  # Serve on another port and migrate first
  assessment-service serve --port 9000 --migrate`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if portOverride != "" {
		cfg.Port = portOverride
	}

	logger := utils.NewLogger(cfg.Environment)
	slogger := logger.Slog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if migrateOnStart {
		if err := postgres.AutoMigrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	repo := postgres.NewRepository(db)

	questionCache, err := buildQuestionCache(ctx, cfg, slogger)
	if err != nil {
		return err
	}
	generator, err := buildGenerator(ctx, cfg, slogger)
	if err != nil {
		return err
	}
	if closer, ok := generator.(io.Closer); ok {
		defer closer.Close()
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	hub := proctoring.NewFrameHub(proctoring.FrameHubConfig{
		MaxStreams:   cfg.Proctoring.MaxCameraStreams,
		MaxDimension: cfg.Proctoring.MaxFrameDimension,
		Logger:       slogger,
	})
	defer hub.Close()

	policy := proctoring.NewPolicy(
		cfg.Proctoring.ProhibitedLabels,
		cfg.Proctoring.MinConfidence,
		cfg.Proctoring.ViolationThreshold,
	)
	monitor := proctoring.NewMonitor(hub, buildClassifier(cfg, slogger), policy, slogger)

	v := validator.New()
	provider := services.NewQuestionProvider(services.QuestionProviderConfig{
		Cache:               questionCache,
		Generator:           generator,
		Validator:           v.Question(),
		Logger:              slogger,
		QuestionsPerAttempt: cfg.Questions.QuestionsPerAttempt,
	})
	sessionService := services.NewSessionService(services.SessionServiceConfig{
		Provider:    provider,
		Opener:      services.MonitorOpener(monitor),
		Finalizer:   services.NewScoringService(repo, publisher, slogger),
		Publisher:   publisher,
		Logger:      slogger,
		Duration:    cfg.Session.Duration,
		IdleTimeout: cfg.Session.IdleTimeout,
		Retention:   cfg.Session.Retention,
	})
	resultService := services.NewResultService(repo, slogger)

	var auth handlers.TokenParser
	if cfg.Auth.Enabled() {
		auth = casdoorsdk.NewClient(
			cfg.Auth.Endpoint,
			cfg.Auth.ClientID,
			cfg.Auth.ClientSecret,
			cfg.Auth.Certificate,
			cfg.Auth.OrganizationName,
			cfg.Auth.ApplicationName,
		)
	} else {
		logger.Warn("CASDOOR_ENDPOINT not set, API routes are unauthenticated")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), utils.ContextLogger(logger), utils.LoggerMiddleware(logger))
	handlers.NewHandlerManager(sessionService, resultService, hub, auth, v, logger).SetupRoutes(router)

	go runSweeper(ctx, sessionService, cfg.Session.SweepInterval, slogger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "active_sessions", sessionService.Active())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildQuestionCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.QuestionCache, error) {
	switch cfg.Questions.CacheBackend {
	case "redis":
		client, err := pkg.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisQuestionCache(client, cfg.Questions.RedisHashKey, logger), nil
	case "file", "":
		return cache.NewFileQuestionCache(cfg.Questions.CacheFile, logger)
	default:
		return nil, fmt.Errorf("unknown QUESTION_CACHE_BACKEND %q", cfg.Questions.CacheBackend)
	}
}

func buildGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Generator, error) {
	opts := llm.Options{QuestionCount: cfg.Questions.QuestionsPerAttempt}

	switch cfg.Questions.Generator {
	case "gemini":
		opts.Model = cfg.Questions.GeminiModel
		return llm.NewGeminiGenerator(ctx, cfg.Questions.GeminiAPIKey, opts, logger)
	case "groq", "":
		opts.Model = cfg.Questions.GroqModel
		return llm.NewGroqGenerator(cfg.Questions.GroqAPIKey, cfg.Questions.GroqBaseURL, opts, logger)
	default:
		return nil, fmt.Errorf("unknown QUESTION_GENERATOR %q", cfg.Questions.Generator)
	}
}

func buildClassifier(cfg *config.Config, logger *slog.Logger) proctoring.Classifier {
	if cfg.Proctoring.Classifier == "scripted" {
		logger.Warn("Using scripted classifier, no violations will be detected")
		return proctoring.NewScriptedClassifier()
	}
	return proctoring.NewHTTPClassifier(cfg.Proctoring.ClassifierURL, cfg.Proctoring.ClassifierTimeout)
}

func runSweeper(ctx context.Context, sessions services.SessionService, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := sessions.Sweep(ctx)
			if stats.TimedOut > 0 {
				logger.Info("Submitted expired sessions",
					"timed_out", stats.TimedOut,
					"active", sessions.Active())
			}
		}
	}
}
