package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/database"
	"github.com/stemsi/tryout-backend/internal/handler"
	"github.com/stemsi/tryout-backend/internal/logger"
	"github.com/stemsi/tryout-backend/internal/metrics"
	"github.com/stemsi/tryout-backend/internal/middleware"
	"github.com/stemsi/tryout-backend/internal/repository"
	"github.com/stemsi/tryout-backend/internal/router"
	"github.com/stemsi/tryout-backend/internal/service"
	"github.com/stemsi/tryout-backend/internal/session"
	"github.com/stemsi/tryout-backend/internal/validator"
	"github.com/stemsi/tryout-backend/internal/worker"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Tryout Backend")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	profileRepo := repository.NewProfileRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	resultRepo := repository.NewExamResultRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, profileRepo, log)
	examService := service.NewExamService(examRepo, questionRepo, resultRepo, profileRepo, rdb, cfg.ExamCacheTTL, log)
	questionService := service.NewQuestionService(questionRepo, examService)
	sessionService := service.NewExamSessionService(sessionRepo, resultRepo, examService, rdb, log)
	resultService := service.NewResultService(sessionService, resultRepo, examService)
	dashboardService := service.NewDashboardService(dashboardRepo)

	clk := clock.RealClock{}
	registry := session.NewRegistry()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:        handler.NewAuthHandler(authService, log),
		Participant: handler.NewParticipantHandler(examService, sessionService, resultService, log),
		Exam:        handler.NewExamHandler(examService, log),
		Question:    handler.NewQuestionHandler(questionService, log),
		Dashboard:   handler.NewDashboardHandler(dashboardService, log),
		WS:          handler.NewWSHandler(examService, sessionService, registry, clk, log, cfg.AllowedOrigins),
		System:      handler.NewSystemHandler(pool, rdb, registry, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workers, workerCtx := errgroup.WithContext(workerCtx)

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRatePerMinute, time.Minute)
	expiryWorker := worker.NewExpiryWorker(
		sessionService,
		sessionRepo,
		worker.NewRedisExpiryIndex(rdb),
		clk,
		cfg.ExpirySweepInterval,
		cfg.ExpiryGrace,
		log,
	)

	workers.Go(func() error {
		loginLimiter.Run(workerCtx)
		return nil
	})
	workers.Go(func() error {
		expiryWorker.Start(workerCtx)
		return nil
	})

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, loginLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout). Hijacked WebSocket
	// connections are not tracked by Shutdown and close with the process.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers.
	workerCancel()
	if err := workers.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker shutdown error")
	}

	log.Info().Int("open_sessions", registry.Len()).Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
