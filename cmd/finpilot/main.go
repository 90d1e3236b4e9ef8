package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finpilot/internal/advisor"
	"finpilot/internal/ai"
	"finpilot/internal/cache"
	"finpilot/internal/cli"
	apphttp "finpilot/internal/http"
	"finpilot/internal/log"
	"finpilot/internal/services"
	"finpilot/internal/sheets"
	gsheet "finpilot/internal/sheets/google"
)

const (
	maxMemorySessions    = 1000
	sessionCleanupPeriod = 10 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, "finpilot")

	ctx := context.Background()
	checks := map[string]func(context.Context) error{}

	res := cli.InitStore(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	builder := advisor.NewBuilder(res.Store)

	aiClient := ai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if !cfg.AIEnabled() {
		logger.Warn("OPENAI_API_KEY not set, chat and statement extraction are disabled")
	}

	// Chat sessions live in Redis when configured so they survive restarts
	// and are shared between replicas.
	var sessions cache.SessionStore
	if cfg.RedisAddr != "" {
		rs := cache.NewRedisSessionStore(cfg.RedisAddr, cfg.ChatSessionTTL)
		defer rs.Close()
		checks["redis"] = rs.Ping
		sessions = rs
		logger.Info("Using Redis chat sessions", "addr", cfg.RedisAddr)
	} else {
		ms := cache.NewMemorySessionStore(maxMemorySessions, cfg.ChatSessionTTL)
		manager := cache.NewManager()
		manager.Register(ms)
		manager.StartCleanup(sessionCleanupPeriod)
		defer manager.Stop()
		sessions = ms
		logger.Info("Using in-memory chat sessions")
	}

	var publisher services.Publisher
	if amqpClient := cli.InitAMQP(logger, cfg); amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	var snapshotStore sheets.SnapshotStore
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewClient(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSnapshotSheet)
		if err != nil {
			logger.Warn("Failed to initialize Google Sheets client, snapshots disabled", log.FieldError, err)
		} else {
			snapshotStore = client
			logger.Info("Google Sheets snapshots enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:      res.Store,
		Builder:    builder,
		Chat:       services.NewChatService(builder, aiClient, sessions, cfg.ChatHistoryLimit),
		Statements: services.NewStatementService(res.Store, aiClient, publisher),
		Snapshots:  services.NewSnapshotService(builder, snapshotStore),
		Checks:     checks,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxStatementBytes:  cfg.StatementMaxBytes,
		Logger:             logger,
	})

	// Chat answers are streamed, so writes get a longer deadline than reads.
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 2 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting finpilot server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"ai_enabled", cfg.AIEnabled(),
		"amqp_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
