package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mrvasil/telegram-spybot/internal/config"
	"github.com/mrvasil/telegram-spybot/internal/storage"
	"github.com/mrvasil/telegram-spybot/internal/sweeper"
	"github.com/mrvasil/telegram-spybot/internal/telegram"
	"github.com/mrvasil/telegram-spybot/pkg/logger"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Try to initialize basic logger for error output
		logger.Init("debug", "")
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	logger.Info().Msg("Starting Telegram spy bot")

	// Initialize database and stores
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	messages, err := storage.NewMessageStore(db, cfg.Media.Dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize message store")
	}
	settings := storage.NewSettingsStore(db)
	history := storage.NewHistoryStore(db, messages)
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	// Initialize Telegram bot
	bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.OwnerID, messages, settings, history)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}

	// Start retention sweeper
	sweep, err := sweeper.New(messages, time.Duration(cfg.Retention.CleanupInterval)*time.Second, cfg.Retention.MaxAgeHours)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize retention sweeper")
	}
	sweep.Start()

	// Health endpoint
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:    cfg.ServerAddress(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("address", cfg.ServerAddress()).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Start Telegram bot; blocks until shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot.Start(ctx)

	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sweep.Stop(); err != nil {
		logger.Error().Err(err).Msg("Sweeper shutdown error")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("Shutdown complete")
}
