package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/config"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/db"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/github"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/handler"
	"github.com/wizzzzard333-ctrl/m3u-playlist/pkg/playlist"
	"go.uber.org/zap"
	"gopkg.in/tucnak/telebot.v2"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Loaded config")

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.BotToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		log.Fatal("Failed to create bot", zap.Error(err))
	}

	database, err := db.NewDatabase(ctx, log, cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		log.Fatal("Failed to create database connection", zap.Error(err))
	}

	log.Info("Database connection established")

	contents := github.NewClient(cfg.GitHubAPIBaseURL, cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBranch, cfg.PlaylistFile, log)
	store := playlist.NewStore(contents, log)

	// Health check server with graceful shutdown
	srv := &http.Server{Addr: ":8080"}
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Ping(r.Context()); err != nil {
			http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.GetStats(r.Context())
		if err != nil {
			log.Error("Failed to get stats", zap.Error(err))
			http.Error(w, "Failed to get stats", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})

	go func() {
		log.Info("Starting health check server on :8080")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health check server error", zap.Error(err))
		}
	}()

	// Periodic stats logging
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats, err := database.GetStats(ctx)
				if err != nil {
					log.Error("Failed to get stats for periodic log", zap.Error(err))
					continue
				}
				log.Info("periodic_stats",
					zap.Int64("stored_tokens", stats.StoredTokens),
					zap.Int64("sessions", stats.Sessions),
					zap.Int64("awaiting_token", stats.AwaitingToken),
				)
			case <-ctx.Done():
				return
			}
		}
	}()

	h := handler.NewHandler(database, store, log, bot)

	bot.Handle("/start", h.Start)
	bot.Handle("/help", h.Help)
	bot.Handle("/settoken", h.HandleSetToken)
	bot.Handle("/cleartoken", h.HandleClearToken)
	bot.Handle("/add", h.HandleAdd)
	bot.Handle("/list", h.HandleList)
	bot.Handle("/delete", h.HandleDelete)
	bot.Handle("/clear", h.HandleClear)
	bot.Handle(telebot.OnText, h.HandleText)
	bot.Handle(telebot.OnCallback, h.HandleCallback)

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")

		// Shutdown HTTP server first while bot is still running
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		log.Info("HTTP server stopped")

		cancel()

		if err := database.Close(context.Background()); err != nil {
			log.Error("Database close error", zap.Error(err))
		}

		// Stop bot last - this unblocks bot.Start() in main goroutine
		bot.Stop()
		log.Info("Bot stopped")

		close(shutdownDone)
	}()

	log.Info("Bot is running", zap.String("username", bot.Me.Username))
	bot.Start()

	// Wait for shutdown to complete before exiting
	<-shutdownDone
	log.Info("Shutdown complete")
}
