package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ollama-relay/internal/config"
	"ollama-relay/internal/database"
	"ollama-relay/internal/handlers"
	"ollama-relay/internal/logging"
	"ollama-relay/internal/metrics"
	"ollama-relay/internal/middleware"
	"ollama-relay/internal/router"
	"ollama-relay/internal/services"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	// ──── Step 2: Initialize Logger ────
	logger, logCloser, err := logging.New(cfg.LogLevel, cfg.LogFile, cfg.IsProduction())
	if err != nil {
		log.Fatalf("✗ Logger initialization failed: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	log.Println("🚀 Starting Ollama relay...")
	log.Println("✓ Environment variables loaded")

	collector := metrics.NewCollector(nil)

	// ──── Step 3: Initialize Rate-Limit Store ────
	var store middleware.Store
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClient.Close()
		store = middleware.NewRedisStore(redisClient, cfg.RateLimitWindow)
		log.Println("✓ Redis connected (shared rate limiting)")
	} else {
		memStore := middleware.NewMemoryStore(cfg.RateLimitWindow)
		defer memStore.Close()
		store = memStore
		log.Println("✓ In-memory rate limiting")
	}
	rateLimiter := middleware.NewRateLimiter(store, cfg.RateLimitMax, cfg.RateLimitWindow, logger, collector)
	if cfg.TrustProxy {
		log.Println("✓ Client IP taken from X-Forwarded-For / X-Real-IP")
	}

	// ──── Step 4: Initialize Ollama Client ────
	ollamaService := services.NewOllamaService(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaTimeout)
	log.Printf("✓ Ollama backend %s (model %s, timeout %s)", cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaTimeout)

	// ──── Step 5: Start HTTP Server ────
	chatHandler := handlers.NewChatHandler(ollamaService, logger, collector)

	r := router.New(chatHandler, rateLimiter, collector, router.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		BodyLimitBytes: cfg.BodyLimitBytes,
		TrustProxy:     cfg.TrustProxy,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.OllamaTimeout + 15*time.Second, // must outlive the backend call
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	idleClosed := make(chan struct{})
	go func() {
		defer close(idleClosed)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	log.Printf("✓ Relay ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: POST http://localhost:%s/api/generate", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-idleClosed
}
