package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ollama-relay/internal/handlers"
	"ollama-relay/internal/metrics"
	"ollama-relay/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	BodyLimitBytes int64
	// TrustProxy rewrites RemoteAddr from X-Forwarded-For / X-Real-IP.
	// Off, the rate limiter keys on the connection address.
	TrustProxy bool
	// Logger receives access logs; nil keeps chi's stdout logger.
	Logger *slog.Logger
}

func New(
	chatHandler *handlers.ChatHandler,
	rateLimiter *middleware.RateLimiter,
	collector *metrics.Collector,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	if opts.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	if opts.Logger != nil {
		r.Use(chimiddleware.RequestLogger(&chimiddleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(opts.Logger.Handler(), slog.LevelInfo),
			NoColor: true,
		}))
	} else {
		r.Use(chimiddleware.Logger)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", collector.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Use(middleware.BodyLimit(opts.BodyLimitBytes))
		r.Post("/generate", chatHandler.Generate)
	})

	return r
}
