package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/capturellm/captureproxy/internal/config"
	"github.com/capturellm/captureproxy/internal/logging"
	"github.com/capturellm/captureproxy/internal/proxy/handlers"
	"github.com/capturellm/captureproxy/internal/proxy/middleware"
	"github.com/capturellm/captureproxy/internal/queue"
	"github.com/capturellm/captureproxy/internal/store"
	"github.com/capturellm/captureproxy/internal/upstream"
)

func main() {
	var (
		port       = flag.String("port", "8080", "listen port")
		logLevel   = flag.String("log-level", "info", "log level (debug, info, warn, error)")
		configPath = flag.String("config", "config.json", "path to JSON or YAML config file")
		dbPath     = flag.String("db", "interactions.db", "path to the SQLite capture database")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("loading configuration")
	}
	logging.Setup(*logLevel, cfg.ProbeFilter)

	db, err := store.Open(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("opening capture database")
	}
	defer db.Close()

	writer := queue.NewWriter(db)
	writerCtx, stopWriter := context.WithCancel(context.Background())
	go writer.Run(writerCtx)

	client := upstream.NewClient()
	deps := &handlers.Deps{Cfg: cfg, Client: client, Writer: writer, Store: db}

	r := chi.NewRouter()
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// Review and operational endpoints stay outside the proxy guard chain:
	// the guard's method allow-list and rate limit are tuned for forwarded
	// LLM traffic, not for local curation.
	r.Get("/health", handlers.Health())
	r.Get("/stats", handlers.Stats(deps))
	r.Get("/interactions", handlers.ListInteractions(deps))
	r.Get("/confirmed", handlers.ListConfirmed(deps))
	r.Post("/interactions/{id}/confirm", handlers.ConfirmInteraction(deps))
	r.Delete("/interactions/{id}", handlers.DeleteInteraction(deps))
	r.Get("/export", handlers.ExportInteractions(deps))

	r.Group(func(r chi.Router) {
		r.Use(middleware.SecurityGuard(cfg.Security))
		r.Use(middleware.PathGuard(cfg.Security.SuspiciousPatterns))
		r.Use(middleware.RateLimit(cfg.Security.Rate, cfg.Security.Burst))
		r.Use(middleware.BodySizeGuard(cfg.Security.MaxBodySize))
		r.Use(middleware.ProbeFilter(cfg.ProbeRequest))

		// Fixed OpenAI-style entry points come before the catch-all dispatch.
		r.Post("/v1/chat/completions", handlers.OpenAIEntry(deps))
		r.Post("/v1/completions", handlers.OpenAIEntry(deps))
		r.Post("/v1/embeddings", handlers.OpenAIEntry(deps))

		r.Post("/{domain}/*", handlers.DynamicProxy(deps))
		r.Get("/{domain}/*", handlers.DynamicProxy(deps))
	})

	server := &http.Server{
		Addr:              ":" + *port,
		Handler:           r,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("capture proxy listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}

	// Stop the writer only after in-flight requests finished enqueueing,
	// then wait for the drain so nothing captured is lost.
	stopWriter()
	<-writer.Done()
	client.CloseIdle()
	log.Info("shutdown complete")
}
