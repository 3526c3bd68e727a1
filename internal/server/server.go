// Package server exposes the pipeline over HTTP: status reads, lifecycle
// verb triggers, and a CloudWatch alarm webhook for unattended recovery.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/rshade/streamctl/internal/api"
	"github.com/rshade/streamctl/internal/engine"
)

type Server struct {
	Router *chi.Mux
	Port   int
}

// New builds the route tree. Mutating endpoints sit behind bearer auth;
// the health and status endpoints are open.
func New(port int, token string, eng *engine.Engine) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/status", StatusHandler(eng))

	r.Group(func(r chi.Router) {
		r.Use(api.BearerAuth(token))
		r.Post("/pipeline/{verb}", PipelineHandler(eng))
		r.Post("/webhook/cloudwatch", CloudWatchHandler(eng))
	})

	return &Server{Router: r, Port: port}
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", s.Port).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
