// Package server exposes the record codec and store over HTTP for inspection and tooling.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/tagwire/internal/config"
	"github.com/danmuck/tagwire/internal/observability"
	"github.com/danmuck/tagwire/internal/protocol/text"
	"github.com/danmuck/tagwire/internal/records"
	"github.com/danmuck/tagwire/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

type Server struct {
	Name     string
	Addr     string
	Appeared time.Time

	store   *store.Store
	opts    records.Options
	maxBody int64
	router  *gin.Engine
}

// New builds a server and registers its routes. st may be nil, in which case the
// record storage routes answer 503.
func New(cfg config.Config, st *store.Store) (*Server, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	engine, err := cfg.TextEngine()
	if err != nil {
		return nil, err
	}

	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Name:     cfg.Name,
		Addr:     cfg.Addr,
		Appeared: time.Now(),
		store:    st,
		opts: records.Options{
			Text:   text.NewTranscoder(engine),
			Limits: cfg.BufferLimits(),
			Strict: cfg.Decode.StrictLength,
		},
		// Text is larger than its binary form; leave headroom for indentation and key names.
		maxBody: int64(cfg.Limits.MaxRecordBytes) * 8,
		router:  r,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve listens on s.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("service", s.Name).Str("addr", s.Addr).Msg("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info().Str("service", s.Name).Msg("server stopped")
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
