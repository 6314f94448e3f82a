// Package server exposes a session over HTTP.
//
//	GET  /healthz          session ping
//	GET  /query?sql=...    rows as newline-delimited JSON, streamed
//	POST /exec             body is an SQL script; ?object=key runs a stored script
//
// POST /exec is only routed when the server was built with AllowExec.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/filestore"
	"github.com/koustreak/sqlstream/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	Addr        string
	AllowExec   bool
	Parallelism int
	Dialect     database.Dialect

	// Store and Bucket enable POST /exec?object=key. Both optional.
	Store  filestore.Store
	Bucket string

	Logger *logger.Logger
}

// Server serves one database session.
type Server struct {
	session database.Session
	opts    Options
	log     *logger.Logger
	router  chi.Router
}

// New builds the router for session.
func New(session database.Session, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}

	s := &Server{session: session, opts: opts, log: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.accessLog)

	r.Get("/healthz", s.handleHealth)
	r.Get("/query", s.handleQuery)
	if opts.AllowExec {
		r.Post("/exec", s.handleExec)
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on Options.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoWith("http server listening", map[string]any{"addr": s.opts.Addr, "exec_enabled": s.opts.AllowExec})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}
