package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/koustreak/sqlstream/internal/logger"
)

const headerRequestID = "X-Request-Id"

// requestID reuses the caller's X-Request-Id or assigns a new one, and puts
// a logger carrying it into the request context.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(headerRequestID, id)

		reqLog := s.log.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(reqLog.WithContext(r.Context())))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		requestLogger(r.Context()).InfoWith("request", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		})
	})
}

func requestLogger(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx)
}
