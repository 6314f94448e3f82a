package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/koustreak/sqlstream/internal/errs"
	"github.com/koustreak/sqlstream/internal/filestore"
	"github.com/koustreak/sqlstream/internal/script"
	"github.com/koustreak/sqlstream/internal/sqlstream"
	"github.com/koustreak/sqlstream/internal/stream"
)

const (
	maxScriptBytes = 8 << 20
	flushEvery     = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Ping(r.Context()); err != nil {
		requestLogger(r.Context()).ErrorWith("health check failed", err, nil)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuery streams rows as NDJSON. The status is chosen after the first
// row is fetched, so a failing query still gets a proper error response; a
// failure after that is reported as a final {"error": ...} line.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sql := r.URL.Query().Get("sql")
	if sql == "" {
		respondError(w, errs.New(errs.ErrKindInvalidInput, "query parameter sql is required"))
		return
	}

	src := sqlstream.Source(s.session, sql, sqlstream.RowMap, sqlstream.WithLogger(requestLogger(ctx)))
	iter := src.Iter(ctx)
	defer iter.Close()

	first, ok, err := iter.Next(ctx)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if !ok {
		return
	}

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	row, n := first, 0
	for {
		if err := enc.Encode(row); err != nil {
			requestLogger(ctx).WarnWith("client went away", map[string]any{"rows": n, "error": err.Error()})
			return
		}
		n++
		if flusher != nil && n%flushEvery == 0 {
			flusher.Flush()
		}

		row, ok, err = iter.Next(ctx)
		if err != nil {
			requestLogger(ctx).ErrorWith("query failed mid-stream", err, map[string]any{"rows": n})
			_ = enc.Encode(errorBody{Error: err.Error(), Kind: errs.KindOf(err).String()})
			return
		}
		if !ok {
			return
		}
	}
}

type execResult struct {
	Statements   int64  `json:"statements"`
	RowsAffected int64  `json:"rows_affected"`
	Duration     string `json:"duration"`
}

// handleExec runs a script statement by statement. The script is the
// request body, or the stored object named by ?object=.
func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := requestLogger(ctx)

	var statements *stream.Source[string]
	if key := r.URL.Query().Get("object"); key != "" {
		if s.opts.Store == nil {
			respondError(w, errs.New(errs.ErrKindInvalidInput, "no script store configured"))
			return
		}
		statements = filestore.ScriptSource(s.opts.Store, s.opts.Bucket, key, s.opts.Dialect)
	} else {
		body := http.MaxBytesReader(w, r.Body, maxScriptBytes)
		statements = script.Source(func(context.Context) (io.ReadCloser, error) {
			return body, nil
		}, s.opts.Dialect)
	}

	start := time.Now()
	totals, err := sqlstream.Execute(ctx, s.session, statements,
		sqlstream.WithParallelism(s.opts.Parallelism), sqlstream.WithLogger(log))
	res := execResult{
		Statements:   totals.Statements,
		RowsAffected: totals.RowsAffected,
		Duration:     time.Since(start).String(),
	}
	if err != nil {
		log.ErrorWith("script failed", err, map[string]any{"statements_done": res.Statements})
		respondError(w, err)
		return
	}

	log.InfoWith("script executed", map[string]any{"statements": res.Statements, "rows": res.RowsAffected})
	respondJSON(w, http.StatusOK, res)
}
