// Package server exposes the query engine over HTTP. The service is meant
// to listen on a trusted local interface; there is no auth layer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/exalmatuz/bw-reports-agent/internal/query"
)

type Server struct {
	engine *query.Engine
	log    zerolog.Logger
	srv    *http.Server
}

func NewServer(engine *query.Engine, log zerolog.Logger) *Server {
	return &Server{engine: engine, log: log}
}

// Router builds the route table. Exposed separately so tests can drive it
// with httptest without binding a port.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/reports/search", s.handleSearch).Methods(http.MethodGet)
	return r
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := query.Params{
		Prefix:       q.Get("prefix"),
		Start:        q.Get("start"),
		End:          q.Get("end"),
		ServerName:   q.Get("server_name"),
		IP:           q.Get("ip"),
		SecurityMode: q.Get("security_mode"),
		Status:       q.Get("status"),
		Reason:       q.Get("reason"),
		Country:      q.Get("country"),
		Method:       q.Get("method"),
		URLContains:  q.Get("url_contains"),
		UAContains:   q.Get("ua_contains"),
		Order:        q.Get("order"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			params.Limit = n
		}
	}

	result, err := s.engine.Search(r.Context(), params)
	if err != nil {
		if errors.Is(err, query.ErrBadRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error().Err(err).Msg("search failed")
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	s.log.Debug().
		Str("start", params.Start).
		Str("end", params.End).
		Int("count", result.Count).
		Msg("search served")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}
