// Package server exposes the scraper over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/spinola103/sales-radar/pkg/config"
	errs "github.com/spinola103/sales-radar/pkg/errors"
	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/models"
	"github.com/spinola103/sales-radar/pkg/ratelimit"
)

// Runner executes one scrape.
type Runner interface {
	Run(ctx context.Context, query string, maxItems int) (*models.RunResult, error)
}

// Server routes scrape requests to a Runner.
type Server struct {
	cfg     config.ServerConfig
	runner  Runner
	limiter ratelimit.Limiter
	log     logger.Logger
	router  chi.Router
}

// New builds the server. Rate limiting is enabled when the config sets a
// positive per-minute budget.
func New(cfg config.ServerConfig, runner Runner, log logger.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		log:    log,
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = ratelimit.NewTokenBucket(cfg.RequestsPerMinute, time.Minute)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scrape", s.handleScrape)
		r.Get("/scrape", s.handleScrape)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until the context is cancelled, then
// drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type scrapeRequest struct {
	Query    string `json:"query"`
	MaxPosts int    `json:"max_posts"`
}

type scrapeResponse struct {
	RunID        string        `json:"run_id"`
	Query        string        `json:"query"`
	RequestedMax int           `json:"requested_max"`
	Count        int           `json:"count"`
	DurationMS   int64         `json:"duration_ms"`
	Posts        []models.Post `json:"posts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
		return
	}

	req, err := decodeScrapeRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	reqLog := s.log.WithFields(map[string]interface{}{
		"request_id": middleware.GetReqID(r.Context()),
		"query":      req.Query,
	})

	res, err := s.runner.Run(r.Context(), req.Query, req.MaxPosts)
	if err != nil {
		if errs.IsLoginRequired(err) {
			reqLog.WithError(err).Warn("scrape rejected, authentication required")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication_required"})
			return
		}
		reqLog.WithError(err).Error("scrape failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scrape_failed"})
		return
	}

	posts := res.Posts
	if posts == nil {
		posts = []models.Post{}
	}
	writeJSON(w, http.StatusOK, scrapeResponse{
		RunID:        res.RunID,
		Query:        res.Query,
		RequestedMax: res.RequestedMax,
		Count:        res.Count,
		DurationMS:   res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
		Posts:        posts,
	})
}

func decodeScrapeRequest(r *http.Request) (scrapeRequest, error) {
	var req scrapeRequest

	switch r.Method {
	case http.MethodGet:
		req.Query = r.URL.Query().Get("query")
		if raw := r.URL.Query().Get("max_posts"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return req, errs.New(errs.ErrorTypeUnknown, "max_posts must be an integer")
			}
			req.MaxPosts = n
		}
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errs.New(errs.ErrorTypeUnknown, "invalid request body")
		}
	}

	if req.Query == "" {
		return req, errs.New(errs.ErrorTypeUnknown, "query is required")
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
