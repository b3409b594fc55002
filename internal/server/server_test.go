package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinola103/sales-radar/pkg/config"
	errs "github.com/spinola103/sales-radar/pkg/errors"
	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/models"
)

type fakeRunner struct {
	res       *models.RunResult
	err       error
	lastQuery string
	lastMax   int
}

func (f *fakeRunner) Run(ctx context.Context, query string, maxItems int) (*models.RunResult, error) {
	f.lastQuery = query
	f.lastMax = maxItems
	return f.res, f.err
}

func testServer(runner Runner, rpm int) *Server {
	cfg := config.ServerConfig{
		Addr:              ":0",
		RequestTimeout:    time.Minute,
		RequestsPerMinute: rpm,
	}
	return New(cfg, runner, logger.GetLogger())
}

func sampleResult() *models.RunResult {
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	return &models.RunResult{
		RunID:        "run-1",
		Query:        "crm",
		RequestedMax: 50,
		Count:        1,
		StartedAt:    started,
		FinishedAt:   started.Add(2 * time.Second),
		Posts: []models.Post{
			{Permalink: "https://x.com/a/status/1", Text: "hello"},
		},
	}
}

func TestHealthz(t *testing.T) {
	srv := testServer(&fakeRunner{}, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestScrapePost(t *testing.T) {
	runner := &fakeRunner{res: sampleResult()}
	srv := testServer(runner, 0)

	body := strings.NewReader(`{"query": "crm", "max_posts": 25}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scrape", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "crm", runner.lastQuery)
	assert.Equal(t, 25, runner.lastMax)

	var resp struct {
		RunID      string        `json:"run_id"`
		Count      int           `json:"count"`
		DurationMS int64         `json:"duration_ms"`
		Posts      []models.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, int64(2000), resp.DurationMS)
	require.Len(t, resp.Posts, 1)
}

func TestScrapeGetQueryParams(t *testing.T) {
	runner := &fakeRunner{res: sampleResult()}
	srv := testServer(runner, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scrape?query=payroll+software&max_posts=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payroll software", runner.lastQuery)
	assert.Equal(t, 10, runner.lastMax)
}

func TestScrapeMissingQuery(t *testing.T) {
	srv := testServer(&fakeRunner{}, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeInvalidBody(t *testing.T) {
	srv := testServer(&fakeRunner{}, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(`{{`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeLoginRequiredIs401(t *testing.T) {
	runner := &fakeRunner{err: errs.LoginRequired("session rejected", "", "")}
	srv := testServer(runner, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(`{"query": "crm"}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication_required"}`, rec.Body.String())
}

func TestScrapeOtherErrorIs500(t *testing.T) {
	runner := &fakeRunner{err: errors.New("browser exploded")}
	srv := testServer(runner, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(`{"query": "crm"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"scrape_failed"}`, rec.Body.String())
}

func TestScrapeRateLimited(t *testing.T) {
	runner := &fakeRunner{res: sampleResult()}
	srv := testServer(runner, 1)

	first := httptest.NewRecorder()
	srv.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(`{"query": "crm"}`)))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	srv.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(`{"query": "crm"}`)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestScrapeEmptyPostsSerializesAsArray(t *testing.T) {
	res := sampleResult()
	res.Posts = nil
	res.Count = 0
	srv := testServer(&fakeRunner{res: res}, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(`{"query": "crm"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"posts":[]`)
}
