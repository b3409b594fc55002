package timeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/spinola103/sales-radar/pkg/config"
	"github.com/spinola103/sales-radar/pkg/cookies"
	errs "github.com/spinola103/sales-radar/pkg/errors"
	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/models"
)

// runState tracks where a scrape run is in its lifecycle. States advance
// strictly forward; a failure at any stage moves straight to stateFailed.
type runState int

const (
	stateInit runState = iota
	stateSessionOpen
	stateAuthChecked
	stateSearchNavigated
	stateBlockChecked
	stateCollecting
	stateDone
	stateFailed
)

func (s runState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateSessionOpen:
		return "session_open"
	case stateAuthChecked:
		return "auth_checked"
	case stateSearchNavigated:
		return "search_navigated"
	case stateBlockChecked:
		return "block_checked"
	case stateCollecting:
		return "collecting"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BrowserSession is one live page in a controlled browser.
type BrowserSession interface {
	PageSession
	Navigate(url string, timeout time.Duration) error
	WaitElement(selector string, timeout time.Duration) error
	Screenshot() ([]byte, error)
	Close()
}

// SessionOpener launches a browser and opens a page with the given session
// cookies installed.
type SessionOpener interface {
	Open(ctx context.Context, cookies []models.Cookie) (BrowserSession, error)
}

// DiagnosticsWriter persists an evidence pair (screenshot plus document
// snapshot) for a failed session validation.
type DiagnosticsWriter interface {
	WriteDiagnostics(screenshot []byte, html string) (screenshotPath, snapshotPath string, err error)
}

// ResultWriter persists a finished run. Saving is best effort; the run's
// result is returned to the caller regardless.
type ResultWriter interface {
	SaveResult(res *models.RunResult) (string, error)
}

// Scraper drives a full run: open a session, validate authentication,
// navigate to the search timeline, check for gating, collect posts.
type Scraper struct {
	cfg     *config.Config
	opener  SessionOpener
	source  cookies.Source
	diag    DiagnosticsWriter
	results ResultWriter
	log     logger.Logger
}

// NewScraper wires a scraper from its collaborators. results may be nil to
// skip persistence.
func NewScraper(cfg *config.Config, opener SessionOpener, source cookies.Source, diag DiagnosticsWriter, results ResultWriter, log logger.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		opener:  opener,
		source:  source,
		diag:    diag,
		results: results,
		log:     log,
	}
}

// SearchURL builds the live search timeline URL for a query.
func SearchURL(query string) string {
	return fmt.Sprintf("%s/search?q=%s&src=typed_query&f=live", BaseURL, url.QueryEscape(query))
}

// Run executes one scrape for the query, returning at most maxItems posts
// sorted newest first. Authentication failure is always fatal; a gated
// search page is fatal only when the run had no cookies to begin with.
func (s *Scraper) Run(ctx context.Context, query string, maxItems int) (*models.RunResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.New(errs.ErrorTypeUnknown, "query must not be empty")
	}
	if maxItems <= 0 {
		maxItems = s.cfg.Search.MaxPostsDefault
	}

	started := time.Now().UTC()
	state := stateInit
	runLog := s.log.WithFields(map[string]interface{}{
		"query": query,
		"max":   maxItems,
	})

	sessionCookies := s.source.Load()
	runLog.InfoWithFields("starting scrape", map[string]interface{}{
		"cookies": len(sessionCookies),
	})

	sess, err := s.opener.Open(ctx, sessionCookies)
	if err != nil {
		state = stateFailed
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "failed to open browser session", err)
	}
	defer sess.Close()
	state = stateSessionOpen

	// Session validation happens on the home timeline, the surface whose
	// authenticated and gated variants differ most clearly.
	if err := sess.Navigate(HomeURL, s.cfg.Browser.NavTimeout); err != nil {
		runLog.WithError(err).Warn("home navigation did not settle, validating current state")
	}
	if err := s.checkAuthenticated(sess, runLog); err != nil {
		state = stateFailed
		return nil, err
	}
	state = stateAuthChecked

	if err := sess.Navigate(SearchURL(query), s.cfg.Browser.SearchTimeout); err != nil {
		runLog.WithError(err).Warn("search navigation did not settle, attempting collection anyway")
	}
	state = stateSearchNavigated

	if err := sess.WaitElement(selTweet, s.cfg.Browser.ElementTimeout); err != nil {
		runLog.WithError(err).Warn("no post rendered within the wait window")
	}

	if err := s.checkBlocked(sess, len(sessionCookies) > 0, runLog); err != nil {
		state = stateFailed
		return nil, err
	}
	state = stateBlockChecked

	state = stateCollecting
	collector := NewCollector(s.cfg.Search, s.log)
	posts, err := collector.Collect(ctx, sess, maxItems, len(sessionCookies) > 0)
	if err != nil {
		state = stateFailed
		return nil, err
	}
	posts = Finalize(posts, maxItems)
	state = stateDone

	res := &models.RunResult{
		RunID:        uuid.NewString(),
		Query:        query,
		RequestedMax: maxItems,
		Count:        len(posts),
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
		Posts:        posts,
	}

	runLog.InfoWithFields("scrape finished", map[string]interface{}{
		"run_id": res.RunID,
		"count":  res.Count,
		"state":  state.String(),
	})

	if s.results != nil {
		if path, err := s.results.SaveResult(res); err != nil {
			runLog.WithError(err).Warn("failed to persist run result")
		} else {
			runLog.WithField("path", path).Info("run result saved")
		}
	}

	return res, nil
}

// checkAuthenticated validates the session against the current page. On
// failure it captures diagnostics before returning; a run with an invalid
// session never proceeds to search.
func (s *Scraper) checkAuthenticated(sess BrowserSession, runLog logger.Logger) error {
	doc, err := s.snapshot(sess)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNavigation, "failed to snapshot page for session validation", err)
	}
	if IsLoggedIn(doc) {
		runLog.Info("session validated")
		return nil
	}

	screenshotPath, snapshotPath := s.captureDiagnostics(sess, runLog)
	runLog.ErrorWithFields("session is not authenticated", map[string]interface{}{
		"screenshot": screenshotPath,
		"snapshot":   snapshotPath,
	})
	return errs.LoginRequired("session is not authenticated, refresh the cookies", screenshotPath, snapshotPath)
}

// checkBlocked inspects the search page for a login or rate-limit gate. A
// gate without cookies is unrecoverable. With cookies installed the gate
// heuristics can false-positive on promotional chrome, so the run proceeds
// and lets collection decide.
func (s *Scraper) checkBlocked(sess BrowserSession, hasCookies bool, runLog logger.Logger) error {
	doc, err := s.snapshot(sess)
	if err != nil {
		runLog.WithError(err).Warn("failed to snapshot search page for gate check")
		return nil
	}
	if !IsBlocked(doc) {
		return nil
	}
	if hasCookies {
		runLog.Warn("search page resembles a gate but session cookies are present, continuing")
		return nil
	}

	screenshotPath, snapshotPath := s.captureDiagnostics(sess, runLog)
	return errs.LoginRequired("search page served a login gate and no session cookies were provided",
		screenshotPath, snapshotPath)
}

func (s *Scraper) snapshot(sess BrowserSession) (*goquery.Document, error) {
	html, err := sess.HTML()
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// captureDiagnostics saves a screenshot and document snapshot. Diagnostics
// are evidence for a failure already decided, so capture errors only log.
func (s *Scraper) captureDiagnostics(sess BrowserSession, runLog logger.Logger) (string, string) {
	if s.diag == nil {
		return "", ""
	}
	shot, err := sess.Screenshot()
	if err != nil {
		runLog.WithError(err).Warn("failed to capture diagnostic screenshot")
	}
	html, err := sess.HTML()
	if err != nil {
		runLog.WithError(err).Warn("failed to capture diagnostic snapshot")
	}
	screenshotPath, snapshotPath, err := s.diag.WriteDiagnostics(shot, html)
	if err != nil {
		runLog.WithError(err).Warn("failed to write diagnostics")
	}
	return screenshotPath, snapshotPath
}
