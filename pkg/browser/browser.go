// Package browser launches a Chromium instance through rod and exposes one
// controlled page as a timeline.BrowserSession.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/spinola103/sales-radar/pkg/config"
	errs "github.com/spinola103/sales-radar/pkg/errors"
	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/models"
	"github.com/spinola103/sales-radar/pkg/retry"
	"github.com/spinola103/sales-radar/pkg/timeline"
)

// Launcher starts headless Chromium sessions.
type Launcher struct {
	cfg config.BrowserConfig
	log logger.Logger
}

// NewLauncher creates a launcher from browser settings.
func NewLauncher(cfg config.BrowserConfig, log logger.Logger) *Launcher {
	return &Launcher{cfg: cfg, log: log}
}

// Open launches the browser, opens a page, applies the stealth script and
// user agent, and installs the session cookies. Launch and connect are
// retried since Chromium startup flakes under load.
func (l *Launcher) Open(ctx context.Context, sessionCookies []models.Cookie) (timeline.BrowserSession, error) {
	var sess *Session

	err := retry.Do(func() error {
		s, err := l.open(ctx, sessionCookies)
		if err != nil {
			return err
		}
		sess = s
		return nil
	}, &retry.Config{
		MaxAttempts: 3,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: ctx,
		Logger:  l.log,
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (l *Launcher) open(ctx context.Context, sessionCookies []models.Cookie) (*Session, error) {
	lnchr := launcher.New().
		Headless(l.cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", "1280,1024")
	if l.cfg.BinPath != "" {
		lnchr = lnchr.Bin(l.cfg.BinPath)
	}

	controlURL, err := lnchr.Launch()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "failed to launch browser", err)
	}

	br := rod.New().ControlURL(controlURL).Context(ctx)
	if err := br.Connect(); err != nil {
		lnchr.Cleanup()
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "failed to connect to browser", err)
	}

	page, err := br.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		br.Close()
		lnchr.Cleanup()
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "failed to open page", err)
	}

	// Fingerprint hardening is best effort. A failed stealth injection
	// degrades detectability, not correctness.
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		l.log.WithError(err).Warn("stealth script injection failed")
	}

	if l.cfg.UserAgent != "" {
		override := proto.NetworkSetUserAgentOverride{UserAgent: l.cfg.UserAgent}
		if err := page.SetUserAgent(&override); err != nil {
			l.log.WithError(err).Warn("user agent override failed")
		}
	}

	for _, c := range sessionCookies {
		cookie := proto.NetworkSetCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			cookie.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		if _, err := cookie.Call(page); err != nil {
			l.log.WithError(err).WithField("cookie", c.Name).Warn("failed to set cookie")
		}
	}

	l.log.InfoWithFields("browser session opened", map[string]interface{}{
		"headless": l.cfg.Headless,
		"cookies":  len(sessionCookies),
	})

	return &Session{page: page, browser: br, launcher: lnchr, log: l.log}, nil
}

// Session is one live page in a launched browser.
type Session struct {
	page     *rod.Page
	browser  *rod.Browser
	launcher *launcher.Launcher
	log      logger.Logger
	closed   sync.Once
}

// Navigate loads a URL and waits for the load event within the timeout.
func (s *Session) Navigate(url string, timeout time.Duration) error {
	page := s.page.Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return errs.Wrap(errs.ErrorTypeNavigation, fmt.Sprintf("failed to navigate to %s", url), err)
	}
	if err := page.WaitLoad(); err != nil {
		return errs.Wrap(errs.ErrorTypeNavigation, fmt.Sprintf("page load did not settle for %s", url), err)
	}
	return nil
}

// WaitElement waits for the selector to appear within the timeout.
func (s *Session) WaitElement(selector string, timeout time.Duration) error {
	if _, err := s.page.Timeout(timeout).Element(selector); err != nil {
		return errs.Wrap(errs.ErrorTypeNavigation, fmt.Sprintf("element %q did not appear", selector), err)
	}
	return nil
}

// HTML returns the current rendered document.
func (s *Session) HTML() (string, error) {
	html, err := s.page.HTML()
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeExtraction, "failed to read page HTML", err)
	}
	return html, nil
}

// ContentHeight returns the document's scrollable height in pixels.
func (s *Session) ContentHeight() (float64, error) {
	res, err := s.page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeExtraction, "failed to measure content height", err)
	}
	return res.Value.Num(), nil
}

// ScrollByViewport scrolls down by the given fraction of the viewport.
func (s *Session) ScrollByViewport(fraction float64) error {
	script := fmt.Sprintf(`() => window.scrollBy(0, window.innerHeight * %g)`, fraction)
	if _, err := s.page.Eval(script); err != nil {
		return errs.Wrap(errs.ErrorTypeNavigation, "failed to scroll", err)
	}
	return nil
}

// Screenshot captures a full-page screenshot as PNG.
func (s *Session) Screenshot() ([]byte, error) {
	shot, err := s.page.Screenshot(true, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDiagnostic, "failed to capture screenshot", err)
	}
	return shot, nil
}

// Close shuts the browser down and removes the launcher's temp profile.
func (s *Session) Close() {
	s.closed.Do(func() {
		if err := s.browser.Close(); err != nil {
			s.log.WithError(err).Debug("browser close reported an error")
		}
		s.launcher.Cleanup()
	})
}
