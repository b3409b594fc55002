package timeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/spinola103/sales-radar/pkg/config"
	errs "github.com/spinola103/sales-radar/pkg/errors"
	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/models"
)

// PageSession is the slice of a live browser page the collector needs. The
// production implementation is browser.Session; tests substitute fakes.
type PageSession interface {
	// HTML returns the current rendered document.
	HTML() (string, error)
	// ContentHeight returns the document's scrollable height in pixels.
	ContentHeight() (float64, error)
	// ScrollByViewport scrolls down by the given fraction of the viewport.
	ScrollByViewport(fraction float64) error
}

// timestampLayouts are tried in order when normalizing a post's raw
// timestamp for sorting.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
}

// Collector runs the incremental scroll-and-deduplicate loop over a search
// timeline page.
type Collector struct {
	extractor    *Extractor
	scrollDelay  time.Duration
	scrollBudget int
	log          logger.Logger
}

// NewCollector creates a collector with the configured pacing and
// stagnation budget.
func NewCollector(cfg config.SearchConfig, log logger.Logger) *Collector {
	return &Collector{
		extractor:    NewExtractor(log),
		scrollDelay:  cfg.ScrollDelay,
		scrollBudget: cfg.ScrollBudget,
		log:          log,
	}
}

// Collect accumulates posts from the page until maxItems are gathered or
// the page stops growing. Each iteration extracts the full rendered
// document, merges new permalinks into the accumulated set (first
// occurrence wins), scrolls, and waits for lazy content.
//
// The stagnation budget counts consecutive iterations where the content
// height did not change; it resets whenever the page grows. Collecting
// zero posts with no session cookies is reported as a login gate.
func (c *Collector) Collect(ctx context.Context, sess PageSession, maxItems int, hasCookies bool) ([]models.Post, error) {
	var collected []models.Post
	seen := make(map[string]bool)

	lastHeight := -1.0
	stagnant := 0
	var lastHTML string

	for len(collected) < maxItems && stagnant < c.scrollBudget {
		if err := ctx.Err(); err != nil {
			return collected, err
		}

		html, err := sess.HTML()
		if err != nil {
			c.log.WithError(err).Warn("failed to read page snapshot, stopping collection")
			break
		}
		lastHTML = html

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			c.log.WithError(err).Warn("failed to parse page snapshot, stopping collection")
			break
		}

		added := 0
		for _, post := range c.extractor.Posts(doc) {
			if seen[post.Permalink] {
				continue
			}
			seen[post.Permalink] = true
			collected = append(collected, post)
			added++
			if len(collected) >= maxItems {
				break
			}
		}

		c.log.DebugWithFields("collection pass", map[string]interface{}{
			"added":     added,
			"collected": len(collected),
			"target":    maxItems,
			"stagnant":  stagnant,
		})

		if len(collected) >= maxItems {
			break
		}

		height, err := sess.ContentHeight()
		if err != nil {
			c.log.WithError(err).Warn("failed to measure page height, stopping collection")
			break
		}
		if lastHeight < 0 {
			lastHeight = height
		} else if height == lastHeight {
			stagnant++
		} else {
			stagnant = 0
			lastHeight = height
		}
		if stagnant >= c.scrollBudget {
			c.log.InfoWithFields("page stopped growing, ending collection", map[string]interface{}{
				"collected": len(collected),
				"attempts":  stagnant,
			})
			break
		}

		if err := sess.ScrollByViewport(0.9); err != nil {
			c.log.WithError(err).Warn("scroll failed, stopping collection")
			break
		}
		if err := sleep(ctx, c.scrollDelay); err != nil {
			return collected, err
		}
	}

	if len(collected) == 0 {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(lastHTML)); err == nil {
			if IsBlocked(doc) && !hasCookies {
				return nil, errs.LoginRequired(
					"search page served a login gate and no session cookies were provided", "", "")
			}
		}
		c.log.Warn("collection finished with zero posts")
	}

	return collected, nil
}

// Finalize orders posts newest first and truncates to the requested
// maximum. Raw timestamps are normalized where a known layout matches;
// posts without a parseable timestamp sort to the end.
func Finalize(posts []models.Post, maxItems int) []models.Post {
	for i := range posts {
		posts[i].PostedAt = parseTimestamp(posts[i].Timestamp)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		var ti, tj time.Time
		if posts[i].PostedAt != nil {
			ti = *posts[i].PostedAt
		}
		if posts[j].PostedAt != nil {
			tj = *posts[j].PostedAt
		}
		return ti.After(tj)
	})

	if len(posts) > maxItems {
		posts = posts[:maxItems]
	}
	return posts
}

func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// sleep waits for the delay or the context, whichever ends first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
