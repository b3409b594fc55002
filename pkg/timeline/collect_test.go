package timeline

import (
	"context"
	"fmt"
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

// fakePage scripts a sequence of rendered snapshots. Scrolling advances to
// the next snapshot; the last snapshot and height repeat forever.
type fakePage struct {
	snapshots []string
	heights   []float64
	pos       int
	scrolls   int
}

func (f *fakePage) current() int {
	if f.pos >= len(f.snapshots) {
		return len(f.snapshots) - 1
	}
	return f.pos
}

func (f *fakePage) HTML() (string, error) {
	return f.snapshots[f.current()], nil
}

func (f *fakePage) ContentHeight() (float64, error) {
	return f.heights[f.current()], nil
}

func (f *fakePage) ScrollByViewport(fraction float64) error {
	f.scrolls++
	f.pos++
	return nil
}

func tweetHTML(id int, text string) string {
	return fmt.Sprintf(`
<article data-testid="tweet">
  <a href="/seller%d"><div><span>Seller %d</span></div></a>
  <a href="/seller%d/status/%d"><time datetime="2026-08-0%dT10:00:00Z">t</time></a>
  <div data-testid="tweetText">%s</div>
</article>`, id, id, id, id, (id%8)+1, text)
}

func page(tweets ...string) string {
	return "<html><body>" + strings.Join(tweets, "\n") + "</body></html>"
}

func testCollector(budget int) *Collector {
	return NewCollector(config.SearchConfig{
		MaxPostsDefault: 50,
		ScrollDelay:     time.Millisecond,
		ScrollBudget:    budget,
	}, logger.GetLogger())
}

func TestCollectMergesAcrossPassesFirstWins(t *testing.T) {
	sess := &fakePage{
		snapshots: []string{
			page(tweetHTML(1, "first"), tweetHTML(2, "second")),
			page(tweetHTML(2, "second"), tweetHTML(3, "third")),
			page(tweetHTML(3, "third")),
		},
		heights: []float64{1000, 2000, 2000},
	}

	posts, err := testCollector(1).Collect(context.Background(), sess, 10, true)
	require.NoError(t, err)

	require.Len(t, posts, 3)
	assert.Equal(t, "https://x.com/seller1/status/1", posts[0].Permalink)
	assert.Equal(t, "https://x.com/seller2/status/2", posts[1].Permalink)
	assert.Equal(t, "https://x.com/seller3/status/3", posts[2].Permalink)
}

func TestCollectStopsAtTarget(t *testing.T) {
	sess := &fakePage{
		snapshots: []string{page(tweetHTML(1, "a"), tweetHTML(2, "b"), tweetHTML(3, "c"), tweetHTML(4, "d"))},
		heights:   []float64{1000},
	}

	posts, err := testCollector(12).Collect(context.Background(), sess, 3, true)
	require.NoError(t, err)

	assert.Len(t, posts, 3)
	assert.Zero(t, sess.scrolls, "reaching the target should not trigger another scroll")
}

func TestCollectStagnationBudgetExhausts(t *testing.T) {
	sess := &fakePage{
		snapshots: []string{page(tweetHTML(1, "only one result"))},
		heights:   []float64{1000},
	}

	posts, err := testCollector(3).Collect(context.Background(), sess, 10, true)
	require.NoError(t, err)

	assert.Len(t, posts, 1)
	// First pass records the baseline height, then each unchanged pass
	// burns one budget unit.
	assert.Equal(t, 3, sess.scrolls)
}

func TestCollectFullBudgetOnStaticResults(t *testing.T) {
	sess := &fakePage{
		snapshots: []string{page(
			tweetHTML(1, "candidate a"),
			tweetHTML(2, "candidate b"),
			tweetHTML(3, "candidate c"),
		)},
		heights: []float64{1500},
	}

	posts, err := testCollector(12).Collect(context.Background(), sess, 10, true)
	require.NoError(t, err)

	assert.Len(t, posts, 3)
	assert.Equal(t, 12, sess.scrolls)

	// Finalization orders what the loop gathered.
	final := Finalize(posts, 10)
	require.Len(t, final, 3)
	for i := 1; i < len(final); i++ {
		if final[i-1].PostedAt != nil && final[i].PostedAt != nil {
			assert.False(t, final[i-1].PostedAt.Before(*final[i].PostedAt))
		}
	}
}

func TestCollectBudgetResetsWhenPageGrows(t *testing.T) {
	sess := &fakePage{
		snapshots: []string{
			page(tweetHTML(1, "a")),
			page(tweetHTML(1, "a")),
			page(tweetHTML(1, "a"), tweetHTML(2, "b")),
			page(tweetHTML(1, "a"), tweetHTML(2, "b")),
		},
		heights: []float64{1000, 1000, 2000, 2000},
	}

	posts, err := testCollector(2).Collect(context.Background(), sess, 10, true)
	require.NoError(t, err)

	assert.Len(t, posts, 2, "growth after a stagnant pass should keep the loop alive")
}

func TestCollectZeroPostsNoCookiesOnGateIsLoginRequired(t *testing.T) {
	sess := &fakePage{
		snapshots: []string{loginGate},
		heights:   []float64{500},
	}

	posts, err := testCollector(1).Collect(context.Background(), sess, 10, false)
	require.Error(t, err)
	assert.True(t, errs.IsLoginRequired(err))
	assert.Nil(t, posts)
}

func TestCollectZeroPostsWithCookiesIsEmptyResult(t *testing.T) {
	sess := &fakePage{
		snapshots: []string{loginGate},
		heights:   []float64{500},
	}

	posts, err := testCollector(1).Collect(context.Background(), sess, 10, true)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCollectZeroPostsNoGateIsEmptyResult(t *testing.T) {
	sess := &fakePage{
		snapshots: []string{page()},
		heights:   []float64{500},
	}

	posts, err := testCollector(1).Collect(context.Background(), sess, 10, false)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCollectHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess := &fakePage{
		snapshots: []string{page(tweetHTML(1, "a"))},
		heights:   []float64{1000},
	}

	_, err := testCollector(12).Collect(ctx, sess, 10, true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFinalizeSortsNewestFirstAndTruncates(t *testing.T) {
	posts := []models.Post{
		{Permalink: "p1", Timestamp: "2026-08-01T10:00:00Z"},
		{Permalink: "p2", Timestamp: "not a timestamp"},
		{Permalink: "p3", Timestamp: "2026-08-03T10:00:00.000Z"},
		{Permalink: "p4", Timestamp: "2026-08-02T10:00:00Z"},
	}

	out := Finalize(posts, 3)

	require.Len(t, out, 3)
	assert.Equal(t, "p3", out[0].Permalink)
	assert.Equal(t, "p4", out[1].Permalink)
	assert.Equal(t, "p1", out[2].Permalink)
	require.NotNil(t, out[0].PostedAt)
	assert.Equal(t, time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC), out[0].PostedAt.UTC())
}

func TestFinalizeUnparseableTimestampsSortLast(t *testing.T) {
	posts := []models.Post{
		{Permalink: "relative", Timestamp: "2h"},
		{Permalink: "dated", Timestamp: "2026-08-01T10:00:00Z"},
	}

	out := Finalize(posts, 10)

	require.Len(t, out, 2)
	assert.Equal(t, "dated", out[0].Permalink)
	assert.Equal(t, "relative", out[1].Permalink)
	assert.Nil(t, out[1].PostedAt)
}

func TestFinalizeStableForEqualTimestamps(t *testing.T) {
	posts := []models.Post{
		{Permalink: "a"},
		{Permalink: "b"},
		{Permalink: "c"},
	}

	out := Finalize(posts, 10)

	assert.Equal(t, []string{"a", "b", "c"},
		[]string{out[0].Permalink, out[1].Permalink, out[2].Permalink})
}
