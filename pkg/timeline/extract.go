package timeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "github.com/spinola103/sales-radar/pkg/errors"
	"github.com/spinola103/sales-radar/pkg/logger"
	"github.com/spinola103/sales-radar/pkg/models"
)

var (
	// handlePattern matches an @handle token in visible text. X usernames
	// are 1-15 word characters.
	handlePattern = regexp.MustCompile(`@(\w{1,15})\b`)

	// countPattern picks the first digit run (with thousands separators)
	// out of a like-control label such as "1,024 Likes. Like".
	countPattern = regexp.MustCompile(`[\d,]+`)

	// profileSuffixPattern matches an absolute link ending in
	// domain/<single-segment>, the shape of a profile URL.
	profileSuffixPattern = regexp.MustCompile(`(?:x\.com|twitter\.com)/@?(\w{1,15})$`)
)

// Extractor turns one rendered document snapshot into structured posts. It
// is a pure read of the snapshot: no navigation, no mutation.
type Extractor struct {
	log logger.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{log: log}
}

// Posts extracts every well-formed post from the document, deduplicated by
// permalink within the pass. A malformed candidate is skipped; it never
// aborts the rest of the pass.
func (e *Extractor) Posts(doc *goquery.Document) []models.Post {
	var posts []models.Post
	seen := make(map[string]bool)

	doc.Find(selTweet).Each(func(i int, candidate *goquery.Selection) {
		post, err := e.extractOne(candidate)
		if err != nil {
			e.log.DebugWithFields("skipping candidate", map[string]interface{}{
				"index":  i,
				"reason": err.Error(),
			})
			return
		}
		if seen[post.Permalink] {
			return
		}
		seen[post.Permalink] = true
		posts = append(posts, post)
	})

	return posts
}

// extractOne processes a single candidate container. Panics from surprising
// markup are converted into a skip, not a crash.
func (e *Extractor) extractOne(candidate *goquery.Selection) (post models.Post, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.ErrorTypeExtraction, fmt.Sprintf("candidate panicked: %v", r))
		}
	}()

	post.Text = strings.TrimSpace(candidate.Find(selTweetText).First().Text())
	if post.Text == "" {
		return post, errs.New(errs.ErrorTypeExtraction, "empty body text")
	}

	post.Permalink = permalink(candidate)
	if post.Permalink == "" {
		return post, errs.New(errs.ErrorTypeExtraction, "no permalink")
	}

	if anchor := profileAnchor(candidate); anchor != nil {
		href, _ := anchor.Attr("href")
		post.Handle = handleFromHref(href)
		post.Author = displayName(anchor, candidate)
	} else {
		post.Author = dirTextFallback(candidate)
		if m := handlePattern.FindStringSubmatch(candidate.Text()); m != nil {
			post.Handle = m[1]
		}
	}

	post.Likes = likeCount(candidate)
	post.Verified = candidate.Find(selVerifiedBadge).Length() > 0
	post.Timestamp = rawTimestamp(candidate)

	return post, nil
}

// permalink finds the post's own URL: the first internal link containing a
// status segment, absolutized against the platform domain.
func permalink(candidate *goquery.Selection) string {
	link := ""
	candidate.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !strings.Contains(href, statusSegment) {
			return true
		}
		if strings.HasPrefix(href, "/") {
			link = BaseURL + href
		} else {
			link = href
		}
		return false
	})
	return link
}

// profileAnchor locates the author-profile link inside a candidate,
// disambiguated from the permalink and other links:
//
//  1. an internal link without a status segment whose path has exactly one
//     non-empty segment (looks like /username),
//  2. failing that, any link whose absolute form ends in
//     domain/<single-segment>,
//  3. failing that, nil; the caller falls back to text heuristics.
func profileAnchor(candidate *goquery.Selection) *goquery.Selection {
	var anchor *goquery.Selection

	candidate.Find(`a[href^="/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, statusSegment) {
			return true
		}
		if len(pathSegments(href)) == 1 {
			anchor = a
			return false
		}
		return true
	})
	if anchor != nil {
		return anchor
	}

	candidate.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, statusSegment) {
			return true
		}
		if profileSuffixPattern.MatchString(href) {
			anchor = a
			return false
		}
		return true
	})
	return anchor
}

// pathSegments returns the non-empty path segments of an internal href,
// with query string and fragment stripped.
func pathSegments(href string) []string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	var segments []string
	for _, s := range strings.Split(href, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// handleFromHref derives the author handle from a profile link target:
// strip domain, query, fragment and leading slash, take the first path
// segment, drop any leading "@".
func handleFromHref(href string) string {
	href = strings.TrimPrefix(href, "https://")
	href = strings.TrimPrefix(href, "http://")
	if i := strings.Index(href, "/"); i >= 0 && !strings.HasPrefix(href, "/") {
		href = href[i:]
	}
	segments := pathSegments(href)
	if len(segments) == 0 {
		return ""
	}
	return strings.TrimPrefix(segments[0], "@")
}

// displayName resolves the author's display name with descending
// confidence: nested text under the profile anchor, a directional-text
// container elsewhere in the candidate, then the anchor's accessible name
// or title.
func displayName(anchor, candidate *goquery.Selection) string {
	if name := firstText(anchor.Children().Children()); name != "" {
		return name
	}
	if name := firstText(anchor.Children()); name != "" {
		return name
	}
	if name := dirTextFallback(candidate); name != "" {
		return name
	}
	if label, ok := anchor.Attr("aria-label"); ok && strings.TrimSpace(label) != "" {
		return strings.TrimSpace(label)
	}
	if title, ok := anchor.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return ""
}

// dirTextFallback returns the text of the first non-empty directional-text
// container in the candidate, the usual home of the display name when no
// profile anchor can be identified.
func dirTextFallback(candidate *goquery.Selection) string {
	text := ""
	candidate.Find(selDirText).EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if t := strings.TrimSpace(c.Text()); t != "" {
			text = t
			return false
		}
		return true
	})
	return text
}

// firstText returns the trimmed text of the first element in the selection
// that has any.
func firstText(sel *goquery.Selection) string {
	text := ""
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			text = t
			return false
		}
		return true
	})
	return text
}

// likeCount reads the like control's accessible name (or visible text) and
// parses the first digit run, tolerating thousands separators. Absent or
// unparseable counts default to 0.
func likeCount(candidate *goquery.Selection) int {
	control := candidate.Find(selLikeButton).First()
	if control.Length() == 0 {
		return 0
	}
	label, ok := control.Attr("aria-label")
	if !ok || strings.TrimSpace(label) == "" {
		label = control.Text()
	}
	digits := countPattern.FindString(label)
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(digits, ",", ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// rawTimestamp reads the time element's machine-readable datetime
// attribute, falling back to its visible text.
func rawTimestamp(candidate *goquery.Selection) string {
	t := candidate.Find("time").First()
	if t.Length() == 0 {
		return ""
	}
	if dt, ok := t.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return strings.TrimSpace(dt)
	}
	return strings.TrimSpace(t.Text())
}
