package timeline

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/spinola103/sales-radar/pkg/models"
)

// Block-page phrasings. Kept as text fallbacks alongside the structural
// login-affordance selector: selectors rot when the markup churns, text
// survives redesigns, so both layers stay OR-combined.
var blockPhrases = []string{
	"rate limit",
	"rate-limited",
	"temporarily restricted",
	"caution: this account is temporarily restricted",
}

var loginPromptPhrases = []string{
	"log in",
	"sign up",
	"sign in",
}

var brandPhrases = []string{
	"twitter",
	"x.com",
	"x corp",
}

// IsLoggedIn reports whether the rendered page belongs to an authenticated
// session. Only structural affordances count: a home-timeline link, the
// profile tab, or the timeline column. Textual "log in" content is
// deliberately not evidence either way, since logged-in pages can mention
// logging in and gate pages can omit it.
func IsLoggedIn(doc *goquery.Document) bool {
	if doc.Find(selHomeLink).Length() > 0 {
		return true
	}
	if doc.Find(selProfileLink).Length() > 0 {
		return true
	}
	if doc.Find(selPrimaryColumn).Length() > 0 {
		return true
	}
	return false
}

// IsBlocked reports whether the rendered search page is a login or
// rate-limit gate rather than a results timeline. Evidence is OR-combined:
// a login/signup prompt co-occurring with the brand name, block phrasings,
// or a structural login affordance.
func IsBlocked(doc *goquery.Document) bool {
	text := strings.ToLower(doc.Find("body").Text())

	if containsAny(text, loginPromptPhrases) && containsAny(text, brandPhrases) {
		return true
	}
	if containsAny(text, blockPhrases) {
		return true
	}
	if doc.Find(selLoginAffordance).Length() > 0 {
		return true
	}
	return false
}

// Classify maps a rendered document onto the session-state domain used by
// the orchestrator's auth stage.
func Classify(doc *goquery.Document) models.SessionState {
	if IsLoggedIn(doc) {
		return models.StateAuthenticated
	}
	if IsBlocked(doc) {
		return models.StateBlocked
	}
	return models.StateIndeterminate
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
