// Package timeline implements the scraping engine: session validation,
// structured post extraction from rendered search pages, and the
// scroll-and-deduplicate collection loop.
package timeline

// Platform surfaces.
const (
	BaseURL = "https://x.com"
	HomeURL = "https://x.com/home"
)

// Markers for the search timeline DOM. X renames classes constantly but has
// kept data-testid attributes comparatively stable; extraction leans on
// those and falls back to text heuristics where it can.
const (
	selTweet         = `article[data-testid="tweet"]`
	selTweetText     = `[data-testid="tweetText"]`
	selLikeButton    = `[data-testid="like"]`
	selVerifiedBadge = `[data-testid="icon-verified"]`
	selDirText       = `div[dir="ltr"], div[dir="auto"]`

	// statusSegment marks a post permalink as opposed to a profile link.
	statusSegment = "/status/"
)

// Structural affordances that only render for an authenticated session.
const (
	selHomeLink      = `a[href="/home"]`
	selProfileLink   = `a[data-testid="AppTabBar_Profile_Link"]`
	selPrimaryColumn = `div[data-testid="primaryColumn"]`
)

// Login-intent elements that show up on gate pages.
const selLoginAffordance = `a[href*="/login"], a[data-testid="login"], [data-testid="loginButton"]`
