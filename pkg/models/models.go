package models

import "time"

// SessionState classifies a rendered page. It is recomputed on every
// navigation and never persisted.
type SessionState int

const (
	StateIndeterminate SessionState = iota
	StateAuthenticated
	StateBlocked
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateBlocked:
		return "blocked"
	default:
		return "indeterminate"
	}
}

// Post is one collected post from the search timeline. Permalink is the
// identity: within a run posts are unique by permalink and the first
// occurrence wins.
type Post struct {
	Permalink string `json:"permalink"`
	Author    string `json:"author,omitempty"`
	// Handle is the author's username without the leading "@".
	Handle   string `json:"handle,omitempty"`
	Text     string `json:"text"`
	Likes    int    `json:"likes"`
	Verified bool   `json:"verified"`
	// Timestamp is the raw value read from the page, usually the time
	// element's datetime attribute.
	Timestamp string `json:"timestamp,omitempty"`
	// PostedAt is the normalized timestamp. Nil when Timestamp was absent
	// or unparseable.
	PostedAt *time.Time `json:"posted_at"`
}

// Cookie is a session credential supplied by the cookie source. The engine
// only reads cookies; it never writes them back.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
}

// RunResult is the outcome of one scrape run: posts sorted newest-first and
// truncated to the requested maximum, plus run metadata.
type RunResult struct {
	RunID        string    `json:"run_id"`
	Query        string    `json:"query"`
	RequestedMax int       `json:"requested_max"`
	Count        int       `json:"count"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Posts        []Post    `json:"posts"`
}
