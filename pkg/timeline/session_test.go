package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spinola103/sales-radar/pkg/models"
)

const authenticatedHome = `
<html><body>
  <a href="/home">Home</a>
  <a data-testid="AppTabBar_Profile_Link" href="/acmesales">Profile</a>
  <div data-testid="primaryColumn">timeline</div>
</body></html>`

const loginGate = `
<html><body>
  <h1>Happening now</h1>
  <p>Join X today. Sign up or log in to X.com to see posts.</p>
  <a href="/login">Log in</a>
</body></html>`

func TestIsLoggedInStructuralAffordances(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"home link", `<body><a href="/home">x</a></body>`, true},
		{"profile tab", `<body><a data-testid="AppTabBar_Profile_Link" href="/me">x</a></body>`, true},
		{"timeline column", `<body><div data-testid="primaryColumn"></div></body>`, true},
		{"bare gate", loginGate, false},
		{"empty page", `<body></body>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLoggedIn(parseHTML(t, tt.html)))
		})
	}
}

// A page that merely mentions logging in must not flip the authenticated
// verdict in either direction. Only structure decides.
func TestIsLoggedInIgnoresLoginText(t *testing.T) {
	html := `
<body>
  <div data-testid="primaryColumn">
    <p>Remember when you had to log in to see anything?</p>
  </div>
</body>`
	assert.True(t, IsLoggedIn(parseHTML(t, html)))

	textOnly := `<body><p>All systems operational.</p></body>`
	assert.False(t, IsLoggedIn(parseHTML(t, textOnly)))
}

func TestIsBlocked(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"login prompt with brand", loginGate, true},
		{"rate limit phrase", `<body><p>You are rate limited. Try again later.</p></body>`, true},
		{"restricted phrase", `<body><p>Caution: This account is temporarily restricted.</p></body>`, true},
		{"login affordance element", `<body><a data-testid="login" href="/i/flow/login">Log in</a></body>`, true},
		{"prompt without brand", `<body><p>Sign up for our newsletter!</p></body>`, false},
		{"plain results", `<body><div>10 results for your search</div></body>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlocked(parseHTML(t, tt.html)))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, models.StateAuthenticated, Classify(parseHTML(t, authenticatedHome)))
	assert.Equal(t, models.StateBlocked, Classify(parseHTML(t, loginGate)))
	assert.Equal(t, models.StateIndeterminate, Classify(parseHTML(t, `<body><p>loading</p></body>`)))
}
