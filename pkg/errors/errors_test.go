package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(ErrorTypeNavigation, "page load did not settle")
	assert.Equal(t, "navigation: page load did not settle", plain.Error())

	wrapped := Wrap(ErrorTypeNavigation, "failed to navigate", errors.New("net::ERR_TIMED_OUT"))
	assert.Equal(t, "navigation: failed to navigate: net::ERR_TIMED_OUT", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Wrap(ErrorTypeExtraction, "extraction failed", cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, errors.Unwrap(New(ErrorTypeUnknown, "no cause")))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeNavigation, TypeOf(New(ErrorTypeNavigation, "x")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("untyped")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))

	// Survives wrapping by callers.
	outer := fmt.Errorf("run failed: %w", LoginRequired("session rejected", "", ""))
	assert.Equal(t, ErrorTypeLoginRequired, TypeOf(outer))
}

func TestLoginRequiredCarriesDiagnostics(t *testing.T) {
	err := LoginRequired("session rejected", "/d/shot.png", "/d/page.html")

	require.True(t, IsLoginRequired(err))
	assert.Equal(t, "/d/shot.png", err.DiagnosticScreenshot)
	assert.Equal(t, "/d/page.html", err.DiagnosticSnapshot)

	assert.False(t, IsLoginRequired(errors.New("other")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNavigation))
	assert.True(t, IsRetryable(ErrorTypeUnknown))
	assert.False(t, IsRetryable(ErrorTypeLoginRequired))
	assert.False(t, IsRetryable(ErrorTypeExtraction))
	assert.False(t, IsRetryable(ErrorTypeDiagnostic))
}
