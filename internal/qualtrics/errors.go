package qualtrics

import (
	"errors"
	"fmt"
)

// ErrTimeout marks a request that was cut off by its deadline. Callers
// that need to branch on timeouts (the export fallback does not — it
// treats every hard failure the same) test with errors.Is.
var ErrTimeout = errors.New("request timed out")

// APIError is returned when the Qualtrics API answers with a non-2xx
// status. It carries the response body verbatim so the tool layer can
// surface the API's own diagnostics to the user.
type APIError struct {
	// StatusCode is the numeric HTTP status, e.g. 404.
	StatusCode int
	// Status is the full status line text, e.g. "404 Not Found".
	Status string
	// Body is the raw response body text.
	Body string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qualtrics API error: %s", e.Status)
	}
	return fmt.Sprintf("qualtrics API error: %s: %s", e.Status, e.Body)
}

// IsTimeout reports whether err is (or wraps) a request timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
