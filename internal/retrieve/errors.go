package retrieve

import (
	"errors"
	"fmt"
)

// Kind classifies a failed search or fetch attempt.
type Kind int

const (
	// KindHTTPError covers non-success status codes that are not a block or
	// a missing page. 5xx and 429 responses are transient.
	KindHTTPError Kind = iota
	// KindBlocked is an explicit deny: CAPTCHA interstitial, challenge page,
	// or a 403. Never retried on the same strategy.
	KindBlocked
	// KindTimeout is a request or navigation deadline. Transient.
	KindTimeout
	// KindNotFound is a 404. Terminal.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindBlocked:
		return "blocked"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	default:
		return "http_error"
	}
}

// Error is the typed failure for retrieval operations. The worker pool keys
// its retry decision off Transient.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("retrieve %s: %s", e.URL, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying on the same
// strategy. Blocked and NotFound are terminal.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindTimeout:
		return true
	case KindHTTPError:
		return e.Status == 0 || e.Status == 429 || e.Status >= 500
	default:
		return false
	}
}

// IsBlocked reports whether err carries an explicit deny signal.
func IsBlocked(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindBlocked
}

// IsNotFound reports whether err is a terminal missing-page failure.
func IsNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindNotFound
}

// classifyStatus maps an HTTP status code to a typed retrieval error.
// Returns nil for success codes.
func classifyStatus(url string, status int) *Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 403:
		return &Error{Kind: KindBlocked, URL: url, Status: status}
	case status == 404 || status == 410:
		return &Error{Kind: KindNotFound, URL: url, Status: status}
	default:
		return &Error{Kind: KindHTTPError, URL: url, Status: status}
	}
}
