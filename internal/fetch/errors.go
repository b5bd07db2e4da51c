package fetch

import (
	"errors"
	"fmt"
	"time"
)

// Error is the terminal outcome of a fetch whose attempt budget is spent.
// Transient records whether the underlying cause was retryable (the budget
// ran out) as opposed to a hard failure like 403/404, which is never
// retried.
type Error struct {
	URL       string
	Status    int
	Attempts  int
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d after %d attempt(s): %v", e.URL, e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s: failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// statusError classifies an HTTP response status.
type statusError struct {
	code      int
	transient bool
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// shortReadError is a body shorter than the declared Content-Length.
// Always retryable.
type shortReadError struct {
	got, want int64
}

func (e *shortReadError) Error() string {
	return fmt.Sprintf("short read: got %d of %d bytes", e.got, e.want)
}

// isTransient reports whether another attempt is allowed for err. Network
// errors and short reads are retryable; only an explicit permanent status
// (4xx) is not.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.transient
	}
	return true
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

// BackoffDelay is the delay before retry number attempt (1-based): base
// doubling per attempt, capped at max. Pure function of its inputs.
func BackoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base << (attempt - 1)
	if d <= 0 || d > max {
		return max
	}
	return d
}
