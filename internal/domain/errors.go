package domain

import "errors"

// ErrCancelled indicates the run was aborted by caller request. It is
// distinguished from failure so callers do not schedule an automatic retry.
var ErrCancelled = errors.New("acquisition cancelled")
