package session

import (
	"errors"
	"fmt"
)

// ErrSessionExpired signals that the backend no longer recognizes the
// session id. The controller reacts by clearing the persisted snapshot and
// returning to setup.
var ErrSessionExpired = errors.New("interview session is no longer recognized by the backend")

// ValidationError rejects malformed input before any network call. The
// session state is left untouched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}

	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TransportError wraps a network-level failure. The operation that hit it is
// retryable and the session state is preserved at the pre-call state.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is worth retrying as-is.
func IsRetryable(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

// IntegrityError marks a collaborator response that violates an invariant,
// e.g. a level outside the valid range. It is logged and contained by
// clamping or defaulting at the boundary, never propagated as a failure.
type IntegrityError struct {
	Field  string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s: %s", e.Field, e.Reason)
}
