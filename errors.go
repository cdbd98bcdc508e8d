package after

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Returned, possibly wrapped, when a required host capability is absent
	// at the point of use.
	ErrConfiguration = errors.New("A required host capability is not configured")

	// Returned, possibly wrapped, when Schedule is passed a value which is
	// neither an awaitable nor a callable.
	ErrTaskType = errors.New("Scheduled value is neither an awaitable nor a callable")

	// Returned when Schedule or Run is reached from within a draining pass.
	// Deferred work may not schedule further deferred work.
	ErrNested = errors.New("Cannot schedule deferred work from within a deferred callback")

	// Matched by errors.Is for every InternalError. Marks a broken internal
	// precondition rather than anything the caller can control.
	ErrInternal = errors.New("internal defect in git.sr.ht/~avail/after")
)

func missingCapability(name string) error {
	return fmt.Errorf("The host does not provide the %s capability: %w", name, ErrConfiguration)
}

// InternalError reports a consistency violation inside this package. It is
// never used for conditions a caller can control; if one surfaces, it is a
// bug in this package.
type InternalError struct {
	msg string
}

// Normalizes msg to end with a single period so the defect note reads as a
// separate sentence.
func newInternalError(msg string) *InternalError {
	msg = strings.TrimRight(strings.TrimSpace(msg), ".")
	return &InternalError{msg: msg + "."}
}

func (e *InternalError) Error() string {
	return e.msg + " This is a defect in git.sr.ht/~avail/after, not in the calling code."
}

func (e *InternalError) Unwrap() error {
	return ErrInternal
}
