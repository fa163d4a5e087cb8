// Package router implements the capacity-aware assignment and
// conversation-lifecycle core: scoring, agent selection, and the state
// machine transitions that mutate capacity counters.
package router

import "errors"

// Sentinel errors for routing failures. Callers classify them with
// errors.Is or Kind.
var (
	// ErrInvalidStateTransition is returned when an operation is not valid
	// from the conversation's current state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNoEligibleAgent is returned when no online agent with spare
	// capacity can take the conversation, including when a manually chosen
	// agent is at capacity.
	ErrNoEligibleAgent = errors.New("no eligible agent")

	// ErrNotFound is returned when the conversation or agent does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when the acting user is not authorized
	// for the conversation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrCapacityExceeded is returned when a force-assign was requested and
	// even the forced agent could not be charged, e.g. it was removed from
	// the pool or went offline mid-call.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// Error kind names reported across the API boundary and in bulk item results.
const (
	KindInvalidStateTransition = "InvalidStateTransition"
	KindNoEligibleAgent        = "NoEligibleAgent"
	KindNotFound               = "NotFound"
	KindPermissionDenied       = "PermissionDenied"
	KindCapacityExceeded       = "CapacityExceeded"
	KindInternal               = "Internal"
)

// Kind maps an error to its stable kind name. Unrecognized errors map to
// Internal. A nil error maps to the empty string.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidStateTransition):
		return KindInvalidStateTransition
	case errors.Is(err, ErrNoEligibleAgent):
		return KindNoEligibleAgent
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrCapacityExceeded):
		return KindCapacityExceeded
	}
	return KindInternal
}
