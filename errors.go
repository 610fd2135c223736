package annex

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below matches its sentinel through
// errors.Is.
var (
	// ErrRegistration marks a malformed callback descriptor.
	ErrRegistration = errors.New("registration error")

	// ErrResolution marks a name or query that did not resolve as required.
	ErrResolution = errors.New("resolution error")

	// ErrCallback marks a failure raised by a callback body.
	ErrCallback = errors.New("callback error")

	// ErrOverlayState marks a write to a frozen overlay.
	ErrOverlayState = errors.New("overlay state error")

	// ErrBuildFailed is returned when extensions reported error diagnostics.
	ErrBuildFailed = errors.New("build failed")
)

// RegistrationError reports a callback whose parameter list cannot be
// dispatched. It is detected before any phase runs.
type RegistrationError struct {
	Callback string
	Phase    Phase
	// Param is the offending parameter position, or -1 when the problem
	// concerns the parameter list as a whole.
	Param  int
	Reason string
	Hint   string
}

func (e *RegistrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "registration: callback %q (%s)", e.Callback, e.Phase)
	if e.Param >= 0 {
		fmt.Fprintf(&b, " parameter %d", e.Param)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Hint != "" {
		b.WriteString(" (hint: ")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}
	return b.String()
}

func (e *RegistrationError) Is(target error) bool { return target == ErrRegistration }

// ResolutionError reports that a callback argument could not be bound: a
// singular query parameter matched zero or several declarations.
type ResolutionError struct {
	Callback string
	Phase    Phase
	Query    string
	Matches  int
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution: callback %q (%s): %s matched %d declarations, want exactly 1",
		e.Callback, e.Phase, e.Query, e.Matches)
}

func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// CallbackError wraps a failure raised from a callback body.
type CallbackError struct {
	Callback string
	Phase    Phase
	// Target is the qualified name of the declaration the invocation was
	// bound to, when known.
	Target string
	Cause  error
}

func (e *CallbackError) Error() string {
	msg := fmt.Sprintf("callback %q (%s)", e.Callback, e.Phase)
	if e.Target != "" {
		msg += " on " + e.Target
	}
	return msg + ": " + e.Cause.Error()
}

func (e *CallbackError) Unwrap() error { return e.Cause }

func (e *CallbackError) Is(target error) bool { return target == ErrCallback }

// OverlayStateError reports a write attempted after the overlay was frozen.
// It indicates a sequencing bug, never a user mistake.
type OverlayStateError struct {
	Op     string
	Target string
}

func (e *OverlayStateError) Error() string {
	return fmt.Sprintf("overlay: %s on %s after freeze", e.Op, e.Target)
}

func (e *OverlayStateError) Is(target error) bool { return target == ErrOverlayState }
