package engine

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnsupported is returned by a SignalSource that cannot observe a
// timing signal type. The engine treats it as a capability gap, never as
// a failure.
var ErrUnsupported = errors.New("timing signal unsupported")

// CapabilityError records which signal type a source could not observe.
type CapabilityError struct {
	// Signal is "long-task" or "interaction".
	Signal string
	Err    error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("observe %s: %v", e.Signal, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// IsUnsupported reports whether err means a signal type is unavailable.
// Uses errors.Is to handle wrapped errors.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// guard recovers a panic raised by instrumentation plumbing (a sink or a
// recorder) and logs it. Failures inside the engine never reach the host.
func guard(logger *slog.Logger, what string) {
	if r := recover(); r != nil {
		logger.Error("instrumentation failure recovered", "where", what, "panic", r)
	}
}
