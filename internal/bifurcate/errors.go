package bifurcate

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a bifurcation failure. Peers and callers branch on the
// kind and unwrap the cause; there is no error hierarchy beyond this.
type Kind int

const (
	// KindInvalidConfig marks option validation failures. These are returned
	// synchronously, before any consumer goroutine is spawned.
	KindInvalidConfig Kind = iota

	// KindSource marks a failed source read or close.
	KindSource

	// KindConsumer marks a branch consumer that returned an error or
	// panicked.
	KindConsumer

	// KindCancelled marks a fired context.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfig:
		return "invalid config"
	case KindSource:
		return "source failure"
	case KindConsumer:
		return "consumer failure"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the single failure type the package surfaces: a tagged wrapper
// around the first offending cause. During a global failure every sibling
// reader observes the same *Error on its next read, and the same value is
// passed to every configured OnError callback.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bifurcate: %s", e.Kind)
	}
	return fmt.Sprintf("bifurcate: %s: %v", e.Kind, e.Err)
}

// Unwrap exposes the original cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidConfig, Err: fmt.Errorf(format, args...)}
}

// annotateConfig prefixes a validation failure with the branch position
// without stacking a second wrapper around it.
func annotateConfig(label string, i int, err error) *Error {
	var werr *Error
	if errors.As(err, &werr) {
		return &Error{Kind: KindInvalidConfig, Err: fmt.Errorf("%s %d: %w", label, i, werr.Err)}
	}
	return &Error{Kind: KindInvalidConfig, Err: fmt.Errorf("%s %d: %w", label, i, err)}
}

// wrapFailure tags err with kind unless it is already a wrapped failure, so
// the first offending cause survives the fanout unchanged. Context errors
// are always classified as cancellations.
func wrapFailure(kind Kind, err error) *Error {
	var werr *Error
	if errors.As(err, &werr) {
		return werr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCancelled
	}
	return &Error{Kind: kind, Err: err}
}
