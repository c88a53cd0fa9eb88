package distribution

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaUnsupported is returned by backends that have no storage quota
	ErrQuotaUnsupported = errors.New("storage quota not supported by backend")

	// ErrContainerCreate is returned when the per-item folder cannot be created
	ErrContainerCreate = errors.New("failed to create destination folder")

	// ErrUnknownPlacement is returned for an unrecognised placement policy
	ErrUnknownPlacement = errors.New("unknown placement policy")
)

// PublishErrorKind subdivides publish failures so callers can decide what
// is worth retrying
type PublishErrorKind string

const (
	PublishAuth      PublishErrorKind = "auth"
	PublishQuota     PublishErrorKind = "quota"
	PublishTransient PublishErrorKind = "transient"
	PublishOther     PublishErrorKind = "other"
)

// PublishError wraps any failure from the destination
type PublishError struct {
	Kind  PublishErrorKind
	Cause error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed (%s): %v", e.Kind, e.Cause)
}

func (e *PublishError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a fresh attempt may succeed
func (e *PublishError) Retryable() bool {
	return e.Kind == PublishTransient
}

// NewPublishError wraps cause with kind. An existing PublishError in the
// chain keeps its own kind.
func NewPublishError(kind PublishErrorKind, cause error) *PublishError {
	var pe *PublishError
	if errors.As(cause, &pe) {
		return pe
	}
	return &PublishError{Kind: kind, Cause: cause}
}

// PublishKindOf returns the publish error kind in err's chain, or
// PublishOther when there is none
func PublishKindOf(err error) PublishErrorKind {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return PublishOther
}
