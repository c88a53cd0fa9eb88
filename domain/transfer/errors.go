package transfer

import (
	"errors"
	"fmt"
)

// Kind classifies why a transfer settled as failed
type Kind string

const (
	KindSizeExceeded   Kind = "SIZE_EXCEEDED"
	KindDownload       Kind = "DOWNLOAD_ERROR"
	KindPublish        Kind = "PUBLISH_ERROR"
	KindNameResolution Kind = "NAME_RESOLUTION_ERROR"
	KindUnexpected     Kind = "UNEXPECTED_FAULT"
	KindAlreadyRunning Kind = "ALREADY_RUNNING"
)

// Error is the classified failure returned by a pipeline run
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the kind sentinels below, so errors.Is(err, ErrPublish) works
// whatever the cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Cause != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is
var (
	ErrSizeExceeded   = &Error{Kind: KindSizeExceeded}
	ErrDownload       = &Error{Kind: KindDownload}
	ErrPublish        = &Error{Kind: KindPublish}
	ErrNameResolution = &Error{Kind: KindNameResolution}
	ErrUnexpected     = &Error{Kind: KindUnexpected}
	ErrAlreadyRunning = &Error{Kind: KindAlreadyRunning}
)

// ErrEmptyName is returned by Resolve when no usable name could be produced
var ErrEmptyName = errors.New("resolved file name is empty")

// NewError wraps cause with kind
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// KindOf returns the classification of err, or KindUnexpected when err is not
// a classified transfer error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnexpected
}

// UserMessage is the plain-language explanation shown in the chat
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindSizeExceeded:
		return "The file is larger than the maximum size this bot can relay."
	case KindDownload:
		return "The file could not be downloaded from Telegram. Please send it again."
	case KindPublish:
		return "The file could not be saved to the destination. Please try again or check the bot permissions."
	case KindNameResolution:
		return "No usable file name could be derived for this file."
	case KindAlreadyRunning:
		return "This file is already being transferred."
	}
	return "Something went wrong while transferring the file. Please try again."
}
