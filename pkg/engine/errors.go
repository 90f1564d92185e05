package engine

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle failure. Handlers map kinds onto HTTP statuses;
// the engine never leaks raw transport errors past its boundary.
type Kind string

const (
	KindInvalidRequest       Kind = "invalid_request"
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindMalformedPayload     Kind = "malformed_payload"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindInvalidState         Kind = "invalid_state"
	KindBadUpstreamRequest   Kind = "bad_upstream_request"
	KindUpstreamRejected     Kind = "upstream_rejected"
	KindInternal             Kind = "internal"
)

// Error is a classified lifecycle failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the failure kind, defaulting to internal for errors the
// engine did not classify.
func KindOf(err error) Kind {
	var e *Error

	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}
