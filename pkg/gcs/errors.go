package gcs

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind tags every fallible GCS operation's failure so callers can map
// it to a result status without inspecting error chains from the transport.
type ErrorKind int

const (
	// KindVendor means the GCS accepted the call but failed or rejected it.
	KindVendor ErrorKind = iota
	// KindValidation means the request itself was malformed.
	KindValidation
	// KindNotConnected means the operation requires an active session.
	KindNotConnected
	// KindTimeout means the operation exceeded its deadline.
	KindTimeout
	// KindTransport means the session itself broke. Only the connection
	// manager acts on these; command and mission callers never see them.
	KindTransport
)

// Error is the tagged error produced by GCS operations.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and the failing operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err. Deadline errors from context
// cancellation map to KindTimeout; anything untagged is a vendor failure,
// keeping the mapping total.
func KindOf(err error) ErrorKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindVendor
}
