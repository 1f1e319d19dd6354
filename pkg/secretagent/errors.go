package secretagent

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the pipeline stage that detected it.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors not produced by this package.
	KindUnknown Kind = iota
	// KindBadRequest is a malformed or empty secret identifier. No I/O was attempted.
	KindBadRequest
	// KindConnectionFailed is a TCP connect or TLS handshake failure.
	KindConnectionFailed
	// KindIO is a send or receive failure (including timeouts) on an established connection.
	KindIO
	// KindProtocol means the response bytes are not a valid, complete frame or JSON document.
	KindProtocol
	// KindNotFound means the response parsed but carries no usable secret value.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindConnectionFailed:
		return "connection failed"
	case KindIO:
		return "io error"
	case KindProtocol:
		return "protocol error"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is the failure outcome of every operation in this package.
type Error struct {
	Kind    Kind
	Op      string // Operation: "resolve", "connect", "send", "receive", "decode", "extract"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// Sentinel errors, one per Kind
var (
	ErrBadRequest       = &Error{Kind: KindBadRequest}
	ErrConnectionFailed = &Error{Kind: KindConnectionFailed}
	ErrIO               = &Error{Kind: KindIO}
	ErrProtocol         = &Error{Kind: KindProtocol}
	ErrNotFound         = &Error{Kind: KindNotFound}
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}
