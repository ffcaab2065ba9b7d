package ticket

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an engine failure the way the transport boundary
// needs to see it. It intentionally mirrors a small, closed set of RPC
// status categories rather than exposing raw store/backend errors.
type ErrorKind int

const (
	_ ErrorKind = iota
	InvalidArgument
	NotFound
	AlreadyExists
	ResourceExhausted
	Unavailable
	Internal
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case ResourceExhausted:
		return "ResourceExhausted"
	case Unavailable:
		return "Unavailable"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the error type every engine operation returns on failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func invalidArgument(msg string) error          { return newError(InvalidArgument, msg, nil) }
func notFound(msg string) error                 { return newError(NotFound, msg, nil) }
func alreadyExists(msg string) error            { return newError(AlreadyExists, msg, nil) }
func resourceExhausted(msg string) error        { return newError(ResourceExhausted, msg, nil) }
func unavailable(msg string) error              { return newError(Unavailable, msg, nil) }
func internal(msg string, cause error) error    { return newError(Internal, msg, cause) }

// KindOf extracts the ErrorKind from err, defaulting to Internal when err is
// not a *Error (e.g. a bare Go error leaked from an adapter).
func KindOf(err error) ErrorKind {
	if err == nil {
		return 0
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return Internal
}
