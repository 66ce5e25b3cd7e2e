package story

import "fmt"

type ErrorKind string

const (
	KindGeneration        ErrorKind = "generation"
	KindParse             ErrorKind = "parse"
	KindMediaUnavailable  ErrorKind = "media_unavailable"
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindDeviceUnavailable ErrorKind = "device_unavailable"
)

// Error is a failure scoped to a single operation. None of them are fatal.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

var (
	ErrGeneration        = &Error{Kind: KindGeneration}
	ErrParse             = &Error{Kind: KindParse}
	ErrMediaUnavailable  = &Error{Kind: KindMediaUnavailable}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrDeviceUnavailable = &Error{Kind: KindDeviceUnavailable}
)

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op == "" && e.Err == nil:
		return fmt.Sprintf("story: %s", e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("story: %s: %s", e.Op, e.Kind)
	default:
		return fmt.Sprintf("story: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on kind, so errors.Is(err, ErrGeneration) works for any
// generation failure. Parse failures are handled like generation failures.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == KindParse && t.Kind == KindGeneration
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func GenerationError(op string, err error) error {
	return newError(KindGeneration, op, err)
}

func ParseError(op string, err error) error {
	return newError(KindParse, op, err)
}

func MediaUnavailable(op string, err error) error {
	return newError(KindMediaUnavailable, op, err)
}

func PermissionDenied(op string, err error) error {
	return newError(KindPermissionDenied, op, err)
}

func DeviceUnavailable(op string, err error) error {
	return newError(KindDeviceUnavailable, op, err)
}
