package bridge

import (
	"errors"
	"fmt"
	"strings"

	"mailbridge/internal/automation"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConnection = errors.New("connection error")
	ErrValidation = errors.New("validation error")
	ErrOperation  = errors.New("operation failed")
)

// Error is the typed failure every bridge operation returns. Kind is one of the
// sentinels above and is matched with errors.Is.
type Error struct {
	Kind  error
	Op    string
	ID    string
	Field string
	Err   error
}

func (e *Error) Error() string {
	parts := []string{}
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Kind != nil {
		parts = append(parts, e.Kind.Error())
	}
	if e.ID != "" {
		parts = append(parts, "id "+e.ID)
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	msg := strings.Join(parts, ": ")
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the sentinel kind of err, or nil when err is not a bridge failure.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConnection, ErrOperation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func notFound(op, id string, err error) error {
	return &Error{Kind: ErrNotFound, Op: op, ID: id, Err: err}
}

func invalid(op, field, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Field: field, Err: fmt.Errorf(format, args...)}
}

// translate maps upstream failures onto the bridge taxonomy. Errors that are
// already typed pass through untouched.
func translate(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	switch {
	case errors.Is(err, automation.ErrNoSuchItem), errors.Is(err, automation.ErrNoSuchFolder):
		return notFound(op, id, err)
	case errors.Is(err, automation.ErrNotRunning),
		errors.Is(err, automation.ErrDisconnected),
		errors.Is(err, automation.ErrNotReady),
		errors.Is(err, automation.ErrUnsupported):
		return &Error{Kind: ErrConnection, Op: op, ID: id, Err: err}
	}
	return &Error{Kind: ErrOperation, Op: op, ID: id, Err: err}
}
