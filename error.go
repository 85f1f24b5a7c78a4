package fieldz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors reported as the cause of InternalServerError failures.
var (
	ErrIncomparable = errors.New("values are not comparable")
	ErrUnsupported  = errors.New("unsupported value kind")
	ErrNoConnector  = errors.New("no connector available")
	ErrNoObject     = errors.New("no object bound to context")
)

// Class classifies an engine failure. The classification decides whether a
// failure aborts the enclosing operation or is attributable to user input.
type Class uint8

const (
	// ClassInternal is fatal: wrong value kind for an operator, unreachable
	// schema state, connector failure, cancellation.
	ClassInternal Class = iota
	// ClassValidation is recoverable: a value failed a semantic check.
	ClassValidation
	// ClassPermission is produced only by Pipeline.Authorize.
	ClassPermission
)

func (k Class) String() string {
	switch k {
	case ClassInternal:
		return "internal server error"
	case ClassValidation:
		return "validation error"
	case ClassPermission:
		return "permission error"
	default:
		return fmt.Sprintf("class(%d)", uint8(k))
	}
}

// Error provides rich context about a failed evaluation.
//
// Path locates the offending value inside the originating record. Trace is
// the chain of pipelines and items that led to the failure, outermost first,
// and is only meant for logs.
type Error struct {
	Timestamp time.Time
	Err       error
	Reason    string
	Path      KeyPath
	Trace     []Name
	Class     Class
	Timeout   bool
	Canceled  bool
}

// Error implements the error interface with a message suitable for logs.
// Use Public for anything shown to an end user.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Class.String())
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(e.Path.String())
	}
	if len(e.Trace) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Trace, " -> "))
		b.WriteString(")")
	}
	switch {
	case e.Timeout:
		b.WriteString(": timed out")
	case e.Canceled:
		b.WriteString(": canceled")
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Public returns the message that may cross the engine boundary.
// Internal failures never leak detail.
func (e *Error) Public() string {
	switch e.Class {
	case ClassValidation:
		return e.Reason
	case ClassPermission:
		return "permission denied"
	default:
		return "internal server error"
	}
}

// IsFatal reports whether e aborts the enclosing operation.
func (e *Error) IsFatal() bool {
	return e.Class == ClassInternal
}

// InternalServerError creates a fatal error located at path.
func InternalServerError(path KeyPath, format string, args ...any) *Error {
	return &Error{
		Class:     ClassInternal,
		Path:      path.clone(),
		Reason:    fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	}
}

// WrapInternal turns any error into a fatal *Error located at path.
// An *Error passed in is returned unchanged.
func WrapInternal(path KeyPath, err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{
		Class:     ClassInternal,
		Path:      path.clone(),
		Err:       err,
		Timestamp: time.Now(),
		Timeout:   errors.Is(err, context.DeadlineExceeded),
		Canceled:  errors.Is(err, context.Canceled),
	}
}

// ValidationError creates a recoverable error carrying a human readable reason.
func ValidationError(path KeyPath, reason string) *Error {
	return &Error{
		Class:     ClassValidation,
		Path:      path.clone(),
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// PermissionError creates a deny result. It carries no reason on purpose.
func PermissionError(path KeyPath) *Error {
	return &Error{
		Class:     ClassPermission,
		Path:      path.clone(),
		Timestamp: time.Now(),
	}
}

// Classify returns the class of err. Errors that are not *Error are fatal.
func Classify(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ClassInternal
}

// IsFatal reports whether err must abort the enclosing pipeline.
// A nil error is not fatal.
func IsFatal(err error) bool {
	return err != nil && Classify(err) == ClassInternal
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return err != nil && Classify(err) == ClassValidation
}

// IsPermission reports whether err is a permission failure.
func IsPermission(err error) bool {
	return err != nil && Classify(err) == ClassPermission
}

// traced returns a copy of err with name prepended to its trace, wrapping
// foreign errors as fatal. The error it was given is never modified, so
// items may return shared *Error values.
func traced(name Name, path KeyPath, err error) *Error {
	return WrapInternal(path, err).withTrace(name)
}

// withTrace returns a copy of e with name prepended to Trace.
func (e *Error) withTrace(name Name) *Error {
	cp := *e
	cp.Trace = make([]Name, 0, len(e.Trace)+1)
	cp.Trace = append(cp.Trace, name)
	cp.Trace = append(cp.Trace, e.Trace...)
	cp.Path = e.Path.clone()
	return &cp
}
