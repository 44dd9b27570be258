// Package status implements the error taxonomy the rest of lsmkv uses to
// report failures from the embedded engine to callers, structured the
// same way as a typical storage-error type: an operation name, a stable
// code, and a wrapped cause.
package status

import (
	"errors"
	"fmt"
)

// Code is one of the error categories visible to callers.
type Code int

const (
	OK Code = iota
	NotFound
	Corruption
	NotSupported
	InvalidArgument
	IOError
	MergeInProgress
	Incomplete
	ShutdownInProgress
	TimedOut
	Aborted
	Busy
	Expired
	TryAgain
	MemoryLimit
	SchemaError
	Unknown
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case NotFound:
		return "NotFound"
	case Corruption:
		return "Corruption"
	case NotSupported:
		return "NotSupported"
	case InvalidArgument:
		return "InvalidArgument"
	case IOError:
		return "IOError"
	case MergeInProgress:
		return "MergeInProgress"
	case Incomplete:
		return "Incomplete"
	case ShutdownInProgress:
		return "ShutdownInProgress"
	case TimedOut:
		return "TimedOut"
	case Aborted:
		return "Aborted"
	case Busy:
		return "Busy"
	case Expired:
		return "Expired"
	case TryAgain:
		return "TryAgain"
	case MemoryLimit:
		return "MemoryLimit"
	case SchemaError:
		return "SchemaError"
	default:
		return "Unknown"
	}
}

// Error is the structured error every public lsmkv API returns. It carries
// the operation that failed, the taxonomy code, and an optional cause.
type Error struct {
	Op      string
	Code    Code
	Cause   error
	Context string
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Code, e.Context, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	var se *Error
	if errors.As(target, &se) {
		return se.Code == e.Code
	}
	return false
}

// New builds an *Error for op/code, optionally wrapping cause.
func New(op string, code Code, cause error) *Error {
	return &Error{Op: op, Code: code, Cause: cause}
}

// Newf builds an *Error with formatted context.
func Newf(op string, code Code, cause error, format string, args ...any) *Error {
	return &Error{Op: op, Code: code, Cause: cause, Context: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from err, or Unknown if err is not (or does not
// wrap) a *Error.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return Unknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// FromRuntime translates a runtime/OS condition into a Code, per the
// translation table the environment shim is required to apply at every
// library/runtime boundary callback.
func FromRuntime(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, errNotFound):
		return NotFound
	case errors.Is(err, errNotSupported):
		return NotSupported
	case errors.Is(err, errInvalidArgument):
		return InvalidArgument
	case errors.Is(err, errTimedOut):
		return TimedOut
	case errors.Is(err, errBusy):
		return Busy
	case errors.Is(err, errTryAgain):
		return TryAgain
	case errors.Is(err, errNoSpace):
		return IOError
	case errors.Is(err, errOutOfMemory):
		return MemoryLimit
	default:
		return Aborted
	}
}

// Sentinel runtime conditions the environment shim's file/directory/
// scheduling adapters raise so FromRuntime can classify them without the
// caller needing to know about os/syscall error wrapping.
var (
	errNotFound        = errors.New("status: no such file or directory")
	errNotSupported    = errors.New("status: not supported")
	errInvalidArgument = errors.New("status: invalid argument")
	errTimedOut        = errors.New("status: timed out")
	errBusy            = errors.New("status: device busy")
	errTryAgain        = errors.New("status: try again")
	errNoSpace         = errors.New("status: no space left on device")
	errOutOfMemory     = errors.New("status: out of memory")
)

// ErrNotFound etc. are exposed so adapters can wrap os errors with them via
// fmt.Errorf("...: %w", status.ErrNotFound).
var (
	ErrNotFound        = errNotFound
	ErrNotSupported    = errNotSupported
	ErrInvalidArgument = errInvalidArgument
	ErrTimedOut        = errTimedOut
	ErrBusy            = errBusy
	ErrTryAgain        = errTryAgain
	ErrNoSpace         = errNoSpace
	ErrOutOfMemory     = errOutOfMemory
)
