package db

import (
	"errors"
	"fmt"
)

// Status is an engine status code. The numbering follows libpmemkv so native
// results can be converted without a lookup table.
type Status int

const (
	StatusOK Status = iota
	StatusUnknownError
	StatusNotFound
	StatusNotSupported
	StatusInvalidArgument
	StatusConfigParsingError
	StatusConfigTypeError
	StatusStoppedByCallback
	StatusOutOfMemory
	StatusWrongEngineName
	StatusTransactionScopeError
	StatusDefragError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnknownError:
		return "unknown error"
	case StatusNotFound:
		return "not found"
	case StatusNotSupported:
		return "not supported"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusConfigParsingError:
		return "config parsing error"
	case StatusConfigTypeError:
		return "config type error"
	case StatusStoppedByCallback:
		return "stopped by callback"
	case StatusOutOfMemory:
		return "out of memory"
	case StatusWrongEngineName:
		return "wrong engine name"
	case StatusTransactionScopeError:
		return "transaction scope error"
	case StatusDefragError:
		return "defrag error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StatusError is the error type returned across the engine boundary.
type StatusError struct {
	Status Status
	Msg    string
	Err    error
}

func (e *StatusError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Status, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Status, e.Err)
	default:
		return e.Status.String()
	}
}

func (e *StatusError) Unwrap() error { return e.Err }

// Errorf returns a StatusError with a formatted message.
func Errorf(s Status, format string, args ...any) error {
	return &StatusError{Status: s, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a status to err. It returns nil if err is nil.
func Wrap(s Status, err error) error {
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) {
		return err
	}
	return &StatusError{Status: s, Err: err}
}

// StatusOf extracts the status carried by err. Errors that did not come from
// an engine map to StatusUnknownError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusUnknownError
}

// IsNotFound reports whether err carries StatusNotFound.
func IsNotFound(err error) bool {
	return StatusOf(err) == StatusNotFound
}
