package kv

import (
	"errors"
	"fmt"

	"github.com/eigerco/kvbind/pkg/buffer"
	"github.com/eigerco/kvbind/pkg/db"
)

// Kind classifies every error returned by this package, except errors
// returned by user callbacks, which are passed through unchanged.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindNotSupported
	KindOutOfMemory
	KindWrongEngineName
	KindConfigParsing
	KindConfigType
	KindTransactionScope
	KindStoppedByCallback
	KindDefrag
	// KindStopped is returned by every operation issued after Stop.
	KindStopped
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindNotFound:
		return "not found"
	case KindNotSupported:
		return "not supported"
	case KindOutOfMemory:
		return "out of memory"
	case KindWrongEngineName:
		return "wrong engine name"
	case KindConfigParsing:
		return "config parsing error"
	case KindConfigType:
		return "config type error"
	case KindTransactionScope:
		return "transaction scope error"
	case KindStoppedByCallback:
		return "stopped by callback"
	case KindDefrag:
		return "defrag error"
	case KindStopped:
		return "database stopped"
	default:
		return "unknown error"
	}
}

// Error is the single error type of the binding. Key holds the encoded key
// of the failed Put or Remove, when there was one.
type Error struct {
	Kind    Kind
	Message string
	Key     []byte
	Err     error
}

func (e *Error) Error() string {
	msg := "kv: " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Key != nil {
		msg += fmt.Sprintf(" (key %q)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel errors below by kind, so that
// errors.Is(err, ErrNotFound) holds for every not found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Key != nil || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnknown           = &Error{Kind: KindUnknown}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrNotSupported      = &Error{Kind: KindNotSupported}
	ErrOutOfMemory       = &Error{Kind: KindOutOfMemory}
	ErrWrongEngineName   = &Error{Kind: KindWrongEngineName}
	ErrConfigParsing     = &Error{Kind: KindConfigParsing}
	ErrConfigType        = &Error{Kind: KindConfigType}
	ErrTransactionScope  = &Error{Kind: KindTransactionScope}
	ErrStoppedByCallback = &Error{Kind: KindStoppedByCallback}
	ErrDefrag            = &Error{Kind: KindDefrag}
	ErrStopped           = &Error{Kind: KindStopped}
)

// KindOf returns the kind of err, or KindUnknown if err did not come from
// this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var statusKinds = map[db.Status]Kind{
	db.StatusUnknownError:          KindUnknown,
	db.StatusNotFound:              KindNotFound,
	db.StatusNotSupported:          KindNotSupported,
	db.StatusInvalidArgument:       KindInvalidArgument,
	db.StatusConfigParsingError:    KindConfigParsing,
	db.StatusConfigTypeError:       KindConfigType,
	db.StatusStoppedByCallback:     KindStoppedByCallback,
	db.StatusOutOfMemory:           KindOutOfMemory,
	db.StatusWrongEngineName:       KindWrongEngineName,
	db.StatusTransactionScopeError: KindTransactionScope,
	db.StatusDefragError:           KindDefrag,
}

// mapError converts an engine or buffer error into an *Error. key is
// attached when it is non-nil and copied, as it usually aliases a pooled
// buffer.
func mapError(err error, key []byte) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	out := &Error{Kind: KindUnknown, Err: err}
	if key != nil {
		out.Key = append([]byte{}, key...)
	}
	var se *db.StatusError
	switch {
	case errors.As(err, &se):
		if kind, ok := statusKinds[se.Status]; ok {
			out.Kind = kind
		}
		out.Message, out.Err = se.Msg, se.Err
	case errors.Is(err, buffer.ErrOutOfMemory):
		out.Kind = KindOutOfMemory
	case errors.Is(err, buffer.ErrPoolClosed):
		out.Kind = KindStopped
	}
	return out
}

func newError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// conversionError reports a converter failure.
func conversionError(what string, err error) error {
	return &Error{Kind: KindInvalidArgument, Message: "unable to convert " + what, Err: err}
}
