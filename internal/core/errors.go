package core

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the transport layer can pick a status code
// without parsing messages.
type Kind int

const (
	KindInternal Kind = iota
	KindParse
	KindValidation
	KindNotFound
	KindEngine
	KindIO
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindEngine:
		return "engine"
	case KindIO:
		return "io"
	case KindBusy:
		return "busy"
	default:
		return "internal"
	}
}

// Error is the typed error returned by every Service operation.
// Msg is the descriptive text shown to callers; Err, when set, carries the
// technical cause.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind Kind, code string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

func validationf(code, format string, args ...any) *Error {
	return newError(KindValidation, code, nil, format, args...)
}

func notFoundf(code, format string, args ...any) *Error {
	return newError(KindNotFound, code, nil, format, args...)
}
