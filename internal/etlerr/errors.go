// Package etlerr defines the error taxonomy shared by every stage of a run.
//
// Each failure carries a Kind so callers can branch with errors.Is without
// string matching:
//
//	if errors.Is(err, etlerr.SchemaMismatch) { ... }
//
// The message of an *Error is what the job store records and what the run
// result surfaces, so it is built once here and never rewritten upstream.
package etlerr

import (
	"errors"
	"fmt"
)

// Kind classifies a run failure. A Kind is itself an error so it can be used
// as an errors.Is target.
type Kind string

const (
	Config             Kind = "config error"
	UnsupportedFormat  Kind = "unsupported format"
	SourceNotFound     Kind = "source not found"
	SourceRead         Kind = "source read error"
	SchemaMismatch     Kind = "schema mismatch"
	QualityGateFailure Kind = "quality gate failure"
	TransformExecution Kind = "transform execution error"
	SinkWrite          Kind = "sink write error"
	ObjectStoreUpload  Kind = "object store upload error"
)

func (k Kind) Error() string { return string(k) }

// Error is a classified failure. Op names the component that failed
// (for example "reader", "quality", "sink.relational").
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New builds a classified error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. It returns nil when err is nil and returns err
// unchanged when it is already classified, so the first classification wins.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrapf is Wrap with an additional message.
func Wrapf(kind Kind, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first classified error in err's chain, or
// the empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
