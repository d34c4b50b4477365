// Package errs defines the failure kinds shared by every pipeline stage.
//
// Stages return *Error values whose Kind is one of the sentinels below, so
// callers classify with errors.Is(err, errs.Network) and recover the captured
// tool output with errors.As.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	Network    = errors.New("network error")
	Parse      = errors.New("parse error")
	Extraction = errors.New("extraction error")
	NoInput    = errors.New("no input")
	Indexing   = errors.New("indexing error")
	Config     = errors.New("config error")
)

// Error wraps a failure with its kind and the unit of work it concerns.
type Error struct {
	Kind    error
	Op      string // stage or operation, e.g. "fetch manifest"
	Subject string // group, accession or path
	Err     error
	Output  []byte // captured diagnostic output of an external tool, if any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Subject != "" {
		fmt.Fprintf(&b, " %s", e.Subject)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New builds an *Error of the given kind.
func New(kind error, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// Newf builds an *Error whose cause is a formatted message.
func Newf(kind error, op, subject, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// Configf is shorthand for configuration failures detected before any stage runs.
func Configf(format string, args ...any) *Error {
	return &Error{Kind: Config, Err: fmt.Errorf(format, args...)}
}

// Output returns the captured tool output carried by err, if any.
func Output(err error) []byte {
	var e *Error
	if errors.As(err, &e) {
		return e.Output
	}
	return nil
}
