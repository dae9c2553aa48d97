// Package apperr classifies failures from the store and parsing paths into a
// small closed set of API-facing kinds.
//
// A Kind is attached where the failure happens (a store call, a timestamp
// parse) and travels with the error as data. KindOf recovers it from any
// point in the wrapping chain.
package apperr

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Kind is the classification of a failure.
type Kind int

const (
	// InternalServerError is the catch-all and the zero value.
	InternalServerError Kind = iota
	BadRequest
	InvalidDateFormat
	NotFound
	DatabaseError
)

// CodeSuccess is the envelope code reported for successful results.
const CodeSuccess = 0

var kindInfo = map[Kind]struct {
	name    string
	code    int
	status  int
	message string
}{
	InternalServerError: {"InternalServerError", 50001, http.StatusInternalServerError, "Internal server error"},
	BadRequest:          {"BadRequest", 40001, http.StatusBadRequest, "Bad request"},
	InvalidDateFormat:   {"InvalidDateFormat", 40002, http.StatusBadRequest, "Invalid date format"},
	NotFound:            {"NotFound", 40401, http.StatusNotFound, "Resource not found"},
	DatabaseError:       {"DatabaseError", 50002, http.StatusInternalServerError, "Database error"},
}

// Kinds returns every kind in the closed set.
func Kinds() []Kind {
	return []Kind{InternalServerError, BadRequest, InvalidDateFormat, NotFound, DatabaseError}
}

func (k Kind) valid() Kind {
	if _, ok := kindInfo[k]; !ok {
		return InternalServerError
	}
	return k
}

func (k Kind) String() string { return kindInfo[k.valid()].name }

// Code is the numeric identifier reported in the response envelope.
func (k Kind) Code() int { return kindInfo[k.valid()].code }

// Status is the HTTP status equivalent of the kind.
func (k Kind) Status() int { return kindInfo[k.valid()].status }

// Message is the default human readable message.
func (k Kind) Message() string { return kindInfo[k.valid()].message }

// ClientError reports whether the kind is a 4xx class failure.
func (k Kind) ClientError() bool {
	s := k.Status()
	return s >= 400 && s < 500
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	// Op names the operation that was attempted, e.g. "list bars by symbol".
	Op string
	// Msg overrides the kind's default message when set.
	Msg string
	Err error
}

func (e *Error) Error() string {
	msg := e.Message()
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns Msg, or the kind's default message.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.Message()
}

// New returns a classified error for op wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf returns a classified error with a formatted message and no cause.
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Database tags a store failure. A nil err stays nil.
func Database(op string, err error) error {
	if err == nil {
		return nil
	}
	return New(DatabaseError, op, err)
}

// WithMessage keeps the classification of err and replaces its message.
func WithMessage(err error, msg string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Op: e.Op, Msg: msg, Err: e.Err}
	}
	return &Error{Kind: KindOf(err), Msg: msg, Err: err}
}

// KindOf classifies err by walking its cause chain. Tagged errors win; causes
// that escaped tagging are recognised by type so that wrapping with
// fmt.Errorf never changes the answer.
func KindOf(err error) Kind {
	if err == nil {
		return InternalServerError
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.valid()
	}
	var perr *time.ParseError
	if errors.As(err, &perr) {
		return InvalidDateFormat
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return DatabaseError
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) || errors.Is(err, driver.ErrBadConn) {
		return DatabaseError
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound
	}
	return InternalServerError
}

// Is reports whether err classifies as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
