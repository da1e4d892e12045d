package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Error is a coded error raised while decoding, binding or constructing a plan.
type Error struct {
	Code     string // Error code, see codes.go
	Message  string // Primary error message
	Detail   string // Optional detail, usually the offending wire message
	Hint     string // Optional hint message
	Node     string // Wire node kind the error originated from
	Field    string // Wire field name if applicable
	Column   string // Column name if applicable
	DataType string // Data type name if applicable
	Cause    error  // Underlying error for wrapped construction failures
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.Node != "" {
		b.WriteString(e.Node)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	fmt.Fprintf(&b, " (code %s)", e.Code)
	if e.Detail != "" {
		b.WriteString(" DETAIL: ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and message
func New(code string, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message
func Newf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error that wraps cause.
func Wrap(code string, cause error, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithDetail adds detail to the error
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithDetailf adds formatted detail to the error
func (e *Error) WithDetailf(format string, args ...interface{}) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithHint adds a hint to the error
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithHintf adds a formatted hint to the error
func (e *Error) WithHintf(format string, args ...interface{}) *Error {
	e.Hint = fmt.Sprintf(format, args...)
	return e
}

// WithNode sets the wire node kind
func (e *Error) WithNode(node string) *Error {
	e.Node = node
	return e
}

// WithField sets the wire field name
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithColumn sets the column name
func (e *Error) WithColumn(column string) *Error {
	e.Column = column
	return e
}

// WithDataType sets the data type name
func (e *Error) WithDataType(dataType string) *Error {
	e.DataType = dataType
	return e
}

// IsError checks if err is, or wraps, an Error with a specific code
func IsError(err error, code string) bool {
	var qErr *Error
	if !stderrors.As(err, &qErr) {
		return false
	}
	return qErr.Code == code
}

// GetError attempts to extract an Error from any error
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	var qErr *Error
	if stderrors.As(err, &qErr) {
		return qErr
	}
	// Wrap generic errors as internal errors
	return Wrap(InternalError, err, "internal error")
}

// CodeOf returns the code of err, or InternalError for uncoded errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return GetError(err).Code
}
