package store

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every Store method after Close.
var ErrClosed = errors.New("store: closed")

// ErrorCode categorizes storage errors.
type ErrorCode string

const (
	// CodeSchemaMismatch: the on-disk schema does not match the expected
	// structure and no migration resolves it. Fatal at open time.
	CodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// CodeConstraintViolation: a write broke a table constraint (e.g. a
	// second check-in for the same date). The transaction was rolled back.
	CodeConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"

	// CodeConsistencyViolation: a stored value cannot be decoded, such as
	// NULL in a NOT NULL date column. Signals an upstream defect.
	CodeConsistencyViolation ErrorCode = "CONSISTENCY_VIOLATION"

	// CodeTransactionAborted: an internal write failure rolled the whole
	// transaction back.
	CodeTransactionAborted ErrorCode = "TRANSACTION_ABORTED"
)

// Error is the structured error returned by the store.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed ("insert", "validate schema", ...).
	Op string

	// Table is the affected table, if any.
	Table string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Table != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Op, e.Table, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error should stop further use of the store.
func (e *Error) Fatal() bool {
	return e.Code == CodeSchemaMismatch || e.Code == CodeConsistencyViolation
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsSchemaMismatch returns true if err is a schema mismatch error.
func IsSchemaMismatch(err error) bool { return hasCode(err, CodeSchemaMismatch) }

// IsConstraintViolation returns true if err is a constraint violation.
func IsConstraintViolation(err error) bool { return hasCode(err, CodeConstraintViolation) }

// IsConsistencyViolation returns true if err is a consistency violation.
func IsConsistencyViolation(err error) bool { return hasCode(err, CodeConsistencyViolation) }

// IsTransactionAborted returns true if err is an aborted-write error.
func IsTransactionAborted(err error) bool { return hasCode(err, CodeTransactionAborted) }

// IsFatal returns true if err is a schema or consistency violation.
func IsFatal(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Fatal()
	}
	return false
}

func newConsistencyError(table, column, message string) *Error {
	return &Error{
		Code:    CodeConsistencyViolation,
		Op:      "decode " + column,
		Table:   table,
		Message: message,
	}
}

func newAbortError(op, table string, err error) *Error {
	return &Error{
		Code:  CodeTransactionAborted,
		Op:    op,
		Table: table,
		Err:   err,
	}
}
