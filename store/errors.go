package store

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConflictError is a transient failure caused by concurrent transactions.
// The caller is expected to abort and retry.
type ConflictError struct {
	msg   string
	cause error
}

func (self *ConflictError) Error() string {
	if self.cause != nil {
		return fmt.Sprintf("conflict: %s: %v", self.msg, self.cause)
	}
	return "conflict: " + self.msg
}

func (self *ConflictError) Unwrap() error { return self.cause }

// NotFoundError reports a row that was expected to exist.
type NotFoundError struct {
	msg string
}

func (self *NotFoundError) Error() string { return "not found: " + self.msg }

// ValidationError reports malformed input: a bad CSV row or configuration.
type ValidationError struct {
	msg string
}

func (self *ValidationError) Error() string { return "invalid: " + self.msg }

// StoreError is any other failure reported by a store.
type StoreError struct {
	msg   string
	cause error
}

func (self *StoreError) Error() string {
	if self.cause != nil {
		return fmt.Sprintf("store: %s: %v", self.msg, self.cause)
	}
	return "store: " + self.msg
}

func (self *StoreError) Unwrap() error { return self.cause }

func NewConflictError(format string, args ...interface{}) error {
	return errors.WithStack(&ConflictError{msg: fmt.Sprintf(format, args...)})
}

func WrapConflictError(cause error, format string, args ...interface{}) error {
	return errors.WithStack(&ConflictError{msg: fmt.Sprintf(format, args...), cause: cause})
}

func NewNotFoundError(format string, args ...interface{}) error {
	return errors.WithStack(&NotFoundError{msg: fmt.Sprintf(format, args...)})
}

func NewValidationError(format string, args ...interface{}) error {
	return errors.WithStack(&ValidationError{msg: fmt.Sprintf(format, args...)})
}

func WrapStoreError(cause error, format string, args ...interface{}) error {
	return errors.WithStack(&StoreError{msg: fmt.Sprintf(format, args...), cause: cause})
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
