package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ErrKind classifies domain errors so transports can map them without knowing every sentinel.
type ErrKind int

const (
	KindNotFound ErrKind = iota + 1
	KindConflict
	KindForbidden
	KindInvalid
)

// DomainError is a sentinel error carrying its ErrKind. Compare with errors.Cause(err) == ErrX.
type DomainError struct {
	Kind    ErrKind
	Message string
}

func (err *DomainError) Error() string { return err.Message }

func NewNotFoundError(msg string) error  { return &DomainError{Kind: KindNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &DomainError{Kind: KindConflict, Message: msg} }
func NewForbiddenError(msg string) error { return &DomainError{Kind: KindForbidden, Message: msg} }
func NewInvalidError(msg string) error   { return &DomainError{Kind: KindInvalid, Message: msg} }

// IsKind reports whether the root cause of err is a DomainError of the given kind.
func IsKind(err error, kind ErrKind) bool {
	derr, ok := errors.Cause(err).(*DomainError)
	return ok && derr.Kind == kind
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
