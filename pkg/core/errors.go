package core

import (
	"errors"
	"fmt"
)

// Queue and handler errors
var (
	ErrQueueEmpty     = errors.New("jobs: queue is empty")
	ErrInvalidHandler = errors.New("jobs: invalid task handler")
	ErrInvalidParams  = errors.New("jobs: invalid handler params")
	ErrQueueOperation = errors.New("jobs: queue operation failed")
	ErrRequeueFailed  = errors.New("jobs: failed to push job to failed queue")
	ErrJobNotFound    = errors.New("jobs: job not found")
)

// Validation errors
var (
	ErrEmptyHandler       = errors.New("jobs: handler reference must not be empty")
	ErrInvalidHandlerName = errors.New("jobs: invalid handler name (must be alphanumeric, start with letter)")
	ErrHandlerNameTooLong = errors.New("jobs: handler name too long")
	ErrInvalidQueueName   = errors.New("jobs: invalid queue name")
	ErrQueueNameTooLong   = errors.New("jobs: queue name too long")
	ErrParamsTooLarge     = errors.New("jobs: job params exceed size limit")
)

// Coder is implemented by errors that carry a numeric code.
type Coder interface {
	Code() int
}

// CodedError attaches a numeric code to an error.
type CodedError struct {
	Err  error
	code int
}

func (e *CodedError) Error() string {
	return e.Err.Error()
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// Code returns the error code.
func (e *CodedError) Code() int {
	return e.code
}

// WithCode wraps err with a numeric code reported in failure outcomes.
func WithCode(code int, err error) error {
	return &CodedError{Err: err, code: code}
}

// CodeOf returns the code of the first error in err's chain implementing
// Coder, or 0.
func CodeOf(err error) int {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return 0
}

// HandlerError indicates a failure raised while running a job's handler.
type HandlerError struct {
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("jobs: handler %q: %v", e.Handler, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError is returned when a handler panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
