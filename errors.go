package jobs

import "github.com/jdziat/simple-batch-jobs/pkg/core"

// Error variables
var (
	ErrQueueEmpty         = core.ErrQueueEmpty
	ErrInvalidHandler     = core.ErrInvalidHandler
	ErrInvalidParams      = core.ErrInvalidParams
	ErrQueueOperation     = core.ErrQueueOperation
	ErrRequeueFailed      = core.ErrRequeueFailed
	ErrJobNotFound        = core.ErrJobNotFound
	ErrEmptyHandler       = core.ErrEmptyHandler
	ErrInvalidHandlerName = core.ErrInvalidHandlerName
	ErrHandlerNameTooLong = core.ErrHandlerNameTooLong
	ErrInvalidQueueName   = core.ErrInvalidQueueName
	ErrQueueNameTooLong   = core.ErrQueueNameTooLong
	ErrParamsTooLarge     = core.ErrParamsTooLarge
)

// WithCode attaches a numeric code to err; failure outcomes report it.
func WithCode(code int, err error) error {
	return core.WithCode(code, err)
}

// CodeOf returns the code attached to err, or 0.
func CodeOf(err error) int {
	return core.CodeOf(err)
}
