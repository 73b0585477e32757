package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// Security limits and configuration
const (
	// MaxHandlerNameLength is the maximum length for handler references
	MaxHandlerNameLength = 255

	// MaxParamsSize is the maximum encoded size in bytes for job params (1MB)
	MaxParamsSize = 1 << 20

	// MaxErrorMessageLength is the maximum length for stored failure reasons
	MaxErrorMessageLength = 4096

	// MaxQueueNameLength is the maximum length for queue names
	MaxQueueNameLength = 255

	// MaxConcurrency is the maximum number of processors one worker runs
	MaxConcurrency = 1000
)

// validHandlerName matches alphanumeric names with _ - . : / separators,
// so package-qualified references like "billing/invoice.Send" are accepted.
var validHandlerName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.:/]*$`)

var validQueueName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateHandlerName validates a handler reference
func ValidateHandlerName(name string) error {
	if name == "" {
		return core.ErrEmptyHandler
	}
	if len(name) > MaxHandlerNameLength {
		return core.ErrHandlerNameTooLong
	}
	if !validHandlerName.MatchString(name) {
		return core.ErrInvalidHandlerName
	}
	return nil
}

// ValidateQueueName validates a queue name
func ValidateQueueName(name string) error {
	if name == "" {
		return core.ErrInvalidQueueName
	}
	if len(name) > MaxQueueNameLength {
		return core.ErrQueueNameTooLong
	}
	if !validQueueName.MatchString(name) {
		return core.ErrInvalidQueueName
	}
	return nil
}

// ValidateParams enforces the params size limit
func ValidateParams(params core.Params) error {
	if params.Size() > MaxParamsSize {
		return core.ErrParamsTooLarge
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampLimit floors a batch limit at zero
func ClampLimit(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// ClampConcurrency clamps worker concurrency to [1, MaxConcurrency]
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
