package service

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNoActiveGeneration   = errors.New("no generation in progress")
	ErrGenerationInProgress = errors.New("generation already in progress")
)

// ValidationError marks a request the caller can fix. Handlers map it to a
// 400 response; everything else is treated as a server fault.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a caller-correctable request error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err names a missing session or message.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrMessageNotFound)
}

// IsConflict reports whether err is a generation-state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNoActiveGeneration) || errors.Is(err, ErrGenerationInProgress)
}
