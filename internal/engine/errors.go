package engine

import (
	"errors"
	"fmt"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// ExternalServiceError wraps the failure of a step action, carrying the
// action name alongside the underlying error
type ExternalServiceError struct {
	Err    error
	Action api.ActionName
}

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrUnknownAction    = errors.New("unknown action")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidAction    = errors.New("invalid action registration")
	ErrJobTerminal      = errors.New("job already terminal")
	ErrStatusNotFinal   = errors.New("status is not terminal")
	ErrActionPanic      = errors.New("action panicked")
	ErrShutdownTimeout  = errors.New("shutdown timeout exceeded")
	ErrEngineStopped    = errors.New("engine stopped")
)

// Error implements error
func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
}

// Unwrap exposes the underlying action error
func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is one of the not-found error kinds
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrUnknownAction)
}
