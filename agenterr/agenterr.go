// Package agenterr defines the typed error kinds shared across the runtime:
// ValidationError, ModelError, ToolError, SessionError, and FlowError. Each
// is a small struct satisfying error and inspectable via errors.As, mirroring
// the teacher's toolerrors.ToolError: wrap an underlying cause rather than
// discard it, and keep the type serialization-friendly.
package agenterr

import (
	"errors"
	"fmt"
)

type (
	// ValidationError reports malformed input: a tool call whose arguments
	// fail schema validation, a malformed request, etc. Never retryable.
	ValidationError struct {
		Message string
		Cause   error
	}

	// ModelError reports a model-provider failure. Retryable reports whether
	// the failure is transient (timeout, 5xx, rate limit) as opposed to
	// permanent (4xx, invalid request).
	ModelError struct {
		Message   string
		Cause     error
		retryable bool
	}

	// ToolError reports a tool execution failure, surfaced to the model as a
	// FunctionResponse with Error set.
	ToolError struct {
		ToolName string
		Message  string
		Cause    error
	}

	// SessionError reports a session-store failure distinct from the
	// session package's own not-found/ended sentinels (which identify a
	// state, not a fault).
	SessionError struct {
		Message string
		Cause   error
	}

	// FlowError reports a failure in the request/response processor
	// pipeline (§4.4), e.g. a processor rejecting a malformed agent
	// configuration.
	FlowError struct {
		Processor string
		Message   string
		Cause     error
	}
)

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// NewValidationError constructs a ValidationError.
func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model: %s", e.Message)
}

func (e *ModelError) Unwrap() error { return e.Cause }

// Retryable reports whether the failure is transient and worth retrying with
// backoff (network error, timeout, 5xx, rate limit), as opposed to permanent
// (validation failure, 4xx).
func (e *ModelError) Retryable() bool { return e.retryable }

// NewModelError constructs a ModelError, marked retryable or not.
func NewModelError(message string, cause error, retryable bool) *ModelError {
	return &ModelError{Message: message, Cause: cause, retryable: retryable}
}

func (e *ToolError) Error() string {
	if e.ToolName == "" {
		return "tool: " + e.Message
	}
	return fmt.Sprintf("tool %q: %s", e.ToolName, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError constructs a ToolError for the named tool.
func NewToolError(toolName, message string, cause error) *ToolError {
	return &ToolError{ToolName: toolName, Message: message, Cause: cause}
}

func (e *SessionError) Error() string {
	return "session: " + e.Message
}

func (e *SessionError) Unwrap() error { return e.Cause }

// NewSessionError constructs a SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{Message: message, Cause: cause}
}

func (e *FlowError) Error() string {
	if e.Processor == "" {
		return "flow: " + e.Message
	}
	return fmt.Sprintf("flow[%s]: %s", e.Processor, e.Message)
}

func (e *FlowError) Unwrap() error { return e.Cause }

// NewFlowError constructs a FlowError attributed to the named processor.
func NewFlowError(processor, message string, cause error) *FlowError {
	return &FlowError{Processor: processor, Message: message, Cause: cause}
}

// IsRetryableModelError reports whether err is a ModelError marked
// retryable. Non-ModelError values are never retryable.
func IsRetryableModelError(err error) bool {
	var me *ModelError
	if errors.As(err, &me) {
		return me.Retryable()
	}
	return false
}
