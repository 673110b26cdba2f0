package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/hrygo/chatops/plugin/ai/agent"
	"github.com/hrygo/chatops/plugin/ai/session"
)

// ErrorCode represents a specific error type for chat operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeSessionNotFound indicates the session has no live or persisted state.
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// ErrCodeMalformedArguments indicates the model produced unparseable function arguments.
	ErrCodeMalformedArguments ErrorCode = "MALFORMED_FUNCTION_ARGUMENTS"
	// ErrCodeFunctionNotFound indicates the model asked for an unregistered function.
	ErrCodeFunctionNotFound ErrorCode = "FUNCTION_NOT_FOUND"
	// ErrCodeExternalCallFailed indicates a DevOps backend call failed.
	ErrCodeExternalCallFailed ErrorCode = "EXTERNAL_CALL_FAILED"
	// ErrCodeContextLengthExceeded indicates the prompt did not fit the model's window.
	ErrCodeContextLengthExceeded ErrorCode = "CONTEXT_LENGTH_EXCEEDED"
	// ErrCodeLLMUnavailable indicates the LLM service is not available.
	ErrCodeLLMUnavailable ErrorCode = "LLM_UNAVAILABLE"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeMemoryUpdateFailed indicates the turn could not be recorded in conversation memory.
	ErrCodeMemoryUpdateFailed ErrorCode = "MEMORY_UPDATE_FAILED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal indicates an unclassified failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// AIError represents a structured error for chat operations.
type AIError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AIError) WithContext(key string, value any) *AIError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// HTTPStatus returns the status code the error is served with.
func (e *AIError) HTTPStatus() int {
	return StatusOf(e.Code)
}

// StatusOf maps an error code to an HTTP status.
func StatusOf(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodeSessionNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeContextLengthExceeded:
		return http.StatusRequestEntityTooLarge
	case ErrCodeMalformedArguments, ErrCodeFunctionNotFound, ErrCodeExternalCallFailed, ErrCodeLLMUnavailable:
		return http.StatusBadGateway
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeContextCanceled:
		// nginx's "client closed request".
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// Convenience constructors for common error types.

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AIError {
	return &AIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *AIError {
	return &AIError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// SessionNotFound creates a session not found error.
func SessionNotFound(sessionID string) *AIError {
	return &AIError{Code: ErrCodeSessionNotFound, Message: "session not found: " + sessionID}
}

// Timeout creates a timeout error.
func Timeout(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeTimeout, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *AIError {
	return &AIError{Code: code, Message: msg, Cause: cause}
}

// FromTurnError converts an orchestrator or session error to an AIError.
// An error that already is an AIError is returned unchanged.
func FromTurnError(err error) *AIError {
	if err == nil {
		return nil
	}
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr
	}

	switch {
	case stderrors.Is(err, session.ErrSessionNotFound):
		return Wrap(err, ErrCodeSessionNotFound, "session not found")
	case stderrors.Is(err, session.ErrInvalidSessionID):
		return Wrap(err, ErrCodeInvalidArgument, "invalid session id")
	case stderrors.Is(err, context.DeadlineExceeded):
		return Timeout("turn timed out", err)
	}

	switch agent.Classify(err) {
	case agent.KindInvalidInput:
		return Wrap(err, ErrCodeInvalidArgument, "query is empty")
	case agent.KindMalformedArguments:
		return Wrap(err, ErrCodeMalformedArguments, "model produced malformed function arguments")
	case agent.KindFunctionNotFound:
		return Wrap(err, ErrCodeFunctionNotFound, "model requested an unknown function")
	case agent.KindExternalCallFailure:
		return Wrap(err, ErrCodeExternalCallFailed, "function call failed")
	case agent.KindContextLengthExceeded:
		return Wrap(err, ErrCodeContextLengthExceeded, "conversation exceeds the model context window")
	case agent.KindModelTransport:
		return Wrap(err, ErrCodeLLMUnavailable, "LLM service unavailable")
	case agent.KindCanceled:
		return Wrap(err, ErrCodeContextCanceled, "operation canceled")
	case agent.KindMemoryUpdate:
		return Wrap(err, ErrCodeMemoryUpdateFailed, "failed to record the turn in conversation memory")
	default:
		return Wrap(err, ErrCodeInternal, "internal error")
	}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an AIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code
	}
	return defaultCode
}
