package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrContextLengthExceeded indicates the assembled prompt exceeded the model's context window.
	// Callers should compact or shorten the input instead of retrying.
	ErrContextLengthExceeded = errors.New("context length exceeded")

	// ErrModelTransport indicates a generic connectivity, auth or API failure.
	ErrModelTransport = errors.New("model transport error")

	// ErrEmptyResponse indicates the model returned no choices.
	ErrEmptyResponse = errors.New("empty response")
)

const contextLengthCode = "context_length_exceeded"

// ModelError is a classified failure of a model call.
// errors.Is matches both Kind and anything in the Cause chain.
type ModelError struct {
	Kind  error
	Cause error
}

func (e *ModelError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *ModelError) Unwrap() error {
	return e.Cause
}

func (e *ModelError) Is(target error) bool {
	return target == e.Kind
}

// IsContextLengthExceeded reports whether err is a context window overflow.
func IsContextLengthExceeded(err error) bool {
	return errors.Is(err, ErrContextLengthExceeded)
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if isContextLengthError(err) {
		return &ModelError{Kind: ErrContextLengthExceeded, Cause: err}
	}
	return &ModelError{Kind: ErrModelTransport, Cause: err}
}

func isContextLengthError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == contextLengthCode {
			return true
		}
		if mentionsContextLength(apiErr.Message) {
			return true
		}
	}
	return mentionsContextLength(err.Error())
}

func mentionsContextLength(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "maximum context length") || strings.Contains(msg, contextLengthCode)
}
