// Package agent drives a chat turn: the model may answer directly or ask for
// exactly one registered function whose result is fed back for a final answer.
package agent

import (
	"errors"

	"github.com/hrygo/chatops/plugin/ai"
)

// Turn failures. Model endpoint failures surface as ai.ErrContextLengthExceeded
// or ai.ErrModelTransport.
var (
	// ErrMalformedFunctionArguments indicates the model's argument payload is not a JSON object.
	ErrMalformedFunctionArguments = errors.New("malformed function arguments")

	// ErrFunctionNotFound indicates the model requested a function that is not registered.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrExternalCallFailure indicates the invoked function failed.
	// The orchestrator never retries it.
	ErrExternalCallFailure = errors.New("external call failed")

	// ErrEmptyQuery indicates the caller submitted a blank query.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrMemoryUpdate indicates the answer was produced but could not be recorded
	// in conversation memory. The memory is left as it was before the turn.
	ErrMemoryUpdate = errors.New("conversation memory update failed")
)

// ErrorKind names the failure class of a turn for logs and metrics.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindMalformedArguments    ErrorKind = "malformed_function_arguments"
	KindFunctionNotFound      ErrorKind = "function_not_found"
	KindExternalCallFailure   ErrorKind = "external_call_failure"
	KindContextLengthExceeded ErrorKind = "context_length_exceeded"
	KindModelTransport        ErrorKind = "model_transport"
	KindCanceled              ErrorKind = "canceled"
	KindMemoryUpdate          ErrorKind = "memory_update"
	KindInvalidInput          ErrorKind = "invalid_input"
	KindUnknown               ErrorKind = "unknown"
)

// Classify maps a turn error to its kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrEmptyQuery):
		return KindInvalidInput
	case errors.Is(err, ErrMalformedFunctionArguments):
		return KindMalformedArguments
	case errors.Is(err, ErrFunctionNotFound):
		return KindFunctionNotFound
	case errors.Is(err, ErrExternalCallFailure):
		return KindExternalCallFailure
	case isCanceled(err):
		return KindCanceled
	case errors.Is(err, ErrMemoryUpdate):
		return KindMemoryUpdate
	case errors.Is(err, ai.ErrContextLengthExceeded):
		return KindContextLengthExceeded
	case errors.Is(err, ai.ErrModelTransport):
		return KindModelTransport
	default:
		return KindUnknown
	}
}
