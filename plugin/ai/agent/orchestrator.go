package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/chatops/plugin/ai"
	"github.com/hrygo/chatops/plugin/ai/function"
)

// Memory is the conversation context a turn reads and, on success, extends.
// *memory.ConversationMemory implements it.
type Memory interface {
	// AppendTurn records the query and the answer together, or neither.
	AppendTurn(ctx context.Context, query, answer string) error
	Text() string
	Snapshot() []ai.Message
	Summary() string
}

// NotFoundPolicy decides what a turn does when the model asks for an unregistered function.
type NotFoundPolicy int

const (
	// NotFoundFail ends the turn with ErrFunctionNotFound.
	NotFoundFail NotFoundPolicy = iota
	// NotFoundDegrade returns the model's first reply text when it has any,
	// and fails like NotFoundFail otherwise.
	NotFoundDegrade
)

// Options configures an Orchestrator.
type Options struct {
	// SystemPrompt may contain one %s for the current time. Defaults to DefaultSystemPrompt.
	SystemPrompt string
	// ContextMode is ai.ContextModeSnapshot (default) or ai.ContextModeText.
	ContextMode string
	// NotFound selects the unknown-function behavior. Defaults to NotFoundFail.
	NotFound NotFoundPolicy
	// FunctionTimeout bounds a single function execution. Zero means the turn context only.
	FunctionTimeout time.Duration
	// Metrics records turns, function calls and compactions when set.
	Metrics *Metrics
	// Now stamps the system prompt. Defaults to time.Now.
	Now func() time.Time
}

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	Answer string `json:"answer"`
	// Function is the function the model requested, empty for a direct answer.
	Function  string         `json:"function,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	// FunctionResult is the text handed back to the model.
	FunctionResult string `json:"-"`
	// Degraded is set when the answer is the model's first reply because the
	// requested function was not registered.
	Degraded bool          `json:"degraded,omitempty"`
	Duration time.Duration `json:"-"`
}

// Orchestrator runs turns against a model and a function registry.
// It holds no per-conversation state and is safe for concurrent use across sessions.
type Orchestrator struct {
	llm      ai.LLMService
	registry *function.Registry
	opts     Options
}

// NewOrchestrator creates an Orchestrator. registry may be nil, in which case
// the model is offered no functions.
func NewOrchestrator(llm ai.LLMService, registry *function.Registry, opts Options) *Orchestrator {
	if opts.ContextMode == "" {
		opts.ContextMode = ai.ContextModeSnapshot
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		llm:      llm,
		registry: registry,
		opts:     opts,
	}
}

// Answer resolves one user query. The model is called once, or twice when it
// requests a function, and at most one function is executed.
//
// On success the query and the answer are appended to mem (which may be nil).
// On failure mem is left untouched and the error matches one of the package
// errors, ai.ErrContextLengthExceeded or ai.ErrModelTransport. A turn whose
// answer cannot be recorded fails with ErrMemoryUpdate.
func (o *Orchestrator) Answer(ctx context.Context, mem Memory, query string) (result *TurnResult, err error) {
	start := time.Now()
	defer func() {
		o.finish(start, query, result, err)
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	messages := o.buildMessages(mem, query)

	first, err := o.llm.ChatWithTools(ctx, messages, o.registry.Descriptors())
	if err != nil {
		return nil, fmt.Errorf("first model call: %w", err)
	}

	turn := &TurnResult{}
	if first.HasToolCalls() {
		answer, err := o.dispatch(ctx, messages, first, turn)
		if err != nil {
			return nil, err
		}
		turn.Answer = answer
	} else {
		if strings.TrimSpace(first.Content) == "" {
			return nil, &ai.ModelError{Kind: ai.ErrModelTransport, Cause: ai.ErrEmptyResponse}
		}
		turn.Answer = first.Content
	}

	if err := o.remember(ctx, mem, query, turn.Answer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMemoryUpdate, err)
	}
	turn.Duration = time.Since(start)
	return turn, nil
}

// dispatch handles a function request: decode, resolve, execute, then ask the
// model for the final answer without offering functions again.
func (o *Orchestrator) dispatch(ctx context.Context, messages []ai.Message, first *ai.ChatResponse, turn *TurnResult) (string, error) {
	call := first.ToolCalls[0]
	if len(first.ToolCalls) > 1 {
		slog.Warn("model requested several functions, only the first is executed",
			"requested", len(first.ToolCalls),
			"function", call.Function.Name)
	}

	name := call.Function.Name
	turn.Function = name

	args, err := decodeArguments(call.Function.Arguments)
	if err != nil {
		return "", fmt.Errorf("%w for %s: %w", ErrMalformedFunctionArguments, name, err)
	}
	turn.Arguments = args

	fn, ok := o.registry.Lookup(name)
	if !ok {
		if o.opts.NotFound == NotFoundDegrade && strings.TrimSpace(first.Content) != "" {
			slog.Warn("function not found, returning the model's first reply",
				"function", name)
			turn.Degraded = true
			return first.Content, nil
		}
		return "", fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}

	output, err := o.execute(ctx, fn, args)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExternalCallFailure, name, err)
	}
	turn.FunctionResult = output

	if call.ID == "" {
		call.ID = "call_" + name
	}
	followUp := make([]ai.Message, 0, len(messages)+2)
	followUp = append(followUp, messages...)
	followUp = append(followUp,
		ai.Message{Role: ai.RoleAssistant, Content: first.Content, ToolCalls: []ai.ToolCall{call}},
		ai.ToolResultMessage(call, output),
	)

	answer, err := o.llm.Chat(ctx, followUp)
	if err != nil {
		return "", fmt.Errorf("second model call: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", &ai.ModelError{Kind: ai.ErrModelTransport, Cause: ai.ErrEmptyResponse}
	}
	return answer, nil
}

func (o *Orchestrator) execute(ctx context.Context, fn function.Function, args map[string]any) (output string, err error) {
	if o.opts.FunctionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.FunctionTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("function panicked: %v", r)
		}
		if o.opts.Metrics != nil {
			o.opts.Metrics.RecordFunctionCall(fn.Spec.Name, time.Since(start), err == nil)
		}
		slog.Debug("function executed",
			"function", fn.Spec.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
	}()

	return function.Call(ctx, fn, args)
}

func (o *Orchestrator) buildMessages(mem Memory, query string) []ai.Message {
	var history []ai.Message
	if mem != nil {
		switch o.opts.ContextMode {
		case ai.ContextModeText:
			if text := mem.Text(); text != "" {
				history = append(history, ai.UserMessage(textContextPrefix+text))
			}
		default:
			if summary := mem.Summary(); summary != "" {
				history = append(history, ai.SystemPrompt(summaryContextPrefix+summary))
			}
			history = append(history, mem.Snapshot()...)
		}
	}
	return ai.FormatMessages(BuildSystemPrompt(o.opts.SystemPrompt, o.opts.Now()), query, history)
}

// remember records a completed turn as a query/answer pair.
func (o *Orchestrator) remember(ctx context.Context, mem Memory, query, answer string) error {
	if mem == nil {
		return nil
	}

	type compactor interface{ Compactions() int }
	before := 0
	c, counts := mem.(compactor)
	if counts {
		before = c.Compactions()
	}

	if err := mem.AppendTurn(ctx, query, answer); err != nil {
		return err
	}

	if counts && o.opts.Metrics != nil {
		o.opts.Metrics.RecordCompactions(c.Compactions() - before)
	}
	return nil
}

func (o *Orchestrator) finish(start time.Time, query string, result *TurnResult, err error) {
	duration := time.Since(start)
	kind := Classify(err)

	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordTurn(duration, result, kind)
	}

	if err != nil {
		slog.Warn("turn failed",
			"kind", kind,
			"query", truncate(query, maxLoggedQuery),
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return
	}
	slog.Info("turn completed",
		"function", result.Function,
		"degraded", result.Degraded,
		"duration_ms", duration.Milliseconds())
}

func decodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

const maxLoggedQuery = 200

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
