// Package function holds the name-keyed table of functions the model may call.
// A Registry is built once by the composition root and never mutated afterwards.
package function

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/hrygo/chatops/plugin/ai"
)

var (
	// ErrMissingArgument indicates a required parameter was not supplied.
	ErrMissingArgument = errors.New("missing required argument")
	// ErrArgumentType indicates a supplied argument has the wrong JSON type.
	ErrArgumentType = errors.New("invalid argument type")
)

// Parameter describes one named argument of a function.
type Parameter struct {
	Name        string
	Type        jsonschema.DataType
	Description string
	Required    bool
	Enum        []string
}

// Spec describes a callable to the model. Parameters keep declaration order.
type Spec struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Handler executes a function with decoded JSON arguments.
// The result is converted to text with ToText before it is handed back to the model.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Function pairs a Spec with its implementation.
type Function struct {
	Spec    Spec
	Handler Handler
}

// Registry keeps the mapping between function names and implementations.
type Registry struct {
	funcs map[string]Function
	order []string
}

// NewRegistry builds an immutable registry from groups of functions.
// Duplicate or empty names and nil handlers are rejected.
func NewRegistry(groups ...[]Function) (*Registry, error) {
	r := &Registry{funcs: make(map[string]Function)}
	for _, group := range groups {
		for _, fn := range group {
			name := fn.Spec.Name
			if name == "" {
				return nil, fmt.Errorf("function name is empty")
			}
			if fn.Handler == nil {
				return nil, fmt.Errorf("function %s has no handler", name)
			}
			if _, exists := r.funcs[name]; exists {
				return nil, fmt.Errorf("function %s already registered", name)
			}
			r.funcs[name] = fn
			r.order = append(r.order, name)
		}
	}
	return r, nil
}

// Lookup fetches a function by name.
func (r *Registry) Lookup(name string) (Function, bool) {
	if r == nil {
		return Function{}, false
	}
	fn, ok := r.funcs[name]
	return fn, ok
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Specs returns the specs in registration order.
func (r *Registry) Specs() []Spec {
	if r == nil {
		return nil
	}
	specs := make([]Spec, len(r.order))
	for i, name := range r.order {
		specs[i] = r.funcs[name].Spec
	}
	return specs
}

// Descriptors converts the registered specs to the model's tool format.
func (r *Registry) Descriptors() []ai.ToolDescriptor {
	specs := r.Specs()
	descriptors := make([]ai.ToolDescriptor, len(specs))
	for i, spec := range specs {
		paramsJSON, err := json.Marshal(spec.Schema())
		if err != nil {
			slog.Warn("failed to marshal function parameters, using empty schema",
				"function", spec.Name,
				"error", err)
			paramsJSON = []byte(`{"type":"object","properties":{}}`)
		}
		descriptors[i] = ai.ToolDescriptor{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  string(paramsJSON),
		}
	}
	return descriptors
}

// Schema returns the JSON Schema of the spec's parameters.
func (s Spec) Schema() jsonschema.Definition {
	def := jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: make(map[string]jsonschema.Definition, len(s.Parameters)),
		Required:   []string{},
	}
	for _, p := range s.Parameters {
		typ := p.Type
		if typ == "" {
			typ = jsonschema.String
		}
		prop := jsonschema.Definition{
			Type:        typ,
			Description: p.Description,
			Enum:        p.Enum,
		}
		if typ == jsonschema.Array {
			prop.Items = &jsonschema.Definition{Type: jsonschema.String}
		}
		def.Properties[p.Name] = prop
		if p.Required {
			def.Required = append(def.Required, p.Name)
		}
	}
	return def
}

// Validate checks required arguments and primitive types.
// Unknown arguments are left for the handler to ignore.
func (s Spec) Validate(args map[string]any) error {
	for _, p := range s.Parameters {
		value, ok := args[p.Name]
		if !ok || value == nil {
			if p.Required {
				return fmt.Errorf("%w: %s", ErrMissingArgument, p.Name)
			}
			continue
		}
		if !matchesType(value, p.Type) {
			return fmt.Errorf("%w: %s expected %s but got %T", ErrArgumentType, p.Name, p.Type, value)
		}
	}
	return nil
}

func matchesType(value any, typ jsonschema.DataType) bool {
	switch typ {
	case "", jsonschema.String:
		_, ok := value.(string)
		return ok
	case jsonschema.Number:
		_, ok := value.(float64)
		return ok
	case jsonschema.Integer:
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case jsonschema.Boolean:
		_, ok := value.(bool)
		return ok
	case jsonschema.Array:
		_, ok := value.([]any)
		return ok
	case jsonschema.Object:
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}

// Call validates args and runs fn, converting the result to text.
func Call(ctx context.Context, fn Function, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := fn.Spec.Validate(args); err != nil {
		return "", err
	}
	result, err := fn.Handler(ctx, args)
	if err != nil {
		return "", err
	}
	return ToText(result)
}

// ToText renders a function result for the model. Strings pass through,
// everything else is JSON encoded, so a nil result reads as null.
func ToText(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case json.RawMessage:
		return string(val), nil
	case fmt.Stringer:
		return val.String(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode function result: %w", err)
	}
	return string(data), nil
}

// StringArg returns a string argument or "" when absent.
func StringArg(args map[string]any, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}
