package schema

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var structValidate = validator.New(validator.WithRequiredStructEnabled())

// ToolDefinition describes a tool an agent may invoke. Definitions are
// immutable once registered with the router; the name convention is
// "{domain}.{action}".
type ToolDefinition struct {
	Name          string        `validate:"required"`
	Description   string        `validate:"required"`
	Capability    Capability    `validate:"required"`
	Risk          Risk          `validate:"required"`
	ExecutionMode ExecutionMode `validate:"required"`
	Verification  Verification  `validate:"required"`

	// InputSchema is a JSON Schema document (draft 2020-12 or compatible)
	// describing the tool's call arguments. May be nil for tools with no
	// structured input.
	InputSchema []byte

	compiledSchema *jsonschema.Schema
}

// Validate checks the definition against the struct tags above, then the
// taxonomy's closed enumerations, then compiles InputSchema if present.
// Any failure is a FailClosedError naming the offending field.
func (t *ToolDefinition) Validate() error {
	if err := structValidate.Struct(t); err != nil {
		return FailClosed("tool." + firstInvalidField(err))
	}
	if !t.Capability.Valid() {
		return FailClosed("tool.capability")
	}
	if !t.Risk.Valid() {
		return FailClosed("tool.risk")
	}
	if !t.ExecutionMode.Valid() {
		return FailClosed("tool.execution_mode")
	}
	if !t.Verification.Valid() {
		return FailClosed("tool.verification")
	}
	if len(t.InputSchema) > 0 {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(t.Name+"#input", mustJSONValue(t.InputSchema)); err != nil {
			return FailClosed("tool.input_schema")
		}
		sch, err := compiler.Compile(t.Name + "#input")
		if err != nil {
			return FailClosed("tool.input_schema")
		}
		t.compiledSchema = sch
	}
	return nil
}

// ValidateArgs validates call-time arguments (already JSON-decoded into a
// generic value) against the tool's compiled input schema. Returns nil if
// the tool declared no schema.
func (t *ToolDefinition) ValidateArgs(_ context.Context, args any) error {
	if t.compiledSchema == nil {
		return nil
	}
	if err := t.compiledSchema.Validate(args); err != nil {
		return FailClosed("tool.args")
	}
	return nil
}

func firstInvalidField(err error) string {
	if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
		return ve[0].Field()
	}
	return "unknown"
}

func mustJSONValue(raw []byte) any {
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return map[string]any{}
	}
	return v
}

// Handler executes a tool given validated arguments. Implementations are
// supplied by domain adapters and referenced by the router only by name.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// ErrUnknownTool is returned by lookups against an unregistered tool name.
var ErrUnknownTool = fmt.Errorf("fail-closed: unknown tool")
