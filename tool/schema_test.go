package tool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/tool"
)

type stubTool struct {
	name   string
	schema map[string]any
}

func (s stubTool) Name() string                    { return s.name }
func (s stubTool) Description() string             { return "stub" }
func (s stubTool) ParametersSchema() map[string]any { return s.schema }
func (s stubTool) IsLongRunning() bool              { return false }
func (s stubTool) Execute(context.Context, *tool.Context, map[string]any) (tool.Result, error) {
	return tool.Result{}, nil
}

func TestValidateArgs_NoSchemaAlwaysValid(t *testing.T) {
	st := stubTool{name: "noop"}
	assert.NoError(t, tool.ValidateArgs(st, map[string]any{"anything": true}))
}

func TestValidateArgs_RequiredField(t *testing.T) {
	st := stubTool{
		name: "search",
		schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []any{"query"},
		},
	}
	require.Error(t, tool.ValidateArgs(st, map[string]any{}))
	assert.NoError(t, tool.ValidateArgs(st, map[string]any{"query": "hi"}))
}

func TestValidateArgs_TypeMismatch(t *testing.T) {
	st := stubTool{
		name: "count",
		schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"n": map[string]any{"type": "integer"}},
		},
	}
	assert.Error(t, tool.ValidateArgs(st, map[string]any{"n": "not-a-number"}))
}
