package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/dispatch"
	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/telemetry"
	"github.com/relaykit/agentcore/tool"
)

type echoTool struct {
	name        string
	longRunning bool
	err         error
	setState    map[string]any
}

func (t echoTool) Name() string                    { return t.name }
func (t echoTool) Description() string              { return "echo" }
func (t echoTool) ParametersSchema() map[string]any { return nil }
func (t echoTool) IsLongRunning() bool              { return t.longRunning }
func (t echoTool) Execute(ctx context.Context, tc *tool.Context, args map[string]any) (tool.Result, error) {
	if t.err != nil {
		return tool.Result{}, t.err
	}
	for k, v := range t.setState {
		tc.SetState(k, v)
	}
	return tool.Result{Raw: args, Preview: "ok"}, nil
}

func TestDispatch_SingleToolRoundTrip(t *testing.T) {
	reg := dispatch.NewMapRegistry([]tool.Tool{echoTool{name: "search"}})
	content := &event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.FunctionCall{ID: "call-1", Name: "search", Args: map[string]any{"q": "x"}},
	}}

	res, err := dispatch.Dispatch(context.Background(), reg, content, "inv-1", map[string]any{}, telemetry.NewNoopLogger())
	require.NoError(t, err)
	require.NotNil(t, res.Response)
	require.Len(t, res.Response.Parts, 1)
	fr := res.Response.Parts[0].(event.FunctionResponse)
	assert.Equal(t, "call-1", fr.ID)
	assert.Equal(t, "ok", fr.Content)
}

func TestDispatch_PreservesCallOrder(t *testing.T) {
	reg := dispatch.NewMapRegistry([]tool.Tool{echoTool{name: "a"}, echoTool{name: "b"}, echoTool{name: "c"}})
	content := &event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.FunctionCall{ID: "1", Name: "a"},
		event.FunctionCall{ID: "2", Name: "b"},
		event.FunctionCall{ID: "3", Name: "c"},
	}}

	res, err := dispatch.Dispatch(context.Background(), reg, content, "inv-1", map[string]any{}, telemetry.NewNoopLogger())
	require.NoError(t, err)
	require.Len(t, res.Response.Parts, 3)
	for i, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, res.Response.Parts[i].(event.FunctionResponse).ID)
	}
}

func TestDispatch_UnknownToolProducesErrorResponse(t *testing.T) {
	reg := dispatch.NewMapRegistry(nil)
	content := &event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.FunctionCall{ID: "1", Name: "missing"},
	}}

	res, err := dispatch.Dispatch(context.Background(), reg, content, "inv-1", map[string]any{}, telemetry.NewNoopLogger())
	require.NoError(t, err)
	fr := res.Response.Parts[0].(event.FunctionResponse)
	assert.NotEmpty(t, fr.Error)
}

func TestDispatch_LongRunningToolIsDeferred(t *testing.T) {
	reg := dispatch.NewMapRegistry([]tool.Tool{echoTool{name: "slow", longRunning: true}})
	content := &event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.FunctionCall{ID: "1", Name: "slow"},
	}}

	res, err := dispatch.Dispatch(context.Background(), reg, content, "inv-1", map[string]any{}, telemetry.NewNoopLogger())
	require.NoError(t, err)
	assert.Nil(t, res.Response)
	assert.Equal(t, []string{"1"}, res.LongRunningCallIDs)
}

func TestDispatch_CredentialRequestToolIsDeferred(t *testing.T) {
	reg := dispatch.NewMapRegistry(nil)
	content := &event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.FunctionCall{ID: "1", Name: dispatch.CredentialRequestTool},
	}}

	res, err := dispatch.Dispatch(context.Background(), reg, content, "inv-1", map[string]any{}, telemetry.NewNoopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.PendingCredentialCallIDs)
}

func TestDispatch_TransferToAgentToolSetsActions(t *testing.T) {
	reg := dispatch.NewMapRegistry(nil)
	content := &event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.FunctionCall{ID: "1", Name: dispatch.TransferToAgentTool, Args: map[string]any{"agentName": "billing"}},
	}}

	res, err := dispatch.Dispatch(context.Background(), reg, content, "inv-1", map[string]any{}, telemetry.NewNoopLogger())
	require.NoError(t, err)
	require.NotNil(t, res.Actions)
	assert.Equal(t, "billing", res.Actions.TransferToAgent)
	require.Len(t, res.Response.Parts, 1)
	fr := res.Response.Parts[0].(event.FunctionResponse)
	assert.Equal(t, "1", fr.ID)
	assert.Empty(t, fr.Error)
}

func TestDispatch_MergesStateDeltaAcrossCalls(t *testing.T) {
	reg := dispatch.NewMapRegistry([]tool.Tool{
		echoTool{name: "a", setState: map[string]any{"x": 1}},
		echoTool{name: "b", setState: map[string]any{"y": 2}},
	})
	content := &event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.FunctionCall{ID: "1", Name: "a"},
		event.FunctionCall{ID: "2", Name: "b"},
	}}

	res, err := dispatch.Dispatch(context.Background(), reg, content, "inv-1", map[string]any{}, telemetry.NewNoopLogger())
	require.NoError(t, err)
	require.NotNil(t, res.Actions)
	assert.Equal(t, 1, res.Actions.StateDelta["x"])
	assert.Equal(t, 2, res.Actions.StateDelta["y"])
}

func TestDispatch_ToolExecutionErrorSurfacesAsErrorResponse(t *testing.T) {
	reg := dispatch.NewMapRegistry([]tool.Tool{echoTool{name: "boom", err: errors.New("kaboom")}})
	content := &event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.FunctionCall{ID: "1", Name: "boom"},
	}}

	res, err := dispatch.Dispatch(context.Background(), reg, content, "inv-1", map[string]any{}, telemetry.NewNoopLogger())
	require.NoError(t, err)
	fr := res.Response.Parts[0].(event.FunctionResponse)
	assert.Contains(t, fr.Error, "kaboom")
}
