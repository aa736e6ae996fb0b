package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/agent"
	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/model"
	"github.com/relaykit/agentcore/tool"
)

// scriptedClient returns one queued response per GenerateContent call, in
// order, looping on the last entry once exhausted.
type scriptedClient struct {
	responses []*model.Response
	calls     int
	lastReq   *model.Request
}

func (c *scriptedClient) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	i := c.calls
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	c.calls++
	c.lastReq = req
	return c.responses[i], nil
}

func (c *scriptedClient) GenerateStreaming(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return nil, nil
}

func (c *scriptedClient) CountTokens(ctx context.Context, contents []event.Content) (int, error) {
	return 0, nil
}

func (c *scriptedClient) Capabilities() model.Capabilities { return model.Capabilities{Tools: true} }

type echoTool struct{}

func (echoTool) Name() string                    { return "echo" }
func (echoTool) Description() string              { return "echoes its input" }
func (echoTool) ParametersSchema() map[string]any { return nil }
func (echoTool) IsLongRunning() bool              { return false }
func (echoTool) Execute(ctx context.Context, tc *tool.Context, args map[string]any) (tool.Result, error) {
	return tool.Result{Raw: args, Preview: "ok"}, nil
}

func textResponse(text string) *model.Response {
	c := event.NewTextContent(event.RoleAssistant, text)
	return &model.Response{Content: &c, FinishReason: model.FinishStop}
}

func callResponse(callID, toolName string, args map[string]any) *model.Response {
	c := event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.FunctionCall{ID: callID, Name: toolName, Args: args},
	}}
	return &model.Response{Content: &c, FinishReason: model.FinishToolCalls}
}

// textAndCallResponse carries both a text part and a FunctionCall, so a
// scripted response still renders non-empty text once MaxIterations stops
// the loop mid-tool-call.
func textAndCallResponse(text, callID, toolName string, args map[string]any) *model.Response {
	c := event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.Text{Text: text},
		event.FunctionCall{ID: callID, Name: toolName, Args: args},
	}}
	return &model.Response{Content: &c, FinishReason: model.FinishToolCalls}
}

type longRunningTool struct{}

func (longRunningTool) Name() string                    { return "slow_job" }
func (longRunningTool) Description() string              { return "starts a slow job" }
func (longRunningTool) ParametersSchema() map[string]any { return nil }
func (longRunningTool) IsLongRunning() bool              { return true }
func (longRunningTool) Execute(ctx context.Context, tc *tool.Context, args map[string]any) (tool.Result, error) {
	panic("long-running tools are never executed inline")
}

func TestLlmAgent_SingleToolRoundTrip(t *testing.T) {
	client := &scriptedClient{responses: []*model.Response{
		callResponse("call-1", "echo", map[string]any{"x": 1}),
		textResponse("done"),
	}}
	a := agent.New(agent.Config{
		Name:  "assistant",
		Model: client,
		Tools: []tool.Tool{echoTool{}},
	})

	reply, err := agent.RunToCompletion(context.Background(), a, "inv-1", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", reply)
	assert.Equal(t, 2, client.calls)
}

func TestLlmAgent_StopsAtMaxIterations(t *testing.T) {
	client := &scriptedClient{responses: []*model.Response{
		callResponse("call-1", "echo", map[string]any{}),
	}}
	a := agent.New(agent.Config{
		Name:          "assistant",
		Model:         client,
		Tools:         []tool.Tool{echoTool{}},
		MaxIterations: 3,
	})

	reply, err := agent.RunToCompletion(context.Background(), a, "inv-2", "loop forever", nil)
	require.NoError(t, err)
	assert.Equal(t, "", reply)
	assert.Equal(t, 3, client.calls)
}

func TestLlmAgent_InstructionTemplatingLeavesUnknownKeysVerbatim(t *testing.T) {
	client := &scriptedClient{responses: []*model.Response{textResponse("hi")}}
	a := agent.New(agent.Config{
		Name:        "assistant",
		Model:       client,
		Instruction: "Greet {{user_name}} and unknown {{missing}}",
	})

	_, err := agent.RunToCompletion(context.Background(), a, "inv-3", "hi", map[string]any{"user_name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Greet Ada and unknown {{missing}}", client.lastReq.SystemInstruction)
}

func TestLlmAgent_NoToolCallsEndsImmediately(t *testing.T) {
	client := &scriptedClient{responses: []*model.Response{textResponse("just text")}}
	a := agent.New(agent.Config{Name: "assistant", Model: client})

	reply, err := agent.RunToCompletion(context.Background(), a, "inv-4", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "just text", reply)
	assert.Equal(t, 1, client.calls)
}

func TestLlmAgent_MaxIterationsCapCarriesLastResponseToAgentEnd(t *testing.T) {
	client := &scriptedClient{responses: []*model.Response{
		textAndCallResponse("still working on it", "call-1", "echo", map[string]any{}),
	}}
	a := agent.New(agent.Config{
		Name:          "assistant",
		Model:         client,
		Tools:         []tool.Tool{echoTool{}},
		MaxIterations: 2,
	})

	reply, err := agent.RunToCompletion(context.Background(), a, "inv-5", "loop forever", nil)
	require.NoError(t, err)
	assert.Equal(t, "still working on it", reply)
	assert.Equal(t, 2, client.calls)
}

func TestLlmAgent_LongRunningCallIDPropagatesToAgentEnd(t *testing.T) {
	client := &scriptedClient{responses: []*model.Response{
		callResponse("call-1", "slow_job", map[string]any{}),
	}}
	a := agent.New(agent.Config{
		Name:  "assistant",
		Model: client,
		Tools: []tool.Tool{longRunningTool{}},
	})

	ic := agent.NewInvocationContext("inv-6", "assistant")
	c := event.NewTextContent(event.RoleUser, "start the job")
	ic.UserContent = &c
	ic.StateSnapshot = map[string]any{}

	var endEv *event.Event
	for em := range a.Run(context.Background(), ic) {
		require.NoError(t, em.Err)
		if em.Event != nil && em.Event.Kind == event.KindAgentEnd {
			endEv = em.Event
		}
	}
	require.NotNil(t, endEv)
	assert.Equal(t, []string{"call-1"}, endEv.LongRunningToolIDs)
}
