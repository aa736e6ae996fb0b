package flow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/flow"
	"github.com/relaykit/agentcore/model"
)

type stubSpec struct {
	model     string
	instr     string
	global    string
	tools     []model.ToolDefinition
	generate  model.GenerationConfig
	transfers []string
}

func (s stubSpec) ModelName() string                 { return s.model }
func (s stubSpec) Instruction() string                { return s.instr }
func (s stubSpec) GlobalInstruction() string          { return s.global }
func (s stubSpec) Tools() []model.ToolDefinition      { return s.tools }
func (s stubSpec) Generation() model.GenerationConfig { return s.generate }
func (s stubSpec) TransferTargets() []string          { return s.transfers }

func TestSingleFlow_PrepareSetsModelAndInstructions(t *testing.T) {
	spec := stubSpec{model: "claude-x", instr: "be helpful", global: "always be safe"}
	history := []event.Content{event.NewTextContent(event.RoleUser, "hi")}

	req, err := flow.SingleFlow().Prepare(context.Background(), spec, history)
	require.NoError(t, err)
	assert.Equal(t, "claude-x", req.Model)
	assert.Contains(t, req.SystemInstruction, "be helpful")
	assert.Contains(t, req.SystemInstruction, "always be safe")
	assert.Equal(t, history, req.Contents)
}

func TestAutoFlow_IncludesTransferProcessor(t *testing.T) {
	p := flow.AutoFlow()
	assert.Len(t, p.Request, len(flow.SingleFlow().Request)+1)
}

func TestAgentTransferRequestProcessor_AddsVirtualToolForTargets(t *testing.T) {
	spec := stubSpec{model: "claude-x", transfers: []string{"billing", "support"}}
	req, err := flow.AutoFlow().Prepare(context.Background(), spec, nil)
	require.NoError(t, err)

	var found bool
	for _, tl := range req.Tools {
		if tl.Name == "transfer_to_agent" {
			found = true
		}
	}
	assert.True(t, found, "expected a transfer_to_agent tool definition")
}

func TestAgentTransferRequestProcessor_OmitsToolWithoutTargets(t *testing.T) {
	spec := stubSpec{model: "claude-x"}
	req, err := flow.AutoFlow().Prepare(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Empty(t, req.Tools)
}

func TestAssignMissingFunctionIDProcessor_FillsBlankIDs(t *testing.T) {
	resp := &model.Response{
		Content: &event.Content{
			Role: event.RoleAssistant,
			Parts: []event.Part{
				event.FunctionCall{Name: "search"},
				event.FunctionCall{ID: "already-set", Name: "lookup"},
			},
		},
	}
	err := flow.AssignMissingFunctionIDProcessor(context.Background(), stubSpec{}, &model.Request{}, resp)
	require.NoError(t, err)

	fc0 := resp.Content.Parts[0].(event.FunctionCall)
	fc1 := resp.Content.Parts[1].(event.FunctionCall)
	assert.NotEmpty(t, fc0.ID)
	assert.Equal(t, "already-set", fc1.ID)
}
