package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/event"
)

func contentWithCall(id, name string) event.Content {
	return event.Content{Role: event.RoleAssistant, Parts: []event.Part{
		event.FunctionCall{ID: id, Name: name, Args: map[string]any{}},
	}}
}

func contentWithResponse(id, name string) event.Content {
	return event.Content{Role: event.RoleTool, Parts: []event.Part{
		event.FunctionResponse{ID: id, Name: name, Content: "ok"},
	}}
}

func TestBuildHistory_FiltersByBranch(t *testing.T) {
	log := []*event.Event{
		{Branch: event.Root, Content: &event.Content{Role: event.RoleUser, Parts: []event.Part{event.Text{Text: "hi"}}}},
		{Branch: event.Branch("root.peer"), Content: &event.Content{Role: event.RoleAssistant, Parts: []event.Part{event.Text{Text: "peer chatter"}}}},
	}
	history := event.BuildHistory(log, event.Root)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Text())
}

func TestBuildHistory_RearrangesAsyncFunctionResponse(t *testing.T) {
	call := contentWithCall("adk-1", "search")
	unrelated := event.Content{Role: event.RoleAssistant, Parts: []event.Part{event.Text{Text: "meanwhile"}}}
	response := contentWithResponse("adk-1", "search")

	log := []*event.Event{
		{Branch: event.Root, Content: &call},
		{Branch: event.Root, Content: &unrelated},
		{Branch: event.Root, Content: &response},
	}
	history := event.BuildHistory(log, event.Root)
	require.Len(t, history, 3)
	assert.Equal(t, call.Role, history[0].Role)
	_, isResponse := history[1].Parts[0].(event.FunctionResponse)
	assert.True(t, isResponse, "response should move immediately after its call")
	assert.Equal(t, "meanwhile", history[2].Text())
}

func TestBuildHistory_StripsFrameworkCallIDs(t *testing.T) {
	call := contentWithCall("adk-1", "search")
	log := []*event.Event{{Branch: event.Root, Content: &call}}
	history := event.BuildHistory(log, event.Root)
	require.Len(t, history, 1)
	fc, ok := history[0].Parts[0].(event.FunctionCall)
	require.True(t, ok)
	assert.Empty(t, fc.ID)
}

func TestBuildHistory_UnmatchedCallStaysInPlace(t *testing.T) {
	call := contentWithCall("adk-1", "search")
	log := []*event.Event{{Branch: event.Root, Content: &call}}
	history := event.BuildHistory(log, event.Root)
	require.Len(t, history, 1)
}

func TestBranch_IsAncestorOf(t *testing.T) {
	assert.True(t, event.Root.IsAncestorOf(event.Branch("a")))
	assert.True(t, event.Branch("a").IsAncestorOf(event.Branch("a.b")))
	assert.False(t, event.Branch("a.b").IsAncestorOf(event.Branch("a")))
	assert.True(t, event.Branch("a.b").IsAncestorOf(event.Branch("a.b")))
	assert.False(t, event.Branch("a").IsAncestorOf(event.Branch("ab")))
}

func TestMergeActions_StateDeltaLastWins(t *testing.T) {
	a := &event.Actions{StateDelta: map[string]any{"x": 1, "y": 2}}
	b := &event.Actions{StateDelta: map[string]any{"x": 9}, Escalate: true}
	merged := event.MergeActions(a, b)
	require.NotNil(t, merged)
	assert.Equal(t, 9, merged.StateDelta["x"])
	assert.Equal(t, 2, merged.StateDelta["y"])
	assert.True(t, merged.Escalate)
}
