// Package agent implements the base reasoning loop every agent in this
// runtime runs: emit AgentStart, resolve a model request through the flow
// pipeline, call the model, dispatch any tool calls, and repeat until a
// final response, a transfer, or the iteration cap. Grounded on the
// teacher's adk.Agent/InvocationContext (other_examples'
// c6a89c6d_google-adk-go__agent.go.go) and baseFlow.Run (the llm_agent.go
// file that grounds flow and dispatch), adapted from its iter.Seq2 event
// iterator onto a channel of Emission values and from genai.Content onto
// event.Content.
package agent

import (
	"context"

	"github.com/relaykit/agentcore/event"
)

// Agent is the common interface every agent (LLM-backed or composite)
// implements.
type Agent interface {
	Name() string
	Description() string
	// Run executes one invocation of this agent and streams its events on
	// the returned channel. The channel is closed when the invocation ends.
	// A non-nil Emission.Err means the invocation ended abnormally; no
	// further emissions follow it.
	Run(ctx context.Context, ic *InvocationContext) <-chan Emission
}

// Emission is one item from an Agent's event stream.
type Emission struct {
	Event *event.Event
	Err   error
}

// RunToCompletion drains a's event stream for one invocation and returns the
// final response's text. It builds a fresh InvocationContext with no prior
// history, suitable for an agent invoked as a tool (see tool.AgentTool) or
// as a single subroutine call rather than a multi-turn session.
func RunToCompletion(ctx context.Context, a Agent, invocationID, input string, sessionState map[string]any) (string, error) {
	ic := NewInvocationContext(invocationID, a.Name())
	ic.UserContent = &event.Content{Role: event.RoleUser, Parts: []event.Part{event.Text{Text: input}}}
	ic.StateSnapshot = sessionState
	if ic.StateSnapshot == nil {
		ic.StateSnapshot = map[string]any{}
	}

	var final *event.Content
	for em := range a.Run(ctx, ic) {
		if em.Err != nil {
			return "", em.Err
		}
		if em.Event != nil && em.Event.Kind == event.KindAgentEnd && em.Event.Content != nil {
			final = em.Event.Content
		}
	}
	if final == nil {
		return "", nil
	}
	return final.Text(), nil
}

// Invokable adapts an Agent to tool.Invokable (defined structurally in the
// tool package; Invokable here satisfies it without tool importing agent).
type Invokable struct {
	agent Agent
}

// AsInvokable wraps a so it can be passed to tool.NewAgentTool.
func AsInvokable(a Agent) Invokable { return Invokable{agent: a} }

func (i Invokable) Name() string        { return i.agent.Name() }
func (i Invokable) Description() string { return i.agent.Description() }

func (i Invokable) RunToCompletion(ctx context.Context, input string, sessionState map[string]any) (string, error) {
	return RunToCompletion(ctx, i.agent, event.NewID(), input, sessionState)
}
