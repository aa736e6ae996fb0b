// Package composite implements the Sequential, Parallel, and Loop agent
// compositions and the agent-transfer edge rules used by AutoFlow. Every
// composite is itself an agent.Agent and wraps its children's event streams
// with its own AgentStart/AgentEnd pair. Grounded on the teacher's
// workflowagent package (pkg/agent/workflowagent/{sequential,parallel,loop}.go).
package composite

import (
	"github.com/relaykit/agentcore/event"
)

// ResultMode controls how a composite combines its children's final
// responses into its own final response.
type ResultMode string

const (
	// ResultConcat concatenates every successful child's response Parts, in
	// child order, into a single Content.
	ResultConcat ResultMode = "concat"
	// ResultLast uses only the last (successful) child's response.
	ResultLast ResultMode = "last"
)

func combine(mode ResultMode, role event.Role, responses []event.Content) *event.Content {
	if len(responses) == 0 {
		return nil
	}
	if mode == ResultLast {
		last := responses[len(responses)-1]
		return &last
	}
	var parts []event.Part
	for _, r := range responses {
		parts = append(parts, r.Parts...)
	}
	return &event.Content{Role: role, Parts: parts}
}

func agentStart(invocationID, name string, branch event.Branch, content *event.Content) *event.Event {
	ev := event.New(invocationID, name, event.KindAgentStart, branch)
	ev.Content = content
	return ev
}

func agentEnd(invocationID, name string, branch event.Branch, content *event.Content) *event.Event {
	ev := event.New(invocationID, name, event.KindAgentEnd, branch)
	ev.Content = content
	return ev
}
