package event

import (
	"time"

	"github.com/google/uuid"
)

// FrameworkIDPrefix marks ids generated by the runtime rather than supplied
// by a model or caller (call ids, event ids). History-view construction
// blanks ids carrying this prefix, keeping the parts that held them, before
// the model sees them.
const FrameworkIDPrefix = "adk-"

// NewID returns a freshly generated, framework-prefixed id suitable for a
// FunctionCall or Event.
func NewID() string {
	return FrameworkIDPrefix + uuid.NewString()
}

// Kind tags the variant of an Event.
type Kind string

const (
	KindAgentStart    Kind = "agent_start"
	KindAgentEnd      Kind = "agent_end"
	KindModelRequest  Kind = "model_request"
	KindModelResponse Kind = "model_response"
	KindToolCall      Kind = "tool_call"
	KindToolResponse  Kind = "tool_response"
	KindIterationStart Kind = "iteration_start"
	KindIterationEnd  Kind = "iteration_end"
	KindError         Kind = "error"
)

// TokenUsage reports token consumption recorded on a ModelResponse event.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Actions carries side effects an event requests alongside its content.
// Merging two Actions (see MergeActions) is last-one-wins per field except
// where noted.
type Actions struct {
	// SkipSummarization suppresses a model's natural-language summary of a
	// tool result, e.g. when a tool result is already conversational.
	SkipSummarization bool
	// StateDelta is merged into session state when the event is appended.
	StateDelta map[string]any
	// TransferToAgent names the sub-agent (or peer) control should transfer
	// to. Empty means no transfer.
	TransferToAgent string
	// Escalate requests that a LoopAgent terminate its loop early.
	Escalate bool
}

// Event is a single, append-only entry in a session's event log. Events are
// never mutated after being appended.
type Event struct {
	// ID uniquely identifies this event within its session.
	ID string
	// InvocationID identifies the top-level Runner invocation this event
	// belongs to.
	InvocationID string
	// Author is "user" or the name of the agent that produced this event.
	Author string
	// Kind tags which variant this event represents.
	Kind Kind
	// Timestamp is when the event was produced.
	Timestamp time.Time
	// Branch scopes this event's visibility to the sub-agent lineage that
	// produced it.
	Branch Branch
	// Content is set on AgentStart (the input), ModelResponse, ToolCall,
	// ToolResponse, and AgentEnd (the final response) events; ModelRequest
	// and Error events carry none.
	Content *Content
	// Actions carries side effects requested alongside this event, if any.
	Actions *Actions
	// LongRunningToolIDs records call ids deferred for out-of-band
	// resolution, set on AgentEnd events.
	LongRunningToolIDs []string
	// Usage reports token consumption, set on ModelResponse events.
	Usage TokenUsage
	// Err is set on KindError events.
	Err error
}

// New constructs an Event with a freshly generated id, timestamped with the
// current time.
func New(invocationID, author string, kind Kind, branch Branch) *Event {
	return &Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Kind:         kind,
		Timestamp:    time.Now(),
		Branch:       branch,
	}
}

// HasStateDelta reports whether the event carries session-state mutations.
func (e *Event) HasStateDelta() bool {
	return e.Actions != nil && len(e.Actions.StateDelta) > 0
}

// IsLongRunning reports whether this event deferred one or more tool calls.
func (e *Event) IsLongRunning() bool {
	return len(e.LongRunningToolIDs) > 0
}

// MergeActions combines two Actions, preferring fields set on b. StateDelta
// is merged key-by-key (b wins on key collision); SkipSummarization,
// TransferToAgent, and Escalate are overwritten by b only when b sets a
// non-zero value.
func MergeActions(a, b *Actions) *Actions {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return b
	case b == nil:
		return a
	}
	merged := &Actions{
		SkipSummarization: a.SkipSummarization,
		TransferToAgent:   a.TransferToAgent,
		Escalate:          a.Escalate,
	}
	if b.SkipSummarization {
		merged.SkipSummarization = true
	}
	if b.TransferToAgent != "" {
		merged.TransferToAgent = b.TransferToAgent
	}
	if b.Escalate {
		merged.Escalate = true
	}
	if len(a.StateDelta) > 0 || len(b.StateDelta) > 0 {
		merged.StateDelta = make(map[string]any, len(a.StateDelta)+len(b.StateDelta))
		for k, v := range a.StateDelta {
			merged.StateDelta[k] = v
		}
		for k, v := range b.StateDelta {
			merged.StateDelta[k] = v
		}
	}
	return merged
}
