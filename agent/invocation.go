package agent

import (
	"context"
	"sync"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/session"
	"github.com/relaykit/agentcore/telemetry"
)

// InvocationContext carries the data of a single invocation of an agent: the
// session identity, the prior history the agent should see, the user
// message that started the invocation, and an endInvocation flag any
// plugin, tool, or callback can set to stop the reasoning loop early.
// Grounded on the teacher's adk.InvocationContext.
type InvocationContext struct {
	InvocationID string
	AppName      string
	UserID       string
	SessionID    string
	AgentName    string
	Branch       event.Branch

	// History is the event-derived Content history visible to this
	// invocation, already filtered by branch (see event.BuildHistory).
	History []event.Content
	// UserContent is the message that started this invocation.
	UserContent *event.Content
	// StateSnapshot is the current session state, read by instruction
	// templating and passed to tool.Context; tool dispatch mutates it
	// in place with each call's accumulated state delta.
	StateSnapshot map[string]any

	Store session.Store

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer

	mu   sync.Mutex
	done bool
}

// NewInvocationContext creates an InvocationContext for a single agent
// invocation. Callers populate History/UserContent/StateSnapshot/Store as
// needed; telemetry fields default to no-ops when left zero.
func NewInvocationContext(invocationID, agentName string) *InvocationContext {
	return &InvocationContext{
		InvocationID:  invocationID,
		AgentName:     agentName,
		StateSnapshot: map[string]any{},
		Logger:        telemetry.NewNoopLogger(),
		Metrics:       telemetry.NewNoopMetrics(),
		Tracer:        telemetry.NewNoopTracer(),
	}
}

// End stops the reasoning loop after the current step. Safe to call from any
// goroutine, including a tool's Execute.
func (ic *InvocationContext) End() {
	ic.mu.Lock()
	ic.done = true
	ic.mu.Unlock()
}

// Ended reports whether End has been called.
func (ic *InvocationContext) Ended() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.done
}

// Child derives an InvocationContext for a sub-agent invocation, extending
// the branch path and carrying over the session identity, history, and
// state snapshot. Used by composite agents and agent transfer.
func (ic *InvocationContext) Child(agentName string) *InvocationContext {
	return &InvocationContext{
		InvocationID:  ic.InvocationID,
		AppName:       ic.AppName,
		UserID:        ic.UserID,
		SessionID:     ic.SessionID,
		AgentName:     agentName,
		Branch:        ic.Branch.Child(agentName),
		History:       ic.History,
		StateSnapshot: ic.StateSnapshot,
		Store:         ic.Store,
		Logger:        ic.Logger,
		Metrics:       ic.Metrics,
		Tracer:        ic.Tracer,
	}
}

func (ic *InvocationContext) appendEvent(ctx context.Context, ev *event.Event) error {
	if ic.Store == nil {
		return nil
	}
	return ic.Store.AppendEvent(ctx, ic.AppName, ic.UserID, ic.SessionID, ev)
}

// ReadonlyContext exposes the subset of InvocationContext an instruction
// resolver may read, without exposing mutation methods like End.
type ReadonlyContext struct {
	InvocationID string
	AgentName    string
	Branch       event.Branch
	State        map[string]any
}

func (ic *InvocationContext) Readonly() ReadonlyContext {
	return ReadonlyContext{
		InvocationID: ic.InvocationID,
		AgentName:    ic.AgentName,
		Branch:       ic.Branch,
		State:        ic.StateSnapshot,
	}
}

// Plugin observes an agent's run. Callbacks run in registration order;
// an error from BeforeAgentRun aborts the run, while AfterAgentRun runs
// after AgentEnd has been emitted and its error does not. Either error is
// reported to every plugin's OnError, but OnError failures are only logged.
type Plugin interface {
	BeforeAgentRun(ctx context.Context, ic *InvocationContext) error
	AfterAgentRun(ctx context.Context, ic *InvocationContext, finalResponse *event.Content) error
	OnError(ctx context.Context, ic *InvocationContext, err error)
}
