// Package tool defines the Tool contract: name, description, JSON-schema
// parameters, long-running flag, and an execute function receiving a
// Context that carries the invocation context, writable session state, and
// the originating call id.
package tool

import (
	"context"

	"github.com/relaykit/agentcore/telemetry"
)

type (
	// Tool is the contract every callable capability implements. Names must
	// be unique within one agent's tool set.
	Tool interface {
		// Name is the unique, model-visible identifier for this tool.
		Name() string
		// Description is shown to the model to help it decide when to call
		// this tool.
		Description() string
		// ParametersSchema is a JSON-schema-shaped object describing the
		// tool's arguments.
		ParametersSchema() map[string]any
		// IsLongRunning reports whether this tool defers its result rather
		// than answering within the current dispatch round.
		IsLongRunning() bool
		// Execute invokes the tool. A returned error is surfaced to the
		// model as a FunctionResponse with Error populated; it is not a
		// dispatch-level fault.
		Execute(ctx context.Context, tc *Context, args map[string]any) (Result, error)
	}

	// Context is passed to every tool invocation. StateDelta accumulates
	// session-state mutations the tool requests; the dispatcher merges it
	// into the AgentEnd/ToolResponse event's Actions after the call
	// returns.
	Context struct {
		// CallID is the originating FunctionCall's id.
		CallID string
		// InvocationID identifies the top-level Runner invocation.
		InvocationID string
		// SessionState is a read-only snapshot of session state at the time
		// of the call.
		SessionState map[string]any
		// Logger is the telemetry logger scoped to this invocation.
		Logger telemetry.Logger

		stateDelta map[string]any
	}

	// Result is a tool's successful return value before serialization. Raw
	// carries the unserialized value (for tools that want to inspect it,
	// e.g. result-preview truncation); Preview is pre-truncated for
	// embedding directly into a FunctionResponse.
	Result struct {
		Raw     any
		Preview string
	}
)

// NewContext constructs a Context for a single tool invocation.
func NewContext(callID, invocationID string, sessionState map[string]any, logger telemetry.Logger) *Context {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Context{
		CallID:       callID,
		InvocationID: invocationID,
		SessionState: sessionState,
		Logger:       logger,
	}
}

// SetState records a session-state mutation to be merged once the call
// completes. Safe to call multiple times; later calls for the same key win.
func (c *Context) SetState(key string, value any) {
	if c.stateDelta == nil {
		c.stateDelta = make(map[string]any)
	}
	c.stateDelta[key] = value
}

// StateDelta returns the accumulated state mutations requested during this
// call.
func (c *Context) StateDelta() map[string]any {
	return c.stateDelta
}
