// Package dispatch executes the FunctionCall parts of a model response
// against a tool registry and merges their FunctionResponse results back
// into a single Content, preserving call order. Grounded on the teacher's
// baseFlow.handleFunctionCalls/mergeParallelFunctionResponseEvents, adapted
// from its sequential single-goroutine loop to bounded-concurrency parallel
// dispatch and from *adk.Event-shaped results onto event.Content directly.
package dispatch

import (
	"context"
	"sort"
	"sync"

	"github.com/relaykit/agentcore/agenterr"
	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/telemetry"
	"github.com/relaykit/agentcore/tool"
)

// CredentialRequestTool is the reserved tool name an LlmAgent emits a
// FunctionCall for when a tool's execution needs to pause for out-of-band
// credential collection. Dispatch recognizes it but does not execute it;
// it defers the call like a long-running one, and the LlmAgent reports its
// id in the AgentEnd event's LongRunningToolIDs.
const CredentialRequestTool = "adk_request_credential"

// TransferToAgentTool is the reserved tool name AutoFlow's transfer request
// processor advertises. Dispatch recognizes a call to it, extracts the
// target agent name from the "agentName" argument, and surfaces it as
// Actions.TransferToAgent rather than looking it up in the tool registry.
const TransferToAgentTool = "transfer_to_agent"

// Registry resolves a tool by name.
type Registry interface {
	Lookup(name string) (tool.Tool, bool)
}

// MapRegistry is a Registry backed by a plain map, built once from an
// agent's configured tool list.
type MapRegistry map[string]tool.Tool

func (r MapRegistry) Lookup(name string) (tool.Tool, bool) {
	t, ok := r[name]
	return t, ok
}

// NewMapRegistry indexes tools by name.
func NewMapRegistry(tools []tool.Tool) MapRegistry {
	r := make(MapRegistry, len(tools))
	for _, t := range tools {
		r[t.Name()] = t
	}
	return r
}

// Result is the outcome of dispatching every FunctionCall in a response.
type Result struct {
	// Response merges every FunctionResponse part into one event.Content,
	// in the same order the FunctionCall parts appeared. Nil if there were
	// no function calls to dispatch.
	Response *event.Content
	// Actions merges every tool invocation's accumulated Context actions
	// (state delta, escalate, transfer), last-one-wins per scalar field.
	Actions *event.Actions
	// PendingCredentialCallIDs holds the call ids of any
	// adk_request_credential invocations, deferred rather than executed.
	PendingCredentialCallIDs []string
	// LongRunningCallIDs holds the call ids of any tool marked
	// IsLongRunning, whose result is not awaited inline.
	LongRunningCallIDs []string
}

// MaxConcurrency bounds how many tool calls run at once within a single
// Dispatch call.
const MaxConcurrency = 8

// Dispatch executes every FunctionCall part in content against registry,
// running independent calls concurrently (bounded by MaxConcurrency), and
// merges their results preserving the original call order.
func Dispatch(ctx context.Context, registry Registry, content *event.Content, invocationID string, sessionState map[string]any, logger telemetry.Logger) (Result, error) {
	if content == nil {
		return Result{}, nil
	}
	calls := content.FunctionCalls()
	if len(calls) == 0 {
		return Result{}, nil
	}

	type outcome struct {
		index      int
		response   event.FunctionResponse
		actions    *event.Actions
		deferred   bool
		credReq    bool
		transferTo string
		err        error
	}

	outcomes := make([]outcome, len(calls))
	sem := make(chan struct{}, MaxConcurrency)
	var wg sync.WaitGroup

	for i, call := range calls {
		if call.Name == CredentialRequestTool {
			outcomes[i] = outcome{index: i, credReq: true}
			continue
		}
		if call.Name == TransferToAgentTool {
			target, _ := call.Args["agentName"].(string)
			outcomes[i] = outcome{index: i, transferTo: target}
			continue
		}
		t, ok := registry.Lookup(call.Name)
		if !ok {
			outcomes[i] = outcome{index: i, err: agenterr.NewToolError(call.Name, "unknown tool", nil)}
			continue
		}
		if t.IsLongRunning() {
			outcomes[i] = outcome{index: i, deferred: true}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, call event.FunctionCall, t tool.Tool) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := tool.ValidateArgs(t, call.Args); err != nil {
				outcomes[i] = outcome{index: i, err: err}
				return
			}
			tc := tool.NewContext(call.ID, invocationID, sessionState, logger)
			res, err := t.Execute(ctx, tc, call.Args)
			if err != nil {
				outcomes[i] = outcome{index: i, err: agenterr.NewToolError(call.Name, "execution failed", err)}
				return
			}
			outcomes[i] = outcome{
				index:    i,
				response: event.FunctionResponse{ID: call.ID, Name: call.Name, Content: res.Preview},
				actions:  actionsFromDelta(tc.StateDelta()),
			}
		}(i, call, t)
	}
	wg.Wait()

	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].index < outcomes[b].index })

	var parts []event.Part
	var merged *event.Actions
	var pendingCreds, longRunning []string
	for _, o := range outcomes {
		switch {
		case o.credReq:
			pendingCreds = append(pendingCreds, calls[o.index].ID)
		case o.deferred:
			longRunning = append(longRunning, calls[o.index].ID)
		case o.transferTo != "":
			parts = append(parts, event.FunctionResponse{
				ID:      calls[o.index].ID,
				Name:    calls[o.index].Name,
				Content: "transferring control to " + o.transferTo,
			})
			merged = event.MergeActions(merged, &event.Actions{TransferToAgent: o.transferTo})
		case o.err != nil:
			parts = append(parts, event.FunctionResponse{
				ID:    calls[o.index].ID,
				Name:  calls[o.index].Name,
				Error: o.err.Error(),
			})
		default:
			parts = append(parts, o.response)
			merged = event.MergeActions(merged, o.actions)
		}
	}

	var resp *event.Content
	if len(parts) > 0 {
		resp = &event.Content{Role: event.RoleTool, Parts: parts}
	}
	return Result{
		Response:                 resp,
		Actions:                  merged,
		PendingCredentialCallIDs: pendingCreds,
		LongRunningCallIDs:       longRunning,
	}, nil
}

func actionsFromDelta(delta map[string]any) *event.Actions {
	if len(delta) == 0 {
		return nil
	}
	return &event.Actions{StateDelta: delta}
}
