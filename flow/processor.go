// Package flow assembles the ordered request/response processor pipeline
// that turns an agent's configuration and session history into a model
// request, and normalizes a model response before it becomes an event.
// Grounded on the teacher's baseFlow (singleFlow/autoFlow request/response
// processor chains), adapted from genai.GenerateContentConfig onto this
// runtime's model.Request/Response and from *LLMAgent onto the Spec interface
// describing an LLM-backed agent's configuration.
package flow

import (
	"context"
	"strings"

	"github.com/relaykit/agentcore/dispatch"
	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/model"
)

// Spec is the subset of an agent's configuration a flow needs to build a
// request. It is defined here (rather than imported from agent) so flow and
// agent avoid importing one another; agent implements this interface with its
// unexported flowSpec type, built per LlmAgent invocation.
type Spec interface {
	ModelName() string
	Instruction() string
	GlobalInstruction() string
	Tools() []model.ToolDefinition
	Generation() model.GenerationConfig
	// TransferTargets lists the agent names AgentTransferRequestProcessor may
	// advertise as transfer_to_agent destinations. Empty means this agent
	// cannot transfer control anywhere.
	TransferTargets() []string
}

// RequestProcessor mutates req in place ahead of a model call. Processors run
// in registration order; an error from any processor aborts the request.
type RequestProcessor func(ctx context.Context, spec Spec, history []event.Content, req *model.Request) error

// ResponseProcessor mutates resp in place after a model call returns,
// normalizing it before it becomes an event.
type ResponseProcessor func(ctx context.Context, spec Spec, req *model.Request, resp *model.Response) error

// Pipeline is an ordered chain of request and response processors.
type Pipeline struct {
	Request  []RequestProcessor
	Response []ResponseProcessor
}

// Prepare builds a model.Request by running every request processor in order
// over a request whose Contents is already set to history.
func (p Pipeline) Prepare(ctx context.Context, spec Spec, history []event.Content) (*model.Request, error) {
	req := &model.Request{Contents: history}
	for _, proc := range p.Request {
		if err := proc(ctx, spec, history, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Normalize runs every response processor over resp in order.
func (p Pipeline) Normalize(ctx context.Context, spec Spec, req *model.Request, resp *model.Response) error {
	for _, proc := range p.Response {
		if err := proc(ctx, spec, req, resp); err != nil {
			return err
		}
	}
	return nil
}

// SingleFlow is the processor pipeline for an agent that never transfers
// control to another agent.
func SingleFlow() Pipeline {
	return Pipeline{
		Request: []RequestProcessor{
			BasicRequestProcessor,
			InstructionsRequestProcessor,
			ContentsRequestProcessor,
		},
		Response: []ResponseProcessor{
			AssignMissingFunctionIDProcessor,
		},
	}
}

// AutoFlow extends SingleFlow with agent-transfer support in its request
// pipeline, for agents with sub-agents they may delegate to.
func AutoFlow() Pipeline {
	base := SingleFlow()
	base.Request = append(append([]RequestProcessor{}, base.Request...), AgentTransferRequestProcessor)
	return base
}

// BasicRequestProcessor copies the agent's model name, generation config, and
// tool definitions onto the request.
func BasicRequestProcessor(_ context.Context, spec Spec, _ []event.Content, req *model.Request) error {
	req.Model = spec.ModelName()
	req.Generation = spec.Generation()
	req.Tools = spec.Tools()
	return nil
}

// InstructionsRequestProcessor concatenates the root agent's global
// instruction with this agent's own instruction into the system instruction.
func InstructionsRequestProcessor(_ context.Context, spec Spec, _ []event.Content, req *model.Request) error {
	var parts []string
	if g := spec.GlobalInstruction(); g != "" {
		parts = append(parts, g)
	}
	if i := spec.Instruction(); i != "" {
		parts = append(parts, i)
	}
	req.SystemInstruction = strings.Join(parts, "\n\n")
	return nil
}

// ContentsRequestProcessor is a placeholder hook for request-time content
// shaping (for example, dropping parts a particular model class cannot
// accept). It currently passes history through unchanged; req.Contents is
// already populated by Pipeline.Prepare.
func ContentsRequestProcessor(_ context.Context, _ Spec, _ []event.Content, _ *model.Request) error {
	return nil
}

// AgentTransferRequestProcessor appends a virtual transfer_to_agent tool
// naming every target spec.TransferTargets() allows, so the model can issue
// it like any other FunctionCall. dispatch.Dispatch recognizes the call by
// its reserved name and turns it into Actions.TransferToAgent instead of
// invoking application code; the runner resolves the edge against its
// composite.Hierarchy and starts a fresh invocation on the target.
func AgentTransferRequestProcessor(_ context.Context, spec Spec, _ []event.Content, req *model.Request) error {
	targets := spec.TransferTargets()
	if len(targets) == 0 {
		return nil
	}
	req.Tools = append(req.Tools, model.ToolDefinition{
		Name:        dispatch.TransferToAgentTool,
		Description: "Transfer the conversation to another agent better suited to handle it. Call this instead of answering directly when one of the listed agents owns the request.",
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agentName": map[string]any{
					"type": "string",
					"enum": targets,
				},
			},
			"required": []string{"agentName"},
		},
	})
	return nil
}

// AssignMissingFunctionIDProcessor assigns a framework-generated id to any
// FunctionCall part the model returned without one.
func AssignMissingFunctionIDProcessor(_ context.Context, _ Spec, _ *model.Request, resp *model.Response) error {
	if resp == nil || resp.Content == nil {
		return nil
	}
	for i, p := range resp.Content.Parts {
		fc, ok := p.(event.FunctionCall)
		if !ok || fc.ID != "" {
			continue
		}
		fc.ID = event.NewID()
		resp.Content.Parts[i] = fc
	}
	return nil
}
