package agent

import (
	"context"

	"github.com/relaykit/agentcore/dispatch"
	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/flow"
	"github.com/relaykit/agentcore/model"
	"github.com/relaykit/agentcore/tool"
)

// DefaultMaxIterations is the hard cap on model-call iterations within a
// single LlmAgent invocation when Config.MaxIterations is left zero.
const DefaultMaxIterations = 10

// Config configures an LlmAgent.
type Config struct {
	Name              string
	Description       string
	Model             model.Client
	ModelName         string
	Instruction       string
	GlobalInstruction string
	// InstructionResolver overrides canonical instruction resolution. When
	// nil, the static Instruction field is used with templating enabled.
	InstructionResolver InstructionResolver
	Tools               []tool.Tool
	MaxIterations       int
	IncludeContents     IncludeContents
	Generation          model.GenerationConfig
	Plugins             []Plugin
	Pipeline            flow.Pipeline
	// TransferTargets names the agents this agent may hand control to via
	// the transfer_to_agent tool. Only consulted when Pipeline advertises
	// transfer (flow.AutoFlow); a Runner resolves the edge's legality and
	// continues the invocation on the named agent.
	TransferTargets []string
}

// LlmAgent is a BaseAgent whose reasoning loop is driven by a model.Client,
// a flow.Pipeline, and a tool dispatch registry. Grounded on the teacher's
// LLMAgent / baseFlow.Run.
type LlmAgent struct {
	cfg      Config
	registry dispatch.Registry
}

// New constructs an LlmAgent. MaxIterations defaults to DefaultMaxIterations
// and Pipeline defaults to flow.SingleFlow when left zero.
func New(cfg Config) *LlmAgent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if len(cfg.Pipeline.Request) == 0 && len(cfg.Pipeline.Response) == 0 {
		cfg.Pipeline = flow.SingleFlow()
	}
	return &LlmAgent{cfg: cfg, registry: dispatch.NewMapRegistry(cfg.Tools)}
}

func (a *LlmAgent) Name() string        { return a.cfg.Name }
func (a *LlmAgent) Description() string { return a.cfg.Description }

// Run executes the reasoning loop described in the base agent spec: emit
// AgentStart, loop up to MaxIterations calling the model and dispatching any
// tool calls, then emit AgentEnd. The returned channel is closed once the
// invocation completes.
func (a *LlmAgent) Run(ctx context.Context, ic *InvocationContext) <-chan Emission {
	out := make(chan Emission)
	go a.run(ctx, ic, out)
	return out
}

func (a *LlmAgent) run(ctx context.Context, ic *InvocationContext, out chan<- Emission) {
	defer close(out)

	startEv := event.New(ic.InvocationID, a.cfg.Name, event.KindAgentStart, ic.Branch)
	startEv.Content = ic.UserContent
	a.emit(ctx, ic, out, startEv)

	if err := a.runBefore(ctx, ic); err != nil {
		a.notifyError(ctx, ic, err)
		out <- Emission{Err: err}
		return
	}

	working := a.initialHistory(ic)
	if ic.UserContent != nil {
		working = append(working, *ic.UserContent)
	}

	var finalResponse *event.Content
	var longRunningIDs []string
	var transferTo string
	for i := 0; i < a.cfg.MaxIterations; i++ {
		if ic.Ended() {
			break
		}

		spec, err := a.buildSpec(ic)
		if err != nil {
			a.notifyError(ctx, ic, err)
			out <- Emission{Err: err}
			return
		}

		req, err := a.cfg.Pipeline.Prepare(ctx, spec, working)
		if err != nil {
			a.notifyError(ctx, ic, err)
			out <- Emission{Err: err}
			return
		}

		reqEv := event.New(ic.InvocationID, a.cfg.Name, event.KindModelRequest, ic.Branch)
		a.emit(ctx, ic, out, reqEv)

		resp, err := a.cfg.Model.GenerateContent(ctx, req)
		if err != nil {
			errEv := event.New(ic.InvocationID, a.cfg.Name, event.KindError, ic.Branch)
			errEv.Err = err
			a.emit(ctx, ic, out, errEv)
			a.notifyError(ctx, ic, err)
			out <- Emission{Err: err}
			return
		}
		if err := a.cfg.Pipeline.Normalize(ctx, spec, req, resp); err != nil {
			a.notifyError(ctx, ic, err)
			out <- Emission{Err: err}
			return
		}

		respEv := event.New(ic.InvocationID, a.cfg.Name, event.KindModelResponse, ic.Branch)
		respEv.Content = resp.Content
		respEv.Usage = event.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
		a.emit(ctx, ic, out, respEv)

		if resp.Content != nil {
			working = append(working, *resp.Content)
		}
		finalResponse = resp.Content

		var calls []event.FunctionCall
		if resp.Content != nil {
			calls = resp.Content.FunctionCalls()
		}
		if len(calls) == 0 {
			break
		}

		callEv := event.New(ic.InvocationID, a.cfg.Name, event.KindToolCall, ic.Branch)
		callEv.Content = resp.Content
		a.emit(ctx, ic, out, callEv)

		dres, err := dispatch.Dispatch(ctx, a.registry, resp.Content, ic.InvocationID, ic.StateSnapshot, ic.Logger)
		if err != nil {
			a.notifyError(ctx, ic, err)
			out <- Emission{Err: err}
			return
		}
		if dres.Response != nil {
			working = append(working, *dres.Response)
			toolEv := event.New(ic.InvocationID, a.cfg.Name, event.KindToolResponse, ic.Branch)
			toolEv.Content = dres.Response
			toolEv.Actions = dres.Actions
			toolEv.LongRunningToolIDs = dres.LongRunningCallIDs
			a.emit(ctx, ic, out, toolEv)
		}
		if dres.Actions != nil {
			for k, v := range dres.Actions.StateDelta {
				ic.StateSnapshot[k] = v
			}
		}
		longRunningIDs = append(longRunningIDs, dres.LongRunningCallIDs...)
		longRunningIDs = append(longRunningIDs, dres.PendingCredentialCallIDs...)
		if dres.Actions != nil && dres.Actions.TransferToAgent != "" {
			transferTo = dres.Actions.TransferToAgent
		}
		if len(dres.PendingCredentialCallIDs) > 0 || len(dres.LongRunningCallIDs) > 0 || transferTo != "" {
			ic.End()
		}
	}

	endEv := event.New(ic.InvocationID, a.cfg.Name, event.KindAgentEnd, ic.Branch)
	endEv.Content = finalResponse
	endEv.LongRunningToolIDs = longRunningIDs
	if transferTo != "" {
		endEv.Actions = &event.Actions{TransferToAgent: transferTo}
	}
	a.emit(ctx, ic, out, endEv)

	if err := a.runAfter(ctx, ic, finalResponse); err != nil {
		a.notifyError(ctx, ic, err)
	}
}

func (a *LlmAgent) initialHistory(ic *InvocationContext) []event.Content {
	if a.cfg.IncludeContents == ContentsNone {
		return nil
	}
	return append([]event.Content(nil), ic.History...)
}

func (a *LlmAgent) buildSpec(ic *InvocationContext) (flowSpec, error) {
	system, err := a.resolveInstructions(ic)
	if err != nil {
		return flowSpec{}, err
	}
	defs := make([]model.ToolDefinition, 0, len(a.cfg.Tools))
	for _, t := range a.cfg.Tools {
		defs = append(defs, model.ToolDefinition{Name: t.Name(), Description: t.Description(), ParametersSchema: t.ParametersSchema()})
	}
	return flowSpec{
		modelName:        a.cfg.ModelName,
		resolvedSystem:   system,
		toolDefs:         defs,
		generationConfig: a.cfg.Generation,
		transferTargets:  a.cfg.TransferTargets,
	}, nil
}

func (a *LlmAgent) resolveInstructions(ic *InvocationContext) (string, error) {
	text := a.cfg.Instruction
	bypass := false
	if a.cfg.InstructionResolver != nil {
		text, bypass = a.cfg.InstructionResolver(ic.Readonly())
	}
	if !bypass {
		text = applyStateTemplate(text, ic.StateSnapshot)
	}
	global := applyStateTemplate(a.cfg.GlobalInstruction, ic.StateSnapshot)
	if global == "" {
		return text, nil
	}
	if text == "" {
		return global, nil
	}
	return global + "\n\n" + text, nil
}

func (a *LlmAgent) emit(ctx context.Context, ic *InvocationContext, out chan<- Emission, ev *event.Event) {
	if err := ic.appendEvent(ctx, ev); err != nil {
		ic.Logger.Warn(ctx, "failed to persist event", "error", err, "kind", ev.Kind)
	}
	out <- Emission{Event: ev}
}

func (a *LlmAgent) runBefore(ctx context.Context, ic *InvocationContext) error {
	for _, p := range a.cfg.Plugins {
		if err := p.BeforeAgentRun(ctx, ic); err != nil {
			return err
		}
	}
	return nil
}

func (a *LlmAgent) runAfter(ctx context.Context, ic *InvocationContext, final *event.Content) error {
	for _, p := range a.cfg.Plugins {
		if err := p.AfterAgentRun(ctx, ic, final); err != nil {
			return err
		}
	}
	return nil
}

// notifyError calls every plugin's OnError in registration order; a plugin
// whose OnError panics is recovered and logged so it cannot mask the
// triggering error or prevent its siblings from observing the failure.
func (a *LlmAgent) notifyError(ctx context.Context, ic *InvocationContext, err error) {
	for _, p := range a.cfg.Plugins {
		func() {
			defer func() {
				if r := recover(); r != nil {
					ic.Logger.Error(ctx, "plugin OnError panicked", "panic", r)
				}
			}()
			p.OnError(ctx, ic, err)
		}()
	}
}

var _ Agent = (*LlmAgent)(nil)
