package tool

import (
	"context"
	"fmt"
)

// Invokable is the minimal surface an agent exposes to be wrapped as a Tool.
// It is intentionally small (and defined here rather than depended on from
// the agent package) so tool and agent avoid importing one another: any
// type capable of running a single turn and returning its final text
// qualifies, including composite agents.
type Invokable interface {
	// Name identifies the wrapped agent; used as the tool name unless
	// overridden via AgentToolConfig.Name.
	Name() string
	// Description summarizes what the wrapped agent does; used as the tool
	// description unless overridden.
	Description() string
	// RunToCompletion executes the wrapped agent against input and returns
	// its final visible text output.
	RunToCompletion(ctx context.Context, input string, sessionState map[string]any) (string, error)
}

// AgentToolConfig customizes an AgentTool's model-visible identity.
type AgentToolConfig struct {
	Name        string
	Description string
}

// AgentTool adapts an Invokable agent into a Tool, so one agent can invoke
// another as a plain function call rather than only through agent transfer.
// Grounded on the teacher's tools.ToolSpec.IsAgentTool marker, which flagged
// this case for its codegen but did not itself implement invocation.
type AgentTool struct {
	agent Invokable
	cfg   AgentToolConfig
}

// NewAgentTool wraps agent as a Tool. An empty cfg uses the agent's own name
// and description.
func NewAgentTool(agent Invokable, cfg AgentToolConfig) *AgentTool {
	return &AgentTool{agent: agent, cfg: cfg}
}

func (t *AgentTool) Name() string {
	if t.cfg.Name != "" {
		return t.cfg.Name
	}
	return t.agent.Name()
}

func (t *AgentTool) Description() string {
	if t.cfg.Description != "" {
		return t.cfg.Description
	}
	return t.agent.Description()
}

func (t *AgentTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "the request to pass to the wrapped agent",
			},
		},
		"required": []any{"input"},
	}
}

func (t *AgentTool) IsLongRunning() bool { return false }

func (t *AgentTool) Execute(ctx context.Context, tc *Context, args map[string]any) (Result, error) {
	input, _ := args["input"].(string)
	if input == "" {
		return Result{}, fmt.Errorf("agent tool %q: missing required argument %q", t.Name(), "input")
	}
	output, err := t.agent.RunToCompletion(ctx, input, tc.SessionState)
	if err != nil {
		return Result{}, err
	}
	return Result{Raw: output, Preview: Preview(output)}, nil
}

var _ Tool = (*AgentTool)(nil)
