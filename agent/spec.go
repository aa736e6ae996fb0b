package agent

import "github.com/relaykit/agentcore/model"

// IncludeContents controls how much prior history an LlmAgent includes in
// its model requests.
type IncludeContents string

const (
	// ContentsDefault includes the full branch-filtered history.
	ContentsDefault IncludeContents = "default"
	// ContentsNone includes only the content produced during the current
	// invocation (the user message and this run's own turns), dropping
	// carried-over session history. Used by agents that should reason
	// fresh each invocation regardless of the surrounding conversation.
	ContentsNone IncludeContents = "none"
)

// flowSpec adapts one LlmAgent invocation to flow.Spec, with instructions
// already resolved and templated for the current session state.
type flowSpec struct {
	modelName        string
	resolvedSystem   string
	toolDefs         []model.ToolDefinition
	generationConfig model.GenerationConfig
	transferTargets  []string
}

func (s flowSpec) ModelName() string                 { return s.modelName }
func (s flowSpec) Instruction() string                { return s.resolvedSystem }
func (s flowSpec) GlobalInstruction() string          { return "" }
func (s flowSpec) Tools() []model.ToolDefinition      { return s.toolDefs }
func (s flowSpec) Generation() model.GenerationConfig { return s.generationConfig }
func (s flowSpec) TransferTargets() []string          { return s.transferTargets }
