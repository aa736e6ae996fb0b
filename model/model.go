// Package model defines the provider-agnostic request/response contract
// every LLM provider adapter implements: generateContent, generateStreaming,
// and countTokens, plus declared capabilities and a strict finish-reason
// mapping. Grounded on the teacher's runtime/agent/model package, adapted
// from its Message/Part shape onto this runtime's event.Content/Part so the
// same content types flow from session history through the model and back
// into dispatched tool calls without a second parallel representation.
package model

import (
	"context"

	"github.com/relaykit/agentcore/event"
)

// FinishReason is the normalized reason generation stopped. Provider-
// specific codes reduce to one of these four; unrecognized codes map to
// FinishStop.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
)

// Capabilities declares what a Client supports so callers can fail fast or
// adapt a request rather than discovering a limitation mid-call. The flow
// request processors do not consult it.
type Capabilities struct {
	Streaming          bool
	Tools              bool
	Images             bool
	Audio              bool
	Video              bool
	SystemInstructions bool
	MaxInputTokens     int
	MaxOutputTokens    int
}

type (
	// ToolDefinition is a model-native tool declaration translated from a
	// tool.Tool when an LlmAgent builds its flow spec, and copied onto the
	// Request by the basic request processor.
	ToolDefinition struct {
		Name             string
		Description      string
		ParametersSchema map[string]any
	}

	// ToolChoiceMode controls how a request steers tool use.
	ToolChoiceMode string

	// ToolChoice optionally constrains tool-use behavior. A nil ToolChoice
	// on a Request means provider-default (typically auto).
	ToolChoice struct {
		Mode ToolChoiceMode
		Name string
	}

	// TokenUsage reports token consumption for a single call.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}

	// GenerationConfig carries sampling and length parameters applied to a
	// Request by the basic request processor.
	GenerationConfig struct {
		Temperature     float32
		TopP            float32
		MaxOutputTokens int
		StopSequences   []string
	}

	// SafetySettings carries provider-agnostic content-safety thresholds.
	// Concrete categories are provider-specific. The anthropic and openai
	// adapters do not send this map to the provider.
	SafetySettings map[string]string

	// Request captures one model invocation. Contents is the full history
	// view (event.BuildHistory output) plus the current turn.
	Request struct {
		Model             string
		Contents          []event.Content
		SystemInstruction string
		Generation        GenerationConfig
		Safety            SafetySettings
		Tools             []ToolDefinition
		ToolChoice        *ToolChoice
		Stream            bool
	}

	// Response is the result of a non-streaming GenerateContent call.
	Response struct {
		Content      *event.Content
		FinishReason FinishReason
		Usage        TokenUsage
		Partial      bool
		TurnComplete bool
	}

	// Chunk is a single streaming increment from GenerateStreaming.
	Chunk struct {
		ContentDelta *event.Content
		FinishReason FinishReason
		Usage        *TokenUsage
		Done         bool
	}

	// Streamer delivers incremental chunks from a streaming call. Callers
	// must drain Recv until it returns io.EOF (or another terminal error)
	// and then Close.
	Streamer interface {
		Recv() (*Chunk, error)
		Close() error
	}

	// Client is the provider-agnostic model abstraction every adapter
	// implements.
	Client interface {
		// GenerateContent performs a single, non-streaming model call.
		GenerateContent(ctx context.Context, req *Request) (*Response, error)
		// GenerateStreaming performs a streaming model call. Implementations
		// that do not support streaming return an error.
		GenerateStreaming(ctx context.Context, req *Request) (Streamer, error)
		// CountTokens estimates the token count of contents under this
		// model's tokenizer.
		CountTokens(ctx context.Context, contents []event.Content) (int, error)
		// Capabilities reports what this client supports.
		Capabilities() Capabilities
	}
)

const (
	ToolChoiceAuto ToolChoiceMode = "auto"
	ToolChoiceNone ToolChoiceMode = "none"
	ToolChoiceAny  ToolChoiceMode = "any"
	ToolChoiceTool ToolChoiceMode = "tool"
)
