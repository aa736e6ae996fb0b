// Package anthropic provides a model.Client backed by the Anthropic Claude
// Messages API. It translates this runtime's event.Content history into
// anthropic.MessageNewParams and maps responses (text and tool_use blocks,
// usage) back into event.Content. Grounded on the teacher's
// features/model/anthropic adapter, simplified from its Message/Part
// hierarchy onto event.Content and stripped of thinking/cache-checkpoint
// handling, which are outside this runtime's data model.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/model"
)

// MessagesClient captures the subset of the Anthropic SDK used by Client, so
// tests can substitute a stub in place of *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Options configures the Anthropic adapter.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Client implements model.Client on top of Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// New builds an Anthropic-backed model client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model identifier is required")
	}
	return &Client{msg: msg, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewFromAPIKey constructs a client against the real Anthropic API.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, Options{DefaultModel: defaultModel})
}

func (c *Client) Capabilities() model.Capabilities {
	return model.Capabilities{Streaming: true, Tools: true, Images: true, SystemInstructions: true}
}

func (c *Client) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return nil, translateError(err)
	}
	return translateResponse(msg), nil
}

func (c *Client) GenerateStreaming(ctx context.Context, req *model.Request) (model.Streamer, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	stream := c.msg.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, translateError(err)
	}
	return newStreamer(ctx, stream), nil
}

// CountTokens estimates token usage without a live call; Anthropic's Messages
// API has no standalone count endpoint exposed through MessagesClient, so
// this uses a character-based heuristic (one token per three characters,
// plus one). The rate limiter's estimate uses the same ratio but adds a
// fixed 500-token allowance.
func (c *Client) CountTokens(_ context.Context, contents []event.Content) (int, error) {
	chars := 0
	for _, ct := range contents {
		chars += len(ct.Text())
	}
	return chars/3 + 1, nil
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.MessageNewParams, error) {
	if len(req.Contents) == 0 {
		return nil, errors.New("anthropic: contents are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	msgs, err := encodeContents(req.Contents)
	if err != nil {
		return nil, err
	}
	maxTokens := req.Generation.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens <= 0 {
		return nil, errors.New("anthropic: max output tokens must be positive")
	}
	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(modelID),
	}
	if req.SystemInstruction != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemInstruction}}
	}
	if temp := req.Generation.Temperature; temp > 0 {
		params.Temperature = sdk.Float(float64(temp))
	} else if c.temperature > 0 {
		params.Temperature = sdk.Float(c.temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	return &params, nil
}

func encodeContents(contents []event.Content) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(contents))
	for _, ct := range contents {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(ct.Parts))
		for _, p := range ct.Parts {
			switch v := p.(type) {
			case event.Text:
				if v.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(v.Text))
				}
			case event.FunctionCall:
				input, err := json.Marshal(v.Args)
				if err != nil {
					return nil, fmt.Errorf("anthropic: encode function call %q: %w", v.Name, err)
				}
				blocks = append(blocks, sdk.NewToolUseBlock(v.ID, json.RawMessage(input), v.Name))
			case event.FunctionResponse:
				content := v.Content
				if v.Error != "" {
					content = v.Error
				}
				blocks = append(blocks, sdk.NewToolResultBlock(v.ID, content, v.Error != ""))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch ct.Role {
		case event.RoleUser, event.RoleTool:
			out = append(out, sdk.NewUserMessage(blocks...))
		case event.RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported role %q", ct.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("anthropic: at least one user/assistant message is required")
	}
	return out, nil
}

func encodeTools(defs []model.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		raw, err := json.Marshal(def.ParametersSchema)
		if err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", def.Name, err)
		}
		var schemaMap map[string]any
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &schemaMap); err != nil {
				return nil, fmt.Errorf("anthropic: tool %q schema: %w", def.Name, err)
			}
		}
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schemaMap}, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func translateResponse(msg *sdk.Message) *model.Response {
	content := &event.Content{Role: event.RoleAssistant}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				content.Parts = append(content.Parts, event.Text{Text: block.Text})
			}
		case "tool_use":
			var args map[string]any
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &args)
			}
			content.Parts = append(content.Parts, event.FunctionCall{ID: block.ID, Name: block.Name, Args: args})
		}
	}
	resp := &model.Response{
		Content:      content,
		FinishReason: mapStopReason(string(msg.StopReason)),
		TurnComplete: true,
	}
	if u := msg.Usage; u.InputTokens != 0 || u.OutputTokens != 0 {
		resp.Usage = model.TokenUsage{
			InputTokens:  int(u.InputTokens),
			OutputTokens: int(u.OutputTokens),
			TotalTokens:  int(u.InputTokens + u.OutputTokens),
		}
	}
	return resp
}

func mapStopReason(reason string) model.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return model.FinishStop
	case "max_tokens":
		return model.FinishLength
	case "tool_use":
		return model.FinishToolCalls
	default:
		return model.FinishStop
	}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit"):
		return model.NewProviderError("anthropic", model.ErrorKindRateLimited, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return model.NewProviderError("anthropic", model.ErrorKindAuth, err)
	case strings.Contains(msg, "400"):
		return model.NewProviderError("anthropic", model.ErrorKindInvalidRequest, err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "503") || errors.Is(err, io.ErrUnexpectedEOF):
		return model.NewProviderError("anthropic", model.ErrorKindUnavailable, err)
	default:
		return model.NewProviderError("anthropic", model.ErrorKindUnknown, err)
	}
}
