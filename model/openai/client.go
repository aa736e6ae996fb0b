// Package openai provides a model.Client backed by the OpenAI Chat
// Completions API, using the official github.com/openai/openai-go SDK.
// Grounded on the teacher's features/model/openai adapter; translated from
// the teacher's sashabaranov/go-openai integration onto openai-go's
// params/union request shape and from event.Content onto this runtime's data
// model rather than the teacher's flat Message.Content string.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/model"
)

// ChatClient captures the subset of the openai-go client used by Client, so
// tests can substitute a stub.
type ChatClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// Options configures the OpenAI adapter.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Client implements model.Client via OpenAI Chat Completions.
type Client struct {
	chat         ChatClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// New builds an OpenAI-backed model client.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: chat, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewFromAPIKey constructs a client against the real OpenAI API.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, Options{DefaultModel: defaultModel})
}

func (c *Client) Capabilities() model.Capabilities {
	return model.Capabilities{Streaming: true, Tools: true, SystemInstructions: true}
}

func (c *Client) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.chat.New(ctx, *params)
	if err != nil {
		return nil, translateError(err)
	}
	return translateResponse(resp), nil
}

func (c *Client) GenerateStreaming(ctx context.Context, req *model.Request) (model.Streamer, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	stream := c.chat.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		return nil, translateError(err)
	}
	return newStreamer(ctx, stream), nil
}

// CountTokens estimates token usage with a character-based heuristic; the
// Chat Completions API has no standalone tokenization endpoint exposed
// through ChatClient.
func (c *Client) CountTokens(_ context.Context, contents []event.Content) (int, error) {
	chars := 0
	for _, ct := range contents {
		chars += len(ct.Text())
	}
	return chars/4 + 1, nil
}

func (c *Client) prepareRequest(req *model.Request) (*openai.ChatCompletionNewParams, error) {
	if len(req.Contents) == 0 {
		return nil, errors.New("openai: contents are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Contents)+1)
	if req.SystemInstruction != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstruction))
	}
	for _, ct := range req.Contents {
		msgs, err := encodeContent(ct)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msgs...)
	}
	params := openai.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
	}
	if maxTokens := req.Generation.MaxOutputTokens; maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	} else if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	if temp := req.Generation.Temperature; temp > 0 {
		params.Temperature = openai.Float(float64(temp))
	} else if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
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

func encodeContent(ct event.Content) ([]openai.ChatCompletionMessageParamUnion, error) {
	var out []openai.ChatCompletionMessageParamUnion
	var text strings.Builder
	for _, p := range ct.Parts {
		switch v := p.(type) {
		case event.Text:
			text.WriteString(v.Text)
		case event.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				return nil, fmt.Errorf("openai: encode function call %q: %w", v.Name, err)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					ToolCalls: []openai.ChatCompletionMessageToolCallParam{{
						ID: v.ID,
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      v.Name,
							Arguments: string(args),
						},
					}},
				},
			})
		case event.FunctionResponse:
			content := v.Content
			if v.Error != "" {
				content = v.Error
			}
			out = append(out, openai.ToolMessage(content, v.ID))
		}
	}
	if text.Len() > 0 {
		switch ct.Role {
		case event.RoleAssistant:
			out = append([]openai.ChatCompletionMessageParamUnion{openai.AssistantMessage(text.String())}, out...)
		default:
			out = append([]openai.ChatCompletionMessageParamUnion{openai.UserMessage(text.String())}, out...)
		}
	}
	return out, nil
}

func encodeTools(defs []model.ToolDefinition) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(def.ParametersSchema),
			},
		})
	}
	return out, nil
}

func translateResponse(resp *openai.ChatCompletion) *model.Response {
	content := &event.Content{Role: event.RoleAssistant}
	var finish model.FinishReason
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Message.Content != "" {
			content.Parts = append(content.Parts, event.Text{Text: choice.Message.Content})
		}
		for _, call := range choice.Message.ToolCalls {
			var args map[string]any
			if call.Function.Arguments != "" {
				_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
			}
			content.Parts = append(content.Parts, event.FunctionCall{ID: call.ID, Name: call.Function.Name, Args: args})
		}
		finish = mapFinishReason(string(choice.FinishReason))
	}
	return &model.Response{
		Content:      content,
		FinishReason: finish,
		TurnComplete: true,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
}

func mapFinishReason(reason string) model.FinishReason {
	switch reason {
	case "stop":
		return model.FinishStop
	case "length":
		return model.FinishLength
	case "tool_calls", "function_call":
		return model.FinishToolCalls
	case "content_filter":
		return model.FinishContentFilter
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
		return model.NewProviderError("openai", model.ErrorKindRateLimited, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return model.NewProviderError("openai", model.ErrorKindAuth, err)
	case strings.Contains(msg, "400"):
		return model.NewProviderError("openai", model.ErrorKindInvalidRequest, err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "503") || errors.Is(err, io.ErrUnexpectedEOF):
		return model.NewProviderError("openai", model.ErrorKindUnavailable, err)
	default:
		return model.NewProviderError("openai", model.ErrorKindUnknown, err)
	}
}
