package openai

import (
	"context"
	"encoding/json"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/model"
)

// streamer adapts an OpenAI Chat Completions streaming response to
// model.Streamer. Tool-call argument fragments arrive split across chunks
// keyed by index; they are accumulated here and only surfaced as a
// FunctionCall once finish_reason closes the choice, since partial JSON
// arguments are not a usable FunctionCall.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[openai.ChatCompletionChunk]

	toolID   map[int64]string
	toolName map[int64]string
	toolArgs map[int64]string
}

func newStreamer(ctx context.Context, stream *ssestream.Stream[openai.ChatCompletionChunk]) model.Streamer {
	cctx, cancel := context.WithCancel(ctx)
	return &streamer{
		ctx:      cctx,
		cancel:   cancel,
		stream:   stream,
		toolID:   map[int64]string{},
		toolName: map[int64]string{},
		toolArgs: map[int64]string{},
	}
}

func (s *streamer) Recv() (*model.Chunk, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	default:
	}
	if !s.stream.Next() {
		if err := s.stream.Err(); err != nil {
			return nil, translateError(err)
		}
		return nil, io.EOF
	}
	chunk := s.stream.Current()
	if len(chunk.Choices) == 0 {
		return &model.Chunk{}, nil
	}
	choice := chunk.Choices[0]
	out := &model.Chunk{}
	if choice.Delta.Content != "" {
		out.ContentDelta = &event.Content{Role: event.RoleAssistant, Parts: []event.Part{event.Text{Text: choice.Delta.Content}}}
	}
	for _, call := range choice.Delta.ToolCalls {
		idx := call.Index
		if call.ID != "" {
			s.toolID[idx] = call.ID
		}
		if call.Function.Name != "" {
			s.toolName[idx] = call.Function.Name
		}
		if call.Function.Arguments != "" {
			s.toolArgs[idx] += call.Function.Arguments
		}
	}
	if choice.FinishReason != "" {
		for idx, name := range s.toolName {
			var args map[string]any
			if raw := s.toolArgs[idx]; raw != "" {
				_ = json.Unmarshal([]byte(raw), &args)
			}
			if out.ContentDelta == nil {
				out.ContentDelta = &event.Content{Role: event.RoleAssistant}
			}
			out.ContentDelta.Parts = append(out.ContentDelta.Parts, event.FunctionCall{ID: s.toolID[idx], Name: name, Args: args})
		}
		out.FinishReason = mapFinishReason(choice.FinishReason)
		out.Done = true
	}
	return out, nil
}

func (s *streamer) Close() error {
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}
