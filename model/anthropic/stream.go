package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/model"
)

// streamer adapts an Anthropic Messages streaming response to model.Streamer.
// Text deltas are forwarded as they arrive; tool_use input is buffered per
// content-block index and emitted whole when the block closes, since a
// FunctionCall's Args only make sense once its JSON is complete.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]

	mu         sync.Mutex
	toolName   map[int]string
	toolID     map[int]string
	toolInput  map[int]string
	stopReason string
}

func newStreamer(ctx context.Context, stream *ssestream.Stream[sdk.MessageStreamEventUnion]) model.Streamer {
	cctx, cancel := context.WithCancel(ctx)
	return &streamer{
		ctx:       cctx,
		cancel:    cancel,
		stream:    stream,
		toolName:  map[int]string{},
		toolID:    map[int]string{},
		toolInput: map[int]string{},
	}
}

func (s *streamer) Recv() (*model.Chunk, error) {
	for {
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
		if chunk := s.handle(s.stream.Current()); chunk != nil {
			return chunk, nil
		}
	}
}

func (s *streamer) Close() error {
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

func (s *streamer) handle(ev sdk.MessageStreamEventUnion) *model.Chunk {
	switch v := ev.AsAny().(type) {
	case sdk.ContentBlockStartEvent:
		if tu, ok := v.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
			idx := int(v.Index)
			s.mu.Lock()
			s.toolName[idx] = tu.Name
			s.toolID[idx] = tu.ID
			s.mu.Unlock()
		}
		return nil
	case sdk.ContentBlockDeltaEvent:
		idx := int(v.Index)
		switch delta := v.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return nil
			}
			return &model.Chunk{ContentDelta: &event.Content{Role: event.RoleAssistant, Parts: []event.Part{event.Text{Text: delta.Text}}}}
		case sdk.InputJSONDelta:
			s.mu.Lock()
			s.toolInput[idx] += delta.PartialJSON
			s.mu.Unlock()
		}
		return nil
	case sdk.ContentBlockStopEvent:
		idx := int(v.Index)
		s.mu.Lock()
		name, hasTool := s.toolName[idx]
		id := s.toolID[idx]
		raw := s.toolInput[idx]
		delete(s.toolName, idx)
		delete(s.toolID, idx)
		delete(s.toolInput, idx)
		s.mu.Unlock()
		if !hasTool {
			return nil
		}
		var args map[string]any
		if raw != "" {
			_ = json.Unmarshal([]byte(raw), &args)
		}
		return &model.Chunk{ContentDelta: &event.Content{Role: event.RoleAssistant, Parts: []event.Part{event.FunctionCall{ID: id, Name: name, Args: args}}}}
	case sdk.MessageDeltaEvent:
		s.mu.Lock()
		s.stopReason = string(v.Delta.StopReason)
		s.mu.Unlock()
		usage := model.TokenUsage{
			InputTokens:  int(v.Usage.InputTokens),
			OutputTokens: int(v.Usage.OutputTokens),
			TotalTokens:  int(v.Usage.InputTokens + v.Usage.OutputTokens),
		}
		return &model.Chunk{Usage: &usage}
	case sdk.MessageStopEvent:
		s.mu.Lock()
		reason := s.stopReason
		s.mu.Unlock()
		return &model.Chunk{FinishReason: mapStopReason(reason), Done: true}
	default:
		return nil
	}
}
