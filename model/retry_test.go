package model_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/model"
	"github.com/relaykit/agentcore/telemetry"
)

type flakyClient struct {
	failures int
	calls    int
	caps     model.Capabilities
}

func (c *flakyClient) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, model.NewProviderError("stub", model.ErrorKindUnavailable, errors.New("boom"))
	}
	return &model.Response{Content: &event.Content{Role: event.RoleAssistant}, FinishReason: model.FinishStop}, nil
}

func (c *flakyClient) GenerateStreaming(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return nil, errors.New("not implemented")
}

func (c *flakyClient) CountTokens(ctx context.Context, contents []event.Content) (int, error) {
	return 0, nil
}

func (c *flakyClient) Capabilities() model.Capabilities { return c.caps }

func TestRetryingClient_RetriesRetryableErrors(t *testing.T) {
	next := &flakyClient{failures: 2}
	cfg := model.RetryConfig{MaxAttempts: 3, BaseDelay: 0, MaxDelay: 0}
	rc := model.NewRetryingClient("stub", next, cfg, 0, telemetry.NewNoopMetrics())

	resp, err := rc.GenerateContent(context.Background(), &model.Request{
		Model:    "test",
		Contents: []event.Content{event.NewTextContent(event.RoleUser, "hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.FinishStop, resp.FinishReason)
	assert.Equal(t, 3, next.calls)
}

func TestRetryingClient_NonRetryableFailsFast(t *testing.T) {
	next := &failingClient{err: model.NewProviderError("stub", model.ErrorKindInvalidRequest, errors.New("bad request"))}
	cfg := model.RetryConfig{MaxAttempts: 3, BaseDelay: 0, MaxDelay: 0}
	rc := model.NewRetryingClient("stub", next, cfg, 0, telemetry.NewNoopMetrics())

	_, err := rc.GenerateContent(context.Background(), &model.Request{
		Model:    "test",
		Contents: []event.Content{event.NewTextContent(event.RoleUser, "hi")},
	})
	require.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

type failingClient struct {
	err   error
	calls int
}

func (c *failingClient) GenerateContent(ctx context.Context, req *model.Request) (*model.Response, error) {
	c.calls++
	return nil, c.err
}

func (c *failingClient) GenerateStreaming(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return nil, c.err
}

func (c *failingClient) CountTokens(ctx context.Context, contents []event.Content) (int, error) {
	return 0, nil
}

func (c *failingClient) Capabilities() model.Capabilities { return model.Capabilities{} }
