package ws_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/agent"
	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/runner"
	"github.com/relaykit/agentcore/session/inmem"
	"github.com/relaykit/agentcore/transport/ws"
)

type scriptedAgent struct{ text string }

func (a *scriptedAgent) Name() string        { return "bot" }
func (a *scriptedAgent) Description() string { return "scripted" }

func (a *scriptedAgent) Run(ctx context.Context, ic *agent.InvocationContext) <-chan agent.Emission {
	out := make(chan agent.Emission)
	go func() {
		defer close(out)
		out <- agent.Emission{Event: event.New(ic.InvocationID, "bot", event.KindAgentStart, ic.Branch)}
		c := event.NewTextContent(event.RoleAssistant, a.text)
		end := event.New(ic.InvocationID, "bot", event.KindAgentEnd, ic.Branch)
		end.Content = &c
		out <- agent.Emission{Event: end}
	}()
	return out
}

func TestHandler_StreamsEventsThenResultFrame(t *testing.T) {
	r := runner.New(runner.Config{Agent: &scriptedAgent{text: "hi there"}, Store: inmem.New()})
	h := ws.NewHandler(r)

	server := httptest.NewServer(h)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{
		"app_name": "app", "user_id": "u1", "session_id": "s1", "input": "hello",
	}))

	var frames []map[string]any
	for {
		var f map[string]any
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		frames = append(frames, f)
		if f["type"] == "result" {
			break
		}
	}

	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, "result", last["type"])
	assert.Equal(t, "hi there", last["final_response"])

	var sawEvent bool
	for _, f := range frames {
		if f["type"] == "event" {
			sawEvent = true
		}
	}
	assert.True(t, sawEvent)
}

func TestHandler_MalformedRequestFrameGetsErrorAndCloses(t *testing.T) {
	r := runner.New(runner.Config{Agent: &scriptedAgent{text: "hi"}, Store: inmem.New()})
	h := ws.NewHandler(r)

	server := httptest.NewServer(h)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var f map[string]any
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "error_request", f["type"])
}
