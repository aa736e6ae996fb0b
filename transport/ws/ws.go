// Package ws bridges a runner.Runner's streaming generator to a WebSocket
// connection: the client sends one JSON request frame, the server streams
// one JSON event frame per event.Event, then a terminal result frame and
// closes. Like transport/sse, this is intentionally minimal — no auth, no
// reconnect, no multi-app routing — enough to prove the Runner's streaming
// contract over the other wire shape the spec's §6 names. Grounded on the
// teacher's WebSocket control-plane session (other_examples'
// haasonsaas-nexus internal/gateway/ws_control_plane.go: its read/write
// pump split, read deadline + pong handler keepalive, and text-frame
// JSON encoding).
package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaykit/agentcore/runner"
)

const (
	maxPayloadBytes = 1 << 20
	pongWait        = 45 * time.Second
	writeWait       = 10 * time.Second
)

// Handler drives a single runner.Runner over upgraded WebSocket connections.
type Handler struct {
	Runner   *runner.Runner
	Upgrader websocket.Upgrader
}

// NewHandler constructs a Handler over r with an upgrader that accepts any
// origin, matching the teacher's development-mode CheckOrigin.
func NewHandler(r *runner.Runner) *Handler {
	return &Handler{
		Runner: r,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// request is the single frame a client sends to start a run.
type request struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

// frame is the wire shape for every outbound message: either an event frame
// (Type == "event") or the terminal result frame (Type == "result").
type frame struct {
	Type                 string          `json:"type"`
	Event                json.RawMessage `json:"event,omitempty"`
	FinalResponse        string          `json:"final_response,omitempty"`
	MaxIterationsReached bool            `json:"max_iterations_reached,omitempty"`
	Metrics              *runner.Metrics `json:"metrics,omitempty"`
	Error                string          `json:"error,omitempty"`
}

// ServeHTTP upgrades the connection, reads exactly one request frame, then
// streams the run's events followed by one result frame before closing.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxPayloadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var req request
	if err := conn.ReadJSON(&req); err != nil {
		h.writeFrame(conn, frame{Type: "error_request", Error: fmt.Sprintf("ws: decoding request frame: %v", err)})
		return
	}

	events, final := h.Runner.RunStreaming(r.Context(), req.AppName, req.UserID, req.SessionID, req.Input)
	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := h.writeFrame(conn, frame{Type: "event", Event: payload}); err != nil {
			return
		}
	}

	res, runErr := final()
	out := frame{
		Type:                 "result",
		FinalResponse:        res.FinalResponse,
		MaxIterationsReached: res.MaxIterationsReached,
		Metrics:              &res.Metrics,
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	_ = h.writeFrame(conn, out)
}

func (h *Handler) writeFrame(conn *websocket.Conn, f frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
