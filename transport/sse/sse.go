// Package sse bridges a runner.Runner's streaming generator to an
// http.Handler emitting Server-Sent Events, the wire shape the spec's §6
// external interface names. This is intentionally a thin handler, not a
// production server: no auth, no multi-app routing, no reconnect/Last-Event-
// ID support. Grounded on the teacher's A2A reference server's SSE task
// subscription (other_examples' kadirpekel-hector pkg/a2a/server.go
// sendSSEEvent: "event: type\ndata: json\n\n" framing, Content-Type /
// Cache-Control / X-Accel-Buffering headers, and an http.Flusher check).
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/relaykit/agentcore/runner"
)

// Handler drives a single runner.Runner and streams its events as SSE.
type Handler struct {
	Runner *runner.Runner
}

// NewHandler constructs a Handler over r.
func NewHandler(r *runner.Runner) *Handler {
	return &Handler{Runner: r}
}

// request is the minimal JSON body a caller posts to start a run.
type request struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

// resultFrame is the final frame sent once the run completes, distinct from
// the per-event frames so a client can tell "stream ended" from "one more
// event arrived".
type resultFrame struct {
	FinalResponse        string         `json:"final_response"`
	MaxIterationsReached bool           `json:"max_iterations_reached"`
	Metrics              runner.Metrics `json:"metrics"`
	Error                string         `json:"error,omitempty"`
}

// ServeHTTP decodes a request body, runs the agent, and streams every
// event.Event as an SSE "event" frame, followed by one terminal "result"
// frame carrying the aggregated runner.Result.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("sse: decoding request body: %v", err), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "sse: streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	events, final := h.Runner.RunStreaming(r.Context(), req.AppName, req.UserID, req.SessionID, req.Input)
	for ev := range events {
		writeFrame(w, flusher, "event", ev)
	}

	res, err := final()
	frame := resultFrame{
		FinalResponse:        res.FinalResponse,
		MaxIterationsReached: res.MaxIterationsReached,
		Metrics:              res.Metrics,
	}
	if err != nil {
		frame.Error = err.Error()
	}
	writeFrame(w, flusher, "result", frame)
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
