package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/agentcore/agent"
	"github.com/relaykit/agentcore/composite"
	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/runner"
	"github.com/relaykit/agentcore/session/inmem"
)

// scriptedAgent emits AgentStart, one ModelRequest/ModelResponse pair per
// round, then AgentEnd with the given final text. It never dispatches tool
// calls.
type scriptedAgent struct {
	name  string
	text  string
	delay time.Duration
	fail  error
}

func (a *scriptedAgent) Name() string        { return a.name }
func (a *scriptedAgent) Description() string { return "scripted" }

func (a *scriptedAgent) Run(ctx context.Context, ic *agent.InvocationContext) <-chan agent.Emission {
	out := make(chan agent.Emission)
	go func() {
		defer close(out)
		out <- agent.Emission{Event: event.New(ic.InvocationID, a.name, event.KindAgentStart, ic.Branch)}
		out <- agent.Emission{Event: event.New(ic.InvocationID, a.name, event.KindModelRequest, ic.Branch)}

		if a.delay > 0 {
			select {
			case <-time.After(a.delay):
			case <-ctx.Done():
				out <- agent.Emission{Err: ctx.Err()}
				return
			}
		}
		if a.fail != nil {
			out <- agent.Emission{Err: a.fail}
			return
		}

		resp := event.New(ic.InvocationID, a.name, event.KindModelResponse, ic.Branch)
		c := event.NewTextContent(event.RoleAssistant, a.text)
		resp.Content = &c
		out <- agent.Emission{Event: resp}

		end := event.New(ic.InvocationID, a.name, event.KindAgentEnd, ic.Branch)
		end.Content = &c
		out <- agent.Emission{Event: end}
	}()
	return out
}

// transferringAgent emits AgentStart then an AgentEnd carrying
// Actions.TransferToAgent instead of a final response, simulating a
// coordinator whose model issued a transfer_to_agent call.
type transferringAgent struct {
	name string
	to   string
}

func (a *transferringAgent) Name() string        { return a.name }
func (a *transferringAgent) Description() string { return "transferring" }

func (a *transferringAgent) Run(ctx context.Context, ic *agent.InvocationContext) <-chan agent.Emission {
	out := make(chan agent.Emission)
	go func() {
		defer close(out)
		out <- agent.Emission{Event: event.New(ic.InvocationID, a.name, event.KindAgentStart, ic.Branch)}
		end := event.New(ic.InvocationID, a.name, event.KindAgentEnd, ic.Branch)
		end.Actions = &event.Actions{TransferToAgent: a.to}
		out <- agent.Emission{Event: end}
	}()
	return out
}

func TestRunner_FollowsAgentTransferToTarget(t *testing.T) {
	coordinator := &transferringAgent{name: "coordinator", to: "greeter"}
	greeter := &scriptedAgent{name: "greeter", text: "hello from greeter"}

	h := composite.NewHierarchy(
		composite.Node{Agent: coordinator},
		composite.Node{Agent: greeter, Parent: "coordinator"},
	)

	r := runner.New(runner.Config{
		Agent:     coordinator,
		Store:     inmem.New(),
		Hierarchy: h,
	})

	res, err := r.Run(context.Background(), "app", "user-5", "sess-5", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello from greeter", res.FinalResponse)

	var sawGreeterStart bool
	for _, ev := range res.Events {
		if ev.Author == "greeter" && ev.Kind == event.KindAgentStart {
			sawGreeterStart = true
		}
	}
	assert.True(t, sawGreeterStart)
}

func TestRunner_TransferWithoutHierarchyFails(t *testing.T) {
	coordinator := &transferringAgent{name: "coordinator", to: "greeter"}
	r := runner.New(runner.Config{
		Agent: coordinator,
		Store: inmem.New(),
	})

	_, err := r.Run(context.Background(), "app", "user-6", "sess-6", "hi")
	assert.Error(t, err)
}

func TestRunner_RunReturnsFinalResponseAndMetrics(t *testing.T) {
	r := runner.New(runner.Config{
		Agent: &scriptedAgent{name: "bot", text: "hello there"},
		Store: inmem.New(),
	})

	res, err := r.Run(context.Background(), "app", "user-1", "sess-1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", res.FinalResponse)
	assert.Equal(t, 1, res.Metrics.Iterations)
	assert.False(t, res.MaxIterationsReached)
}

func TestRunner_RunRejectsEmptyInput(t *testing.T) {
	r := runner.New(runner.Config{
		Agent: &scriptedAgent{name: "bot", text: "hi"},
		Store: inmem.New(),
	})

	_, err := r.Run(context.Background(), "app", "user-1", "sess-1", "")
	assert.Error(t, err)
}

func TestRunner_TimeoutProducesErrorEventThenFails(t *testing.T) {
	r := runner.New(runner.Config{
		Agent:   &scriptedAgent{name: "slow", text: "too late", delay: 50 * time.Millisecond},
		Store:   inmem.New(),
		Timeout: 5 * time.Millisecond,
	})

	res, err := r.Run(context.Background(), "app", "user-2", "sess-2", "hi")
	require.Error(t, err)
	var sawErrorEvent bool
	for _, ev := range res.Events {
		if ev.Kind == event.KindError {
			sawErrorEvent = true
		}
	}
	assert.True(t, sawErrorEvent)
}

func TestRunner_CallbacksObserveEveryEvent(t *testing.T) {
	var kinds []event.Kind
	r := runner.New(runner.Config{
		Agent: &scriptedAgent{name: "bot", text: "hi"},
		Store: inmem.New(),
		Callbacks: []runner.Callback{
			func(ctx context.Context, ev *event.Event) { kinds = append(kinds, ev.Kind) },
			func(ctx context.Context, ev *event.Event) { panic("boom") },
		},
	})

	_, err := r.Run(context.Background(), "app", "user-3", "sess-3", "hi")
	require.NoError(t, err)
	assert.Contains(t, kinds, event.KindAgentStart)
	assert.Contains(t, kinds, event.KindAgentEnd)
}

func TestRunner_RunStreamingDeliversEventsBeforeFinal(t *testing.T) {
	r := runner.New(runner.Config{
		Agent: &scriptedAgent{name: "bot", text: "streamed"},
		Store: inmem.New(),
	})

	events, final := r.RunStreaming(context.Background(), "app", "user-4", "sess-4", "hi")
	var count int
	for range events {
		count++
	}
	res, err := final()
	require.NoError(t, err)
	assert.Equal(t, "streamed", res.FinalResponse)
	assert.True(t, count > 0)
}
