// Package runner implements the session-scoped driver that wraps a single
// root agent: it loads and trims session history, enforces a wall-clock
// timeout and an iteration cap, bridges the agent's event stream to
// registered callbacks, and aggregates execution metrics. Grounded on the
// teacher's Runner responsibilities as described for baseFlow.Run's caller
// (the llm_agent.go reference file) and session lifecycle management
// already established in the session package.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaykit/agentcore/agent"
	"github.com/relaykit/agentcore/composite"
	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/session"
	"github.com/relaykit/agentcore/telemetry"
)

// DefaultTimeout is applied when Config.Timeout is left zero.
const DefaultTimeout = 300 * time.Second

// DefaultMaxIterations is applied when Config.MaxIterations is left zero.
const DefaultMaxIterations = 10

// DefaultMaxHistorySize is applied when Config.MaxHistorySize is left zero.
// Beyond this many events, the oldest are trimmed before building the
// model-visible history view.
const DefaultMaxHistorySize = 200

// ErrMaxIterationsReached is recorded on Result when the iteration cap was
// hit without the agent producing a final response.
var ErrMaxIterationsReached = errors.New("runner: max iterations reached")

// ErrTooManyTransfers is returned when a chain of agent transfers within a
// single invocation exceeds MaxTransferHops, guarding against a transfer
// cycle between misconfigured agents.
var ErrTooManyTransfers = errors.New("runner: too many chained agent transfers")

// MaxTransferHops bounds how many agent-to-agent transfers a single
// invocation may follow before it is treated as a configuration error.
const MaxTransferHops = 10

// Callback observes every event emitted during a run. A panicking callback
// is recovered and logged; it never aborts the run or masks a sibling
// callback's observation.
type Callback func(ctx context.Context, ev *event.Event)

// Config configures a Runner.
type Config struct {
	Agent          agent.Agent
	Store          session.Store
	Timeout        time.Duration
	MaxIterations  int
	MaxHistorySize int
	Callbacks      []Callback
	Metrics        telemetry.Metrics
	Logger         telemetry.Logger
	// Hierarchy validates and resolves agent-transfer edges. Required only
	// when Agent (or one of its descendants reachable via transfer) uses
	// flow.AutoFlow; a transfer requested with no Hierarchy configured
	// surfaces as an Error event and ends the run.
	Hierarchy *composite.Hierarchy
}

// Metrics aggregates the observable cost of one run.
type Metrics struct {
	ExecutionTime time.Duration
	Iterations    int
	TokensUsed    int
	ToolCalls     int
	Errors        int
}

// Result is the outcome of one Runner.Run call.
type Result struct {
	FinalResponse        string
	Events               []*event.Event
	Metrics              Metrics
	MaxIterationsReached bool
}

// Runner drives one root agent across many session-scoped invocations.
type Runner struct {
	cfg Config
}

// New constructs a Runner, defaulting Timeout/MaxIterations/MaxHistorySize
// when left zero.
func New(cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = DefaultMaxHistorySize
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NewNoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNoopMetrics()
	}
	return &Runner{cfg: cfg}
}

// Run drives the configured agent through one invocation to completion and
// returns the aggregated Result. The returned error is non-nil when the run
// ends abnormally: a validation failure, timeout/cancellation, an agent-level
// error, or a failed agent transfer. Events emitted before that point remain
// in Result.Events.
func (r *Runner) Run(ctx context.Context, appName, userID, sessionID, input string) (*Result, error) {
	res, emit := r.start(ctx)
	var runErr error
	for ev, err := range r.stream(ctx, appName, userID, sessionID, input) {
		if err != nil {
			runErr = err
			break
		}
		emit(ev)
	}
	r.finish(res)
	return res, runErr
}

// RunStreaming drives the agent the same way Run does but hands every event
// to the returned channel as it is produced, instead of only invoking
// callbacks. The channel is closed when the invocation ends; call final
// afterward to retrieve the aggregated Result (and any terminal error).
func (r *Runner) RunStreaming(ctx context.Context, appName, userID, sessionID, input string) (events <-chan *event.Event, final func() (*Result, error)) {
	res, emit := r.start(ctx)
	out := make(chan *event.Event)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		var runErr error
		for ev, err := range r.stream(ctx, appName, userID, sessionID, input) {
			if err != nil {
				runErr = err
				break
			}
			emit(ev)
			out <- ev
		}
		r.finish(res)
		errCh <- runErr
	}()

	return out, func() (*Result, error) {
		return res, <-errCh
	}
}

func (r *Runner) start(ctx context.Context) (*Result, func(*event.Event)) {
	res := &Result{}
	started := time.Now()
	emit := func(ev *event.Event) {
		res.Events = append(res.Events, ev)
		r.account(res, ev)
		r.notify(ctx, ev)
		res.Metrics.ExecutionTime = time.Since(started)
	}
	return res, emit
}

func (r *Runner) finish(res *Result) {
	if res.Metrics.Iterations >= r.cfg.MaxIterations {
		last := lastAgentEnd(res.Events)
		if last == nil || last.Content == nil || last.Content.Text() == "" {
			res.MaxIterationsReached = true
			var invocationID string
			if len(res.Events) > 0 {
				invocationID = res.Events[0].InvocationID
			}
			marker := event.New(invocationID, r.cfg.Agent.Name(), event.KindError, "")
			marker.Err = ErrMaxIterationsReached
			res.Events = append(res.Events, marker)
			res.Metrics.Errors++
		}
	}
	if last := lastAgentEnd(res.Events); last != nil && last.Content != nil {
		res.FinalResponse = last.Content.Text()
	}
	r.cfg.Metrics.RecordTimer("runner.execution_time", res.Metrics.ExecutionTime)
	r.cfg.Metrics.IncCounter("runner.iterations", float64(res.Metrics.Iterations))
	r.cfg.Metrics.IncCounter("runner.tool_calls", float64(res.Metrics.ToolCalls))
	r.cfg.Metrics.IncCounter("runner.errors", float64(res.Metrics.Errors))
}

func (r *Runner) account(res *Result, ev *event.Event) {
	switch ev.Kind {
	case event.KindModelRequest:
		res.Metrics.Iterations++
	case event.KindModelResponse:
		res.Metrics.TokensUsed += ev.Usage.TotalTokens
	case event.KindToolCall:
		if ev.Content != nil {
			res.Metrics.ToolCalls += len(ev.Content.FunctionCalls())
		}
	case event.KindError:
		res.Metrics.Errors++
	}
}

func (r *Runner) notify(ctx context.Context, ev *event.Event) {
	for _, cb := range r.cfg.Callbacks {
		r.safeCallback(ctx, cb, ev)
	}
}

func (r *Runner) safeCallback(ctx context.Context, cb Callback, ev *event.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.cfg.Logger.Error(ctx, "runner callback panicked", "panic", rec)
		}
	}()
	cb(ctx, ev)
}

// stream loads the session, builds an InvocationContext, runs the agent
// under a timeout-bound context, and yields every emission. A non-nil error
// from the sequence means the run ended abnormally (validation, timeout, or
// an agent-level error) and no further emissions follow it.
func (r *Runner) stream(ctx context.Context, appName, userID, sessionID, input string) func(yield func(*event.Event, error) bool) {
	return func(yield func(*event.Event, error) bool) {
		if input == "" {
			yield(nil, errors.New("runner: input must not be empty"))
			return
		}

		sess, err := r.cfg.Store.GetSession(ctx, appName, userID, sessionID)
		if errors.Is(err, session.ErrSessionNotFound) {
			sess, err = r.cfg.Store.CreateSession(ctx, appName, userID, sessionID)
		}
		if err != nil {
			yield(nil, fmt.Errorf("runner: loading session: %w", err))
			return
		}

		history := sess.Events
		if len(history) > r.cfg.MaxHistorySize {
			history = history[len(history)-r.cfg.MaxHistorySize:]
		}

		state := make(map[string]any, len(sess.State))
		for k, v := range sess.State {
			state[k] = v
		}

		invocationID := event.NewID()
		userContent := &event.Content{Role: event.RoleUser, Parts: []event.Part{event.Text{Text: input}}}

		ic := agent.NewInvocationContext(invocationID, r.cfg.Agent.Name())
		ic.AppName = appName
		ic.UserID = userID
		ic.SessionID = sessionID
		ic.History = event.BuildHistory(history, ic.Branch)
		ic.UserContent = userContent
		ic.StateSnapshot = state
		ic.Store = r.cfg.Store
		ic.Logger = r.cfg.Logger
		ic.Metrics = r.cfg.Metrics

		runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		current := r.cfg.Agent
		for hop := 0; ; hop++ {
			if hop > MaxTransferHops {
				yield(nil, fmt.Errorf("%w: exceeded %d hops", ErrTooManyTransfers, MaxTransferHops))
				return
			}

			var transferTo string
			for em := range current.Run(runCtx, ic) {
				if em.Err != nil {
					if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
						timeoutEv := event.New(ic.InvocationID, current.Name(), event.KindError, ic.Branch)
						timeoutEv.Err = context.DeadlineExceeded
						yield(timeoutEv, nil)
						yield(nil, fmt.Errorf("runner: timeout after %s: %w", r.cfg.Timeout, context.DeadlineExceeded))
						return
					}
					yield(nil, em.Err)
					return
				}
				if em.Event != nil && em.Event.Kind == event.KindAgentEnd && em.Event.Actions != nil {
					transferTo = em.Event.Actions.TransferToAgent
				}
				if !yield(em.Event, nil) {
					return
				}
			}

			if transferTo == "" {
				return
			}
			if r.cfg.Hierarchy == nil {
				errEv := event.New(ic.InvocationID, current.Name(), event.KindError, ic.Branch)
				errEv.Err = fmt.Errorf("runner: agent %q requested transfer to %q but no Hierarchy is configured", current.Name(), transferTo)
				yield(errEv, nil)
				yield(nil, errEv.Err)
				return
			}
			next, err := r.cfg.Hierarchy.Resolve(current.Name(), transferTo)
			if err != nil {
				errEv := event.New(ic.InvocationID, current.Name(), event.KindError, ic.Branch)
				errEv.Err = fmt.Errorf("runner: resolving transfer: %w", err)
				yield(errEv, nil)
				yield(nil, errEv.Err)
				return
			}

			sess, err = r.cfg.Store.GetSession(ctx, appName, userID, sessionID)
			if err != nil {
				yield(nil, fmt.Errorf("runner: reloading session after transfer: %w", err))
				return
			}

			childIC := ic.Child(transferTo)
			childIC.UserContent = userContent
			childIC.History = event.BuildHistory(sess.Events, childIC.Branch)
			ic = childIC
			current = next
		}
	}
}

func lastAgentEnd(events []*event.Event) *event.Event {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == event.KindAgentEnd {
			return events[i]
		}
	}
	return nil
}
