package composite

import (
	"context"

	"github.com/relaykit/agentcore/agent"
	"github.com/relaykit/agentcore/event"
)

// LoopCondition decides whether another iteration should run, given the
// 1-based iteration number about to start and the previous iteration's
// final response (nil on the first iteration).
type LoopCondition func(iteration int, lastResponse *event.Content, ic agent.ReadonlyContext) bool

// LoopUpdateMessage computes the input message for the next iteration from
// the previous iteration's final response. When nil, the original message
// is reused unchanged on every iteration.
type LoopUpdateMessage func(iteration int, lastResponse *event.Content, original *event.Content) *event.Content

// LoopConfig configures a Loop composite.
type LoopConfig struct {
	Name          string
	Description   string
	Child         agent.Agent
	MaxIterations int
	Condition     LoopCondition
	UpdateMessage LoopUpdateMessage
}

// Loop reruns its child up to MaxIterations times, consulting Condition
// before each iteration and UpdateMessage between iterations. A child
// AgentEnd event that sets Actions.Escalate ends the loop early.
type Loop struct {
	cfg LoopConfig
}

// NewLoop constructs a Loop composite.
func NewLoop(cfg LoopConfig) *Loop {
	return &Loop{cfg: cfg}
}

func (l *Loop) Name() string        { return l.cfg.Name }
func (l *Loop) Description() string { return l.cfg.Description }

func (l *Loop) Run(ctx context.Context, ic *agent.InvocationContext) <-chan agent.Emission {
	out := make(chan agent.Emission)
	go l.run(ctx, ic, out)
	return out
}

func (l *Loop) run(ctx context.Context, ic *agent.InvocationContext, out chan<- agent.Emission) {
	defer close(out)
	out <- agent.Emission{Event: agentStart(ic.InvocationID, l.cfg.Name, ic.Branch, ic.UserContent)}

	original := ic.UserContent
	currentInput := original
	var lastResponse *event.Content

	for i := 1; l.cfg.MaxIterations <= 0 || i <= l.cfg.MaxIterations; i++ {
		if ic.Ended() {
			break
		}
		if l.cfg.Condition != nil && !l.cfg.Condition(i, lastResponse, ic.Readonly()) {
			break
		}

		childIC := ic.Child(l.cfg.Child.Name())
		childIC.UserContent = currentInput

		var escalate bool
		var failed bool
		for em := range l.cfg.Child.Run(ctx, childIC) {
			if em.Err != nil {
				out <- em
				failed = true
				continue
			}
			out <- em
			if em.Event != nil && em.Event.Kind == event.KindAgentEnd {
				lastResponse = em.Event.Content
				if em.Event.Actions != nil && em.Event.Actions.Escalate {
					escalate = true
				}
			}
		}
		if failed || escalate {
			break
		}

		if l.cfg.UpdateMessage != nil {
			currentInput = l.cfg.UpdateMessage(i, lastResponse, original)
		} else {
			currentInput = original
		}
	}

	out <- agent.Emission{Event: agentEnd(ic.InvocationID, l.cfg.Name, ic.Branch, lastResponse)}
}

var _ agent.Agent = (*Loop)(nil)
