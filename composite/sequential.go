package composite

import (
	"context"

	"github.com/relaykit/agentcore/agent"
	"github.com/relaykit/agentcore/event"
)

// SequentialConfig configures a Sequential composite.
type SequentialConfig struct {
	Name        string
	Description string
	Children    []agent.Agent
	// PassResults, when true (the default), feeds child k's final response
	// as child k+1's input message. When false, every child receives the
	// original message.
	PassResults *bool
	// Result selects how the composite's own final response is derived from
	// its children's final responses. Defaults to ResultConcat.
	Result ResultMode
}

// Sequential runs its children in order, optionally threading each child's
// final response into the next child's input.
type Sequential struct {
	cfg SequentialConfig
}

// NewSequential constructs a Sequential composite.
func NewSequential(cfg SequentialConfig) *Sequential {
	if cfg.Result == "" {
		cfg.Result = ResultConcat
	}
	return &Sequential{cfg: cfg}
}

func (s *Sequential) Name() string        { return s.cfg.Name }
func (s *Sequential) Description() string { return s.cfg.Description }

func (s *Sequential) passResults() bool {
	return s.cfg.PassResults == nil || *s.cfg.PassResults
}

func (s *Sequential) Run(ctx context.Context, ic *agent.InvocationContext) <-chan agent.Emission {
	out := make(chan agent.Emission)
	go s.run(ctx, ic, out)
	return out
}

func (s *Sequential) run(ctx context.Context, ic *agent.InvocationContext, out chan<- agent.Emission) {
	defer close(out)
	out <- agent.Emission{Event: agentStart(ic.InvocationID, s.cfg.Name, ic.Branch, ic.UserContent)}

	currentInput := ic.UserContent
	var responses []event.Content

	for _, child := range s.cfg.Children {
		if ic.Ended() {
			break
		}
		childIC := ic.Child(child.Name())
		childIC.UserContent = currentInput

		var lastResp *event.Content
		var failed bool
		for em := range child.Run(ctx, childIC) {
			if em.Err != nil {
				out <- em
				failed = true
				continue
			}
			out <- em
			if em.Event != nil && em.Event.Kind == event.KindAgentEnd {
				lastResp = em.Event.Content
			}
		}
		if failed {
			break
		}
		if lastResp != nil {
			responses = append(responses, *lastResp)
		}
		if s.passResults() {
			currentInput = lastResp
		}
	}

	final := combine(s.cfg.Result, event.RoleAssistant, responses)
	out <- agent.Emission{Event: agentEnd(ic.InvocationID, s.cfg.Name, ic.Branch, final)}
}

var _ agent.Agent = (*Sequential)(nil)
