package composite

import (
	"context"
	"sync"

	"github.com/relaykit/agentcore/agent"
	"github.com/relaykit/agentcore/event"
)

// ParallelConfig configures a Parallel composite.
type ParallelConfig struct {
	Name        string
	Description string
	Children    []agent.Agent
	// WaitForAll, when true (the default), gathers every child's events and
	// emits them in child order only once all children finish. When false,
	// events stream out in arrival order as each child produces them.
	WaitForAll *bool
	// Result selects how the composite's own final response is derived from
	// its successful children's final responses, always in child order
	// regardless of WaitForAll. Defaults to ResultConcat.
	Result ResultMode
}

// Parallel runs its children concurrently. A failing child surfaces an
// Error emission but never cancels its siblings.
type Parallel struct {
	cfg ParallelConfig
}

// NewParallel constructs a Parallel composite.
func NewParallel(cfg ParallelConfig) *Parallel {
	if cfg.Result == "" {
		cfg.Result = ResultConcat
	}
	return &Parallel{cfg: cfg}
}

func (p *Parallel) Name() string        { return p.cfg.Name }
func (p *Parallel) Description() string { return p.cfg.Description }

func (p *Parallel) waitForAll() bool {
	return p.cfg.WaitForAll == nil || *p.cfg.WaitForAll
}

func (p *Parallel) Run(ctx context.Context, ic *agent.InvocationContext) <-chan agent.Emission {
	out := make(chan agent.Emission)
	go p.run(ctx, ic, out)
	return out
}

func (p *Parallel) run(ctx context.Context, ic *agent.InvocationContext, out chan<- agent.Emission) {
	defer close(out)
	out <- agent.Emission{Event: agentStart(ic.InvocationID, p.cfg.Name, ic.Branch, ic.UserContent)}

	responses := make([]*event.Content, len(p.cfg.Children))

	if p.waitForAll() {
		var wg sync.WaitGroup
		buffered := make([][]agent.Emission, len(p.cfg.Children))
		wg.Add(len(p.cfg.Children))
		for i, child := range p.cfg.Children {
			go func(i int, child agent.Agent) {
				defer wg.Done()
				childIC := ic.Child(child.Name())
				childIC.UserContent = ic.UserContent
				for em := range child.Run(ctx, childIC) {
					buffered[i] = append(buffered[i], em)
					if em.Err == nil && em.Event != nil && em.Event.Kind == event.KindAgentEnd {
						responses[i] = em.Event.Content
					}
				}
			}(i, child)
		}
		wg.Wait()
		for _, ems := range buffered {
			for _, em := range ems {
				out <- em
			}
		}
	} else {
		var wg sync.WaitGroup
		results := make(chan agent.Emission)
		wg.Add(len(p.cfg.Children))
		for i, child := range p.cfg.Children {
			go func(i int, child agent.Agent) {
				defer wg.Done()
				childIC := ic.Child(child.Name())
				childIC.UserContent = ic.UserContent
				for em := range child.Run(ctx, childIC) {
					if em.Err == nil && em.Event != nil && em.Event.Kind == event.KindAgentEnd {
						responses[i] = em.Event.Content
					}
					results <- em
				}
			}(i, child)
		}
		go func() {
			wg.Wait()
			close(results)
		}()
		for em := range results {
			out <- em
		}
	}

	var successful []event.Content
	for _, r := range responses {
		if r != nil {
			successful = append(successful, *r)
		}
	}
	final := combine(p.cfg.Result, event.RoleAssistant, successful)
	out <- agent.Emission{Event: agentEnd(ic.InvocationID, p.cfg.Name, ic.Branch, final)}
}

var _ agent.Agent = (*Parallel)(nil)
