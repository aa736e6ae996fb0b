package composite

import (
	"fmt"

	"github.com/relaykit/agentcore/agent"
)

// Node describes one agent's position in the tree for transfer-edge
// validation: its parent (empty for the root) and whether it opts out of
// being a peer-transfer target.
type Node struct {
	Agent                agent.Agent
	Parent               string
	DisallowPeerTransfer bool
}

// Hierarchy is the full agent tree a Runner consults to validate and
// resolve transfer requests. Built by registering every agent in the tree,
// composite and leaf alike.
type Hierarchy struct {
	nodes map[string]Node
}

// NewHierarchy builds a Hierarchy from every node in the tree.
func NewHierarchy(nodes ...Node) *Hierarchy {
	h := &Hierarchy{nodes: make(map[string]Node, len(nodes))}
	for _, n := range nodes {
		h.nodes[n.Agent.Name()] = n
	}
	return h
}

// Resolve validates the transfer edge from -> to and returns the target
// agent. Allowed edges are parent->child, child->parent, and
// sibling->sibling when the shared parent is an LLM agent and neither
// sibling disallows peer transfer.
func (h *Hierarchy) Resolve(from, to string) (agent.Agent, error) {
	fromNode, ok := h.nodes[from]
	if !ok {
		return nil, fmt.Errorf("composite: unknown transfer source %q", from)
	}
	toNode, ok := h.nodes[to]
	if !ok {
		return nil, fmt.Errorf("composite: unknown transfer target %q", to)
	}

	if toNode.Parent == from {
		return toNode.Agent, nil
	}
	if fromNode.Parent == to {
		return toNode.Agent, nil
	}
	if fromNode.Parent != "" && fromNode.Parent == toNode.Parent {
		parent, ok := h.nodes[fromNode.Parent]
		if ok && isLlmAgentNode(parent) && !fromNode.DisallowPeerTransfer && !toNode.DisallowPeerTransfer {
			return toNode.Agent, nil
		}
		return nil, fmt.Errorf("composite: sibling transfer %q -> %q not permitted: shared parent %q is not an LLM agent or a sibling disallows peer transfer", from, to, fromNode.Parent)
	}
	return nil, fmt.Errorf("composite: transfer %q -> %q is not a parent, child, or permitted sibling edge", from, to)
}

func isLlmAgentNode(n Node) bool {
	_, ok := n.Agent.(*agent.LlmAgent)
	return ok
}
