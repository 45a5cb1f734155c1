// Package graph models the causal dependency structure of a recorded
// page load: a DAG of network-request and CPU-task nodes whose edges
// mean "the child cannot start before the parent completes".
package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Structural errors reported by Build. They indicate a bug in the
// upstream graph builder, not a runtime condition to retry.
var (
	// ErrCycle is returned when the edges contain a dependency cycle.
	ErrCycle = errors.New("dependency graph contains a cycle")
	// ErrUnknownNode is returned when an edge or lookup references a
	// node id that was never added.
	ErrUnknownNode = errors.New("unknown node id")
	// ErrDuplicateNode is returned when two nodes share an id.
	ErrDuplicateNode = errors.New("duplicate node id")
)

// Edge expresses that To cannot start until From has completed.
type Edge struct {
	From string
	To   string
}

// Graph is an immutable DAG of nodes. Construction validates the
// structure once; after Build succeeds the graph is safe to share
// across concurrent simulation runs.
type Graph struct {
	nodes map[string]*Node

	// roots are node ids with no incoming edges, sorted.
	roots []string

	// milestoneNodeID designates the node whose completion marks
	// "first meaningful work". Empty means no designation.
	milestoneNodeID string
}

// Option configures graph construction.
type Option func(*Graph)

// WithMilestoneNode designates the node whose end time defines the
// first-meaningful-work milestone.
func WithMilestoneNode(id string) Option {
	return func(g *Graph) {
		g.milestoneNodeID = id
	}
}

// Build assembles and validates a graph from nodes and edges. It
// returns a structural error if an id is duplicated, an edge references
// an unknown node, a node is unreachable from every root, or the edges
// form a cycle.
func Build(nodes []*Node, edges []Edge, opts ...Option) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node, len(nodes))}

	for _, node := range nodes {
		if _, ok := g.nodes[node.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, node.ID)
		}
		g.nodes[node.ID] = node
	}

	for _, edge := range edges {
		from, ok := g.nodes[edge.From]
		if !ok {
			return nil, fmt.Errorf("edge %q -> %q: %w: %q", edge.From, edge.To, ErrUnknownNode, edge.From)
		}
		to, ok := g.nodes[edge.To]
		if !ok {
			return nil, fmt.Errorf("edge %q -> %q: %w: %q", edge.From, edge.To, ErrUnknownNode, edge.To)
		}
		from.children[to.ID] = struct{}{}
		to.parents[from.ID] = struct{}{}
	}

	for _, opt := range opts {
		opt(g)
	}
	if g.milestoneNodeID != "" {
		if _, ok := g.nodes[g.milestoneNodeID]; !ok {
			return nil, fmt.Errorf("milestone node: %w: %q", ErrUnknownNode, g.milestoneNodeID)
		}
	}

	for id, node := range g.nodes {
		if !node.HasParents() {
			g.roots = append(g.roots, id)
		}
	}
	sort.Strings(g.roots)

	if len(g.nodes) > 0 && len(g.roots) == 0 {
		// Every node has a parent, so some subset must loop.
		return nil, ErrCycle
	}
	if err := g.validateAcyclicAndConnected(); err != nil {
		return nil, err
	}
	return g, nil
}

// validateAcyclicAndConnected runs Kahn's algorithm from the roots.
// Any node left unprocessed either sits on a cycle or is unreachable.
func (g *Graph) validateAcyclicAndConnected() error {
	indegree := make(map[string]int, len(g.nodes))
	for id, node := range g.nodes {
		indegree[id] = len(node.parents)
	}

	queue := append([]string(nil), g.roots...)
	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, child := range g.nodes[id].ChildIDs() {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if processed != len(g.nodes) {
		return ErrCycle
	}
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, error) {
	node, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	return node, nil
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// RootIDs returns the ids of all nodes with no dependencies, sorted.
func (g *Graph) RootIDs() []string {
	return append([]string(nil), g.roots...)
}

// MilestoneNodeID returns the designated first-meaningful-work node id,
// or "" when none was designated.
func (g *Graph) MilestoneNodeID() string {
	return g.milestoneNodeID
}

// NodeIDs returns every node id, sorted. Sorted iteration keeps
// simulation runs deterministic.
func (g *Graph) NodeIDs() []string {
	return sortedKeys(g.nodes)
}

// DescendantCount returns, per node id, how many distinct nodes are
// reachable through child edges. The optimistic scheduling policy uses
// it to prefer nodes that unblock the most downstream work.
func (g *Graph) DescendantCount() map[string]int {
	counts := make(map[string]int, len(g.nodes))
	for _, id := range g.NodeIDs() {
		counts[id] = len(g.descendants(id, make(map[string]struct{})))
	}
	return counts
}

func (g *Graph) descendants(id string, seen map[string]struct{}) map[string]struct{} {
	for _, child := range g.nodes[id].ChildIDs() {
		if _, ok := seen[child]; ok {
			continue
		}
		seen[child] = struct{}{}
		g.descendants(child, seen)
	}
	return seen
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
