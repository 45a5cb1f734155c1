package graph

import (
	"strings"

	"github.com/chromedp/cdproto/network"
)

// NodeKind discriminates the two node variants.
type NodeKind int

const (
	// KindNetwork marks a node that replays a captured network request.
	// Network nodes consume a connection slot while in progress.
	KindNetwork NodeKind = iota
	// KindCPU marks a node that replays a captured script-execution span.
	// CPU nodes consume the single simulated CPU thread.
	KindCPU
)

// String returns the string representation of the node kind.
func (k NodeKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindCPU:
		return "cpu"
	default:
		return "unknown"
	}
}

// NetworkRequest is one normalized network record from a capture.
// Field vocabulary follows the DevTools protocol types the capture
// pipeline emits (cdproto/network).
type NetworkRequest struct {
	RequestID string

	URL string

	// Origin is scheme://host:port, the connection-sharing boundary.
	Origin string

	// Protocol is the negotiated protocol, e.g. "h2" or "http/1.1".
	Protocol string

	// TransferSize is the number of bytes that crossed the wire.
	TransferSize int64

	ResourceType network.ResourceType

	// IsSecure reports whether the request used a TLS scheme
	// (https or wss).
	IsSecure bool

	// ObservedReused reports whether the capture saw this request ride
	// an already-open connection.
	ObservedReused bool

	// Timing carries the capture's raw timing breakdown when available.
	// The simulator does not consume it, but audits reading per-node
	// results often want it alongside.
	Timing *network.ResourceTiming
}

// IsH2 reports whether the request was served over HTTP/2.
func (r *NetworkRequest) IsH2() bool {
	return r.Protocol == "h2"
}

// Host returns the hostname portion of the request's origin, the key
// DNS resolution is cached under.
func (r *NetworkRequest) Host() string {
	host := r.Origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

// CPUTask is one normalized script-execution span from a capture.
type CPUTask struct {
	// DurationMs is the span length in original (unthrottled) time.
	DurationMs float64
}

// Node is a unit of work in the dependency graph: either a network
// request or a CPU task, tagged by Kind. Structure (payload, parents,
// children) is immutable after Build; all per-run mutable state lives
// in the simulator's timing records, keyed by node id, so concurrent
// runs over one graph cannot corrupt each other.
type Node struct {
	ID   string
	Kind NodeKind

	// Request is set when Kind is KindNetwork.
	Request *NetworkRequest
	// Task is set when Kind is KindCPU.
	Task *CPUTask

	parents  map[string]struct{}
	children map[string]struct{}
}

// NewNetworkNode creates a network node wrapping one captured request.
func NewNetworkNode(id string, req *NetworkRequest) *Node {
	return &Node{
		ID:       id,
		Kind:     KindNetwork,
		Request:  req,
		parents:  make(map[string]struct{}),
		children: make(map[string]struct{}),
	}
}

// NewCPUNode creates a CPU node wrapping one captured execution span.
func NewCPUNode(id string, task *CPUTask) *Node {
	return &Node{
		ID:       id,
		Kind:     KindCPU,
		Task:     task,
		parents:  make(map[string]struct{}),
		children: make(map[string]struct{}),
	}
}

// ParentIDs returns the ids of the node's dependencies in sorted order.
func (n *Node) ParentIDs() []string {
	return sortedKeys(n.parents)
}

// ChildIDs returns the ids of the node's dependents in sorted order.
func (n *Node) ChildIDs() []string {
	return sortedKeys(n.children)
}

// HasParents reports whether the node depends on any other node.
func (n *Node) HasParents() bool {
	return len(n.parents) > 0
}

// IsReadyToStart reports whether every parent id is in completed.
func (n *Node) IsReadyToStart(completed map[string]struct{}) bool {
	for id := range n.parents {
		if _, ok := completed[id]; !ok {
			return false
		}
	}
	return true
}
