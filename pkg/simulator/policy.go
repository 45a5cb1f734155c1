package simulator

import "sort"

// Policy selects how the scheduler breaks ties when ready nodes
// outnumber free resources, and which reuse assumption the connection
// pool runs under. Both policies share all other mechanics, so the two
// runs bound the real load time from below and above.
type Policy int

const (
	// PolicyOptimistic approximates best-case parallelism: it waives
	// observed connection non-reuse and starts the nodes that unblock
	// the most downstream work first.
	PolicyOptimistic Policy = iota
	// PolicyPessimistic serializes more aggressively: it honors the
	// capture's reuse pattern and starts nodes in capture order.
	PolicyPessimistic
)

// String returns the string representation of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyOptimistic:
		return "optimistic"
	case PolicyPessimistic:
		return "pessimistic"
	default:
		return "unknown"
	}
}

// ignoreObservedReuse reports whether pool acquisition should waive
// the warmth/reuse match.
func (p Policy) ignoreObservedReuse() bool {
	return p == PolicyOptimistic
}

// orderQueued sorts the queued node ids into start-attempt order.
//
// Pessimistic runs use plain id order, which is capture order for ids
// assigned by the capture pipeline. Optimistic runs prefer nodes with
// more downstream work, then shorter estimated cost, then id.
func (p Policy) orderQueued(ids []string, descendants map[string]int, estimatedCost map[string]float64) {
	if p == PolicyPessimistic {
		sort.Strings(ids)
		return
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if descendants[a] != descendants[b] {
			return descendants[a] > descendants[b]
		}
		if estimatedCost[a] != estimatedCost[b] {
			return estimatedCost[a] < estimatedCost[b]
		}
		return a < b
	})
}
