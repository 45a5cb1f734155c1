package simulator

import (
	"math"

	"github.com/chromedp/cdproto/network"
	"github.com/user/loadsim/pkg/graph"
)

// Milestone names a page-load event whose simulated timestamp is
// reported.
type Milestone string

const (
	// MilestoneFirstNetworkByte is the earliest completion of any
	// network node.
	MilestoneFirstNetworkByte Milestone = "firstNetworkByte"
	// MilestoneFirstMeaningfulWork is the completion of the graph's
	// designated milestone node. Without a designation it falls back
	// to the earliest CPU-node completion, then to the earliest
	// document or script fetch, then to MilestoneFirstNetworkByte.
	MilestoneFirstMeaningfulWork Milestone = "firstMeaningfulWork"
	// MilestoneFullySettled is the completion of the last node.
	MilestoneFullySettled Milestone = "fullySettled"
)

// AllMilestones lists every reported milestone in a stable order.
var AllMilestones = []Milestone{
	MilestoneFirstNetworkByte,
	MilestoneFirstMeaningfulWork,
	MilestoneFullySettled,
}

// Milestones maps milestone name to its simulated timestamp in
// milliseconds.
type Milestones map[Milestone]float64

func zeroMilestones() Milestones {
	m := make(Milestones, len(AllMilestones))
	for _, name := range AllMilestones {
		m[name] = 0
	}
	return m
}

// extractMilestones derives the named milestones from per-node
// timings.
func (s *Simulator) extractMilestones(timings map[string]NodeTiming) Milestones {
	m := zeroMilestones()

	firstNetwork := math.Inf(1)
	firstPrimary := math.Inf(1)
	firstCPU := math.Inf(1)
	settled := 0.0
	for id, timing := range timings {
		node, err := s.g.Node(id)
		if err != nil {
			continue
		}
		switch node.Kind {
		case graph.KindNetwork:
			if timing.EndTime < firstNetwork {
				firstNetwork = timing.EndTime
			}
			switch node.Request.ResourceType {
			case network.ResourceTypeDocument, network.ResourceTypeScript:
				if timing.EndTime < firstPrimary {
					firstPrimary = timing.EndTime
				}
			}
		case graph.KindCPU:
			if timing.EndTime < firstCPU {
				firstCPU = timing.EndTime
			}
		}
		if timing.EndTime > settled {
			settled = timing.EndTime
		}
	}
	if !math.IsInf(firstNetwork, 1) {
		m[MilestoneFirstNetworkByte] = firstNetwork
	}
	m[MilestoneFullySettled] = settled

	switch {
	case s.g.MilestoneNodeID() != "":
		if timing, ok := timings[s.g.MilestoneNodeID()]; ok {
			m[MilestoneFirstMeaningfulWork] = timing.EndTime
		}
	case !math.IsInf(firstCPU, 1):
		m[MilestoneFirstMeaningfulWork] = firstCPU
	case !math.IsInf(firstPrimary, 1):
		// Document and script fetches gate rendering and execution;
		// their completion is the closest network-only proxy for
		// meaningful work.
		m[MilestoneFirstMeaningfulWork] = firstPrimary
	default:
		m[MilestoneFirstMeaningfulWork] = m[MilestoneFirstNetworkByte]
	}
	return m
}
