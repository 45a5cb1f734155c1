// Package simulator replays a dependency graph of network requests and
// CPU tasks through a discrete-event simulation under synthetic
// network and CPU conditions, producing per-node timings and
// page-load milestone estimates.
package simulator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/user/loadsim/pkg/graph"
	"github.com/user/loadsim/pkg/ports"
	"github.com/user/loadsim/pkg/simnet"
)

var (
	// ErrMissingParameter is returned by New when a required
	// environment parameter (rtt, throughput) is absent.
	ErrMissingParameter = errors.New("missing required simulation parameter")

	// ErrStalled is returned when no in-progress node exists but
	// queued nodes cannot start. With a validated graph this only
	// happens when a capture's reuse pattern is unsatisfiable.
	ErrStalled = errors.New("simulation stalled: no node can make progress")
)

// maxIterations bounds the event loop against modeling bugs.
const maxIterations = 100000

// Options are the environment parameters of one simulation run.
type Options struct {
	// RTTMs is the base round-trip time in milliseconds. Required.
	RTTMs float64

	// ThroughputBytesPerSec is the link capacity. Required.
	ThroughputBytesPerSec float64

	// CPUSlowdownMultiplier scales CPU task durations. Zero means 1
	// (no slowdown).
	CPUSlowdownMultiplier float64

	// AdditionalRTTByOrigin adds origin-specific latency.
	AdditionalRTTByOrigin map[string]float64

	// ServerResponseTimeByOrigin sets per-origin server latency in
	// milliseconds.
	ServerResponseTimeByOrigin map[string]float64

	// ConnectionsPerOrigin overrides the per-origin connection limit
	// for non-H2 origins. Zero means the default of 6.
	ConnectionsPerOrigin int

	// Policy selects the scheduling policy. The zero value is
	// PolicyOptimistic.
	Policy Policy

	// Logger receives debug traces of the event loop. Nil means no
	// logging.
	Logger ports.Logger
}

// Result is the full output of one run.
type Result struct {
	// NodeTimings maps node id to its start and end time.
	NodeTimings map[string]NodeTiming

	// Milestones holds the named milestone timestamps.
	Milestones Milestones

	// TotalTimeMs is the simulated time at which the last node
	// completed.
	TotalTimeMs float64
}

// Simulator schedules one graph under one set of environment
// parameters and one policy. A Simulator may be reused for repeated
// runs; every Run constructs fresh pool, DNS, and timing state, so
// runs never corrupt each other.
type Simulator struct {
	g    *graph.Graph
	opts Options

	cpuMultiplier float64
	descendants   map[string]int
	logger        ports.Logger
}

// New validates the environment parameters and prepares a simulator
// for the graph.
func New(g *graph.Graph, opts Options) (*Simulator, error) {
	if opts.RTTMs <= 0 {
		return nil, fmt.Errorf("%w: rtt", ErrMissingParameter)
	}
	if opts.ThroughputBytesPerSec <= 0 {
		return nil, fmt.Errorf("%w: throughput", ErrMissingParameter)
	}
	cpuMultiplier := opts.CPUSlowdownMultiplier
	if cpuMultiplier <= 0 {
		cpuMultiplier = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Simulator{
		g:             g,
		opts:          opts,
		cpuMultiplier: cpuMultiplier,
		descendants:   g.DescendantCount(),
		logger:        logger.WithComponent("simulator"),
	}, nil
}

// run bundles the per-run mutable state: the clock, the node state
// machine, and the network resources. Each Run call owns one.
type run struct {
	clock float64

	pool *simnet.ConnectionPool
	dns  *simnet.DNSCache

	states     map[string]nodeState
	progresses map[string]*progress
	completed  map[string]struct{}
	timings    map[string]NodeTiming

	cpuBusy bool
}

// Run executes the simulation to completion and returns per-node
// timings and milestones. An empty graph yields a zero-valued result.
func (s *Simulator) Run() (*Result, error) {
	if s.g.Len() == 0 {
		return &Result{
			NodeTimings: map[string]NodeTiming{},
			Milestones:  zeroMilestones(),
		}, nil
	}

	r := s.newRun()
	s.logger.Debug("Starting %s run over %d nodes", s.opts.Policy, s.g.Len())

	for iteration := 0; ; iteration++ {
		if iteration > maxIterations {
			return nil, fmt.Errorf("simulation exceeded %d iterations", maxIterations)
		}

		queued := s.queuedIDs(r)
		if len(queued) == 0 && !s.anyInProgress(r) {
			break
		}

		for _, id := range queued {
			s.startNodeIfPossible(r, id)
		}
		if !s.anyInProgress(r) {
			return nil, ErrStalled
		}

		period, err := s.nextCompletionPeriod(r)
		if err != nil {
			return nil, err
		}
		r.clock += period
		s.logger.Debug("Clock advanced %.3f ms to %.3f ms", period, r.clock)

		for _, id := range s.inProgressIDs(r) {
			if err := s.updateProgress(r, id, period); err != nil {
				return nil, err
			}
		}
	}

	result := &Result{
		NodeTimings: r.timings,
		TotalTimeMs: r.clock,
	}
	result.Milestones = s.extractMilestones(result.NodeTimings)
	s.logger.Debug("Run finished at %.3f ms", r.clock)
	return result, nil
}

func (s *Simulator) newRun() *run {
	var requests []*graph.NetworkRequest
	for _, id := range s.g.NodeIDs() {
		node, _ := s.g.Node(id)
		if node.Kind == graph.KindNetwork {
			requests = append(requests, node.Request)
		}
	}

	r := &run{
		pool: simnet.NewConnectionPool(requests, simnet.PoolOptions{
			RTT:                        s.opts.RTTMs,
			ThroughputBytesPerSec:      s.opts.ThroughputBytesPerSec,
			AdditionalRTTByOrigin:      s.opts.AdditionalRTTByOrigin,
			ServerResponseTimeByOrigin: s.opts.ServerResponseTimeByOrigin,
			ConnectionsPerOrigin:       s.opts.ConnectionsPerOrigin,
		}),
		dns:        simnet.NewDNSCache(s.opts.RTTMs),
		states:     make(map[string]nodeState, s.g.Len()),
		progresses: make(map[string]*progress),
		completed:  make(map[string]struct{}),
		timings:    make(map[string]NodeTiming, s.g.Len()),
	}

	for _, id := range s.g.NodeIDs() {
		r.states[id] = stateNotReady
	}
	for _, id := range s.g.RootIDs() {
		r.states[id] = stateQueued
		r.progresses[id] = &progress{queuedAt: 0}
	}
	return r
}

// queuedIDs returns the queued node ids in the policy's start order.
func (s *Simulator) queuedIDs(r *run) []string {
	var ids []string
	for id, state := range r.states {
		if state == stateQueued {
			ids = append(ids, id)
		}
	}
	costs := make(map[string]float64, len(ids))
	for _, id := range ids {
		costs[id] = s.queuedCost(id)
	}
	s.opts.Policy.orderQueued(ids, s.descendants, costs)
	return ids
}

// queuedCost is a cheap duration proxy used only for optimistic
// tie-breaking: scaled task duration for CPU nodes, wire time at full
// throughput for network nodes.
func (s *Simulator) queuedCost(id string) float64 {
	node, _ := s.g.Node(id)
	switch node.Kind {
	case graph.KindCPU:
		return node.Task.DurationMs * s.cpuMultiplier
	default:
		return float64(node.Request.TransferSize) / s.opts.ThroughputBytesPerSec * 1000
	}
}

func (s *Simulator) anyInProgress(r *run) bool {
	for _, state := range r.states {
		if state == stateInProgress {
			return true
		}
	}
	return false
}

func (s *Simulator) inProgressIDs(r *run) []string {
	var ids []string
	for id, state := range r.states {
		if state == stateInProgress {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// startNodeIfPossible moves a queued node to in-progress when its
// resource is free: a connection for network nodes, the single
// simulated CPU thread for CPU nodes. A node that cannot get its
// resource stays queued and is retried at the next event.
func (s *Simulator) startNodeIfPossible(r *run, id string) {
	node, err := s.g.Node(id)
	if err != nil {
		return
	}
	p := r.progresses[id]

	switch node.Kind {
	case graph.KindCPU:
		if r.cpuBusy {
			return
		}
		r.cpuBusy = true
	case graph.KindNetwork:
		conn := r.pool.Acquire(node.Request, simnet.AcquireOptions{
			IgnoreObservedReuse: s.opts.Policy.ignoreObservedReuse(),
		})
		if conn == nil {
			return
		}
		p.dnsDelay = r.dns.Resolve(node.Request.Host(), r.clock, true)
	}

	r.states[id] = stateInProgress
	p.startTime = r.clock
	s.logger.Debug("Node %s (%s) started at %.3f ms", id, node.Kind, r.clock)
}

// nextCompletionPeriod returns the simulated time until the earliest
// in-progress node would finish.
func (s *Simulator) nextCompletionPeriod(r *run) (float64, error) {
	minimum := math.Inf(1)
	for _, id := range s.inProgressIDs(r) {
		remaining, err := s.estimateTimeRemaining(r, id)
		if err != nil {
			return 0, err
		}
		if remaining < minimum {
			minimum = remaining
		}
	}
	if math.IsInf(minimum, 1) {
		return 0, ErrStalled
	}
	return minimum, nil
}

func (s *Simulator) estimateTimeRemaining(r *run, id string) (float64, error) {
	node, err := s.g.Node(id)
	if err != nil {
		return 0, err
	}
	p := r.progresses[id]

	switch node.Kind {
	case graph.KindCPU:
		total := node.Task.DurationMs * s.cpuMultiplier
		return total - p.timeElapsed, nil
	default:
		conn, err := r.pool.ActiveConnection(node.Request)
		if err != nil {
			return 0, err
		}
		calc := conn.SimulateDownloadUntil(node.Request.TransferSize-p.bytesDownloaded, simnet.DownloadOptions{
			TimeAlreadyElapsed: p.timeElapsed,
			DNSDelay:           p.dnsDelay,
		})
		return calc.TimeElapsed + p.timeElapsedOvershoot, nil
	}
}

// updateProgress advances one in-progress node by the event period,
// completing it when its remaining work fits inside the period.
func (s *Simulator) updateProgress(r *run, id string, period float64) error {
	node, err := s.g.Node(id)
	if err != nil {
		return err
	}
	p := r.progresses[id]

	switch node.Kind {
	case graph.KindCPU:
		total := node.Task.DurationMs * s.cpuMultiplier
		if p.timeElapsed+period >= total {
			r.cpuBusy = false
			s.completeNode(r, node)
		} else {
			p.timeElapsed += period
		}
	default:
		conn, err := r.pool.ActiveConnection(node.Request)
		if err != nil {
			return err
		}
		remaining := node.Request.TransferSize - p.bytesDownloaded
		calc := conn.SimulateDownloadUntil(remaining, simnet.DownloadOptions{
			TimeAlreadyElapsed:  p.timeElapsed,
			MaximumTimeToElapse: period - p.timeElapsedOvershoot,
			DNSDelay:            p.dnsDelay,
		})
		conn.SetCongestionWindow(calc.CongestionWindow)

		// Bytes alone are not enough: a small response still has to
		// wait out its time to first byte.
		finished := calc.BytesDownloaded >= remaining &&
			calc.TimeElapsed <= period-p.timeElapsedOvershoot+1e-9
		if finished {
			conn.SetWarmed(true)
			r.pool.Release(node.Request)
			s.completeNode(r, node)
		} else {
			p.timeElapsed += calc.TimeElapsed
			p.timeElapsedOvershoot += calc.TimeElapsed - period
			p.bytesDownloaded += calc.BytesDownloaded
		}
	}
	return nil
}

// completeNode records the node's timing, marks it complete, and
// queues any children whose parents are now all complete.
func (s *Simulator) completeNode(r *run, node *graph.Node) {
	p := r.progresses[node.ID]
	r.states[node.ID] = stateComplete
	r.completed[node.ID] = struct{}{}
	r.timings[node.ID] = NodeTiming{StartTime: p.startTime, EndTime: r.clock}
	s.logger.Debug("Node %s (%s) completed at %.3f ms", node.ID, node.Kind, r.clock)

	for _, childID := range node.ChildIDs() {
		if r.states[childID] != stateNotReady {
			continue
		}
		child, err := s.g.Node(childID)
		if err != nil {
			continue
		}
		if child.IsReadyToStart(r.completed) {
			r.states[childID] = stateQueued
			r.progresses[childID] = &progress{queuedAt: r.clock}
		}
	}
}
