package simulator

// NodeTiming is the per-node output of one simulation run: when the
// node started executing and when it completed, in simulated
// milliseconds. Timings live in the run's result, keyed by node id,
// never on the shared graph.
type NodeTiming struct {
	StartTime float64
	EndTime   float64
}

// nodeState is the per-node scheduling state within one run.
type nodeState int

const (
	stateNotReady nodeState = iota
	stateQueued
	stateInProgress
	stateComplete
)

// progress tracks an in-progress node between events. Download
// stepping moves in whole round trips, so a step can model slightly
// more time than the event period it was given; the excess carries in
// timeElapsedOvershoot and is charged against later periods.
type progress struct {
	queuedAt  float64
	startTime float64

	timeElapsed          float64
	timeElapsedOvershoot float64
	bytesDownloaded      int64

	// dnsDelay is the resolution cost fixed at node start.
	dnsDelay float64
}
