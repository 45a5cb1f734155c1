package simnet

import (
	"sort"

	"github.com/user/loadsim/pkg/graph"
)

// defaultConnectionsPerOrigin mirrors the per-origin connection limit
// browsers apply to HTTP/1.x origins.
const defaultConnectionsPerOrigin = 6

// spareConnectionsPerOrigin is allocated on top of the limit so that
// captures with slightly anomalous reuse patterns still simulate
// rather than stalling.
const spareConnectionsPerOrigin = 1

// PoolOptions configures connection pre-allocation.
type PoolOptions struct {
	// RTT is the base round-trip time in milliseconds. Required.
	RTT float64

	// ThroughputBytesPerSec is the link capacity. Required.
	ThroughputBytesPerSec float64

	// AdditionalRTTByOrigin adds origin-specific latency on top of RTT.
	AdditionalRTTByOrigin map[string]float64

	// ServerResponseTimeByOrigin sets per-origin server processing
	// latency in milliseconds. Origins without an entry pay none.
	ServerResponseTimeByOrigin map[string]float64

	// ConnectionsPerOrigin overrides the per-origin limit for non-H2
	// origins. Zero means the default of 6.
	ConnectionsPerOrigin int
}

// AcquireOptions tunes one acquisition.
type AcquireOptions struct {
	// IgnoreObservedReuse drops the requirement that a connection's
	// warmth match the reuse the capture observed for the request.
	// The optimistic scheduling policy sets it to assume best-case
	// connection reuse.
	IgnoreObservedReuse bool
}

// ConnectionPool owns every simulated connection of one run, grouped
// by origin, and tracks which request currently holds which
// connection. One pool serves exactly one run; pools are never shared
// across concurrent runs.
type ConnectionPool struct {
	connectionsByOrigin map[string][]*Connection
	origins             []string

	connectionByRequest map[string]*Connection

	// holders counts the requests currently multiplexed onto each
	// connection; H2 connections can carry more than one.
	holders map[*Connection]int
}

// NewConnectionPool pre-allocates connections for every origin that
// appears in requests. Non-H2 origins get the per-origin limit plus
// one spare; an H2 origin gets a single multiplexed connection. The
// pool never grows after construction.
func NewConnectionPool(requests []*graph.NetworkRequest, opts PoolOptions) *ConnectionPool {
	pool := &ConnectionPool{
		connectionsByOrigin: make(map[string][]*Connection),
		connectionByRequest: make(map[string]*Connection),
		holders:             make(map[*Connection]int),
	}

	perOrigin := opts.ConnectionsPerOrigin
	if perOrigin <= 0 {
		perOrigin = defaultConnectionsPerOrigin
	}

	byOrigin := make(map[string][]*graph.NetworkRequest)
	for _, req := range requests {
		byOrigin[req.Origin] = append(byOrigin[req.Origin], req)
	}

	for origin, originRequests := range byOrigin {
		rtt := opts.RTT + opts.AdditionalRTTByOrigin[origin]
		serverLatency := opts.ServerResponseTimeByOrigin[origin]

		// The origin's connection properties come from its records.
		ssl := originRequests[0].IsSecure
		h2 := false
		for _, req := range originRequests {
			if req.IsH2() {
				h2 = true
				break
			}
		}

		count := perOrigin + spareConnectionsPerOrigin
		if h2 {
			count = 1
		}
		connections := make([]*Connection, count)
		for i := range connections {
			connections[i] = NewConnection(rtt, opts.ThroughputBytesPerSec, serverLatency, ssl, h2)
		}
		pool.connectionsByOrigin[origin] = connections
		pool.origins = append(pool.origins, origin)
	}
	sort.Strings(pool.origins)

	return pool
}

// Acquire selects a connection for the request's origin, or nil when
// every candidate is busy or mismatched. Nil is not an error: the
// caller retries at a later simulated time. A request that already
// holds a connection always gets that same connection back.
//
// Candidates are the origin's connections that are free (an H2
// connection counts as free even while in use) and whose warmth
// matches the reuse the capture observed for this request, unless
// opts.IgnoreObservedReuse waives the match. Of the candidates the
// warmest, largest-window connection wins.
func (p *ConnectionPool) Acquire(req *graph.NetworkRequest, opts AcquireOptions) *Connection {
	if conn, ok := p.connectionByRequest[req.RequestID]; ok {
		return conn
	}

	var best *Connection
	for _, conn := range p.connectionsByOrigin[req.Origin] {
		if !opts.IgnoreObservedReuse && conn.IsWarm() != req.ObservedReused {
			continue
		}
		if p.holders[conn] > 0 && !conn.IsH2() {
			continue
		}
		if best == nil || conn.CongestionWindow() > best.CongestionWindow() {
			best = conn
		}
	}
	if best == nil {
		return nil
	}

	p.holders[best]++
	p.connectionByRequest[req.RequestID] = best
	return best
}

// ActiveConnection returns the connection the request currently holds.
// Holding none is a structural error: the simulator only asks about
// requests it has already started.
func (p *ConnectionPool) ActiveConnection(req *graph.NetworkRequest) (*Connection, error) {
	conn, ok := p.connectionByRequest[req.RequestID]
	if !ok {
		return nil, &NoConnectionError{RequestID: req.RequestID}
	}
	return conn, nil
}

// Release returns the request's connection to the free pool. It is a
// no-op for a request that holds nothing.
func (p *ConnectionPool) Release(req *graph.NetworkRequest) {
	conn, ok := p.connectionByRequest[req.RequestID]
	if !ok {
		return
	}
	delete(p.connectionByRequest, req.RequestID)
	if p.holders[conn]--; p.holders[conn] <= 0 {
		delete(p.holders, conn)
	}
}

// ConnectionsInUse returns the currently acquired connections, in
// pool-allocation order.
func (p *ConnectionPool) ConnectionsInUse() []*Connection {
	var used []*Connection
	for _, origin := range p.origins {
		for _, conn := range p.connectionsByOrigin[origin] {
			if p.holders[conn] > 0 {
				used = append(used, conn)
			}
		}
	}
	return used
}

// NoConnectionError reports a request id that holds no connection.
type NoConnectionError struct {
	RequestID string
}

// Error implements the error interface.
func (e *NoConnectionError) Error() string {
	return "no active connection for request " + e.RequestID
}
