package simnet

import "math"

const (
	// tcpSegmentSize is the assumed MSS in bytes.
	tcpSegmentSize = 1460

	// initialCongestionWindow is the slow-start window, in segments,
	// of a cold connection.
	initialCongestionWindow = 10
)

// Connection models one origin-scoped TCP connection, optionally with
// TLS and HTTP/2. It tracks warmth (has the handshake been paid) and a
// congestion window that doubles per round trip up to the ceiling the
// link throughput allows. Within a run a connection only gets warmer
// and its window only grows; it is reset only by pool construction.
type Connection struct {
	rtt           float64 // ms
	throughput    float64 // bytes/sec
	serverLatency float64 // ms
	ssl           bool
	h2            bool

	warmed           bool
	congestionWindow float64
}

// NewConnection creates a cold connection.
//
// rtt is the round-trip time in milliseconds, throughput the link
// capacity in bytes per second, serverLatency the origin's response
// latency in milliseconds.
func NewConnection(rtt, throughput, serverLatency float64, ssl, h2 bool) *Connection {
	return &Connection{
		rtt:              rtt,
		throughput:       throughput,
		serverLatency:    serverLatency,
		ssl:              ssl,
		h2:               h2,
		congestionWindow: initialCongestionWindow,
	}
}

// IsH2 reports whether the connection multiplexes requests (HTTP/2).
func (c *Connection) IsH2() bool {
	return c.h2
}

// IsWarm reports whether the connection has already paid its DNS and
// handshake cost.
func (c *Connection) IsWarm() bool {
	return c.warmed
}

// SetWarmed overrides the warmth flag. The pool uses it to replay
// observed connection reuse from the capture rather than inferring it.
func (c *Connection) SetWarmed(warmed bool) {
	c.warmed = warmed
}

// CongestionWindow returns the current window in segments.
func (c *Connection) CongestionWindow() float64 {
	return c.congestionWindow
}

// SetCongestionWindow commits a window previously computed by
// SimulateDownloadUntil. Growth only; the window never shrinks within
// a run.
func (c *Connection) SetCongestionWindow(window float64) {
	if window > c.congestionWindow {
		c.congestionWindow = window
	}
}

// maxCongestionWindow is the ceiling, in segments, the link throughput
// supports: the number of segments that fit in one round trip at full
// capacity.
func (c *Connection) maxCongestionWindow() float64 {
	bytesPerRoundTrip := c.throughput * c.rtt / 1000
	window := math.Floor(bytesPerRoundTrip / tcpSegmentSize)
	if window < 1 {
		window = 1
	}
	return window
}

// EstimateTimeToFirstByte returns the milliseconds from request issue
// to first response byte. A cold connection pays the supplied DNS
// delay, a TCP handshake (one round trip), a TLS handshake (one more)
// when the connection is secure, and the server's response latency on
// top of the request/response round trip. A warm connection pays only
// the request/response round trip and server latency.
func (c *Connection) EstimateTimeToFirstByte(dnsDelay float64) float64 {
	handshake := 0.0
	if !c.warmed {
		handshake = dnsDelay + c.rtt
		if c.ssl {
			handshake += c.rtt
		}
	}
	return handshake + c.rtt + c.serverLatency
}

// DownloadOptions tunes one SimulateDownloadUntil step.
type DownloadOptions struct {
	// TimeAlreadyElapsed is how long, in simulated milliseconds, this
	// request has already been in flight on this connection. The
	// handshake and TTFB are charged only while it is still inside
	// that span.
	TimeAlreadyElapsed float64

	// MaximumTimeToElapse bounds how much further simulated time the
	// step may consume. Zero or negative means unbounded (run to
	// completion).
	MaximumTimeToElapse float64

	// DNSDelay is the resolution cost for the request's hostname, as
	// returned by DNSCache.Resolve. Only a cold connection pays it.
	DNSDelay float64
}

// DownloadResult describes how far one step advanced a download.
type DownloadResult struct {
	// TimeElapsed is the simulated milliseconds the step consumed.
	TimeElapsed float64

	// BytesDownloaded is how many of the requested bytes arrived
	// within the step.
	BytesDownloaded int64

	// CongestionWindow is the window after the step's round trips.
	// The caller commits it via SetCongestionWindow once the step's
	// progress is accepted.
	CongestionWindow float64

	// RoundTrips is the number of full round trips the step consumed.
	RoundTrips int
}

// SimulateDownloadUntil computes how much of bytesRemaining this
// connection can transfer within the option's time budget, growing the
// congestion window one doubling per round trip up to the throughput
// ceiling. It is a pure function of the connection's current state;
// the caller owns committing the resulting window.
func (c *Connection) SimulateDownloadUntil(bytesRemaining int64, opts DownloadOptions) DownloadResult {
	maxTime := opts.MaximumTimeToElapse
	if maxTime <= 0 {
		maxTime = math.Inf(1)
	}

	ttfb := c.EstimateTimeToFirstByte(opts.DNSDelay)
	timeForTTFB := math.Max(ttfb-opts.TimeAlreadyElapsed, 0)
	downloadBudget := maxTime - timeForTTFB

	maxWindow := c.maxCongestionWindow()
	window := math.Min(c.congestionWindow, maxWindow)

	roundTrips := 0
	var downloaded float64
	if timeForTTFB > 0 {
		// The first window of data arrives with the first byte.
		downloaded = window * tcpSegmentSize
	}

	remaining := float64(bytesRemaining) - downloaded
	downloadTime := 0.0
	for remaining > 0 && downloadTime < downloadBudget {
		roundTrips++
		window = math.Min(maxWindow, math.Max(window*2, 1))
		downloadTime += c.rtt
		inWindow := window * tcpSegmentSize
		downloaded += inWindow
		remaining -= inWindow
	}

	// elapsed may exceed the budget by a partial round trip; the
	// caller tracks the excess as overshoot.
	elapsed := timeForTTFB + downloadTime
	bytes := int64(math.Min(downloaded, float64(bytesRemaining)))
	if bytes < 0 {
		bytes = 0
	}
	return DownloadResult{
		TimeElapsed:      elapsed,
		BytesDownloaded:  bytes,
		CongestionWindow: window,
		RoundTrips:       roundTrips,
	}
}
