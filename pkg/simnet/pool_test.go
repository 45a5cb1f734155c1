package simnet

import (
	"testing"

	"github.com/user/loadsim/pkg/graph"
)

func h1Request(id string, reused bool) *graph.NetworkRequest {
	return &graph.NetworkRequest{
		RequestID:      id,
		URL:            "http://example.com/" + id,
		Origin:         "http://example.com",
		Protocol:       "http/1.1",
		TransferSize:   1000,
		ObservedReused: reused,
	}
}

func h2Request(id string, reused bool) *graph.NetworkRequest {
	return &graph.NetworkRequest{
		RequestID:      id,
		URL:            "https://cdn.example.com/" + id,
		Origin:         "https://cdn.example.com",
		Protocol:       "h2",
		TransferSize:   1000,
		IsSecure:       true,
		ObservedReused: reused,
	}
}

func testPoolOptions() PoolOptions {
	return PoolOptions{
		RTT:                   100,
		ThroughputBytesPerSec: 1000 * 1024,
	}
}

func TestConnectionPool_PreallocatesPerOrigin(t *testing.T) {
	requests := []*graph.NetworkRequest{
		h1Request("1", false),
		h2Request("2", false),
	}
	pool := NewConnectionPool(requests, testPoolOptions())

	// Non-H2 origins get the limit of 6 plus one spare.
	if got := len(pool.connectionsByOrigin["http://example.com"]); got != 7 {
		t.Errorf("h1 origin: expected 7 connections, got %d", got)
	}
	// An H2 origin multiplexes over a single connection.
	if got := len(pool.connectionsByOrigin["https://cdn.example.com"]); got != 1 {
		t.Errorf("h2 origin: expected 1 connection, got %d", got)
	}
}

func TestConnectionPool_WarmthOrdering(t *testing.T) {
	requests := []*graph.NetworkRequest{h1Request("1", false)}
	pool := NewConnectionPool(requests, testPoolOptions())

	conns := pool.connectionsByOrigin["http://example.com"]
	windows := []float64{10, 100, 1000}
	for i, window := range windows {
		conns[i].SetWarmed(true)
		conns[i].SetCongestionWindow(window)
	}

	// Three requests the capture observed as reused must get the warm
	// connections in descending window order.
	expected := []float64{1000, 100, 10}
	for i, want := range expected {
		req := h1Request(string(rune('a'+i)), true)
		conn := pool.Acquire(req, AcquireOptions{})
		if conn == nil {
			t.Fatalf("acquisition %d: expected a warm connection, got none", i)
		}
		if conn.CongestionWindow() != want {
			t.Errorf("acquisition %d: expected window %v, got %v", i, want, conn.CongestionWindow())
		}
	}

	// A fourth reused request finds no remaining warm connection.
	if conn := pool.Acquire(h1Request("d", true), AcquireOptions{}); conn != nil {
		t.Errorf("expected no connection for fourth reused request, got one")
	}
}

func TestConnectionPool_Exhaustion(t *testing.T) {
	pool := NewConnectionPool([]*graph.NetworkRequest{h1Request("seed", false)}, testPoolOptions())

	// The spare connection lets a seventh concurrent cold request
	// through; the eighth finds nothing.
	for i := 0; i < 7; i++ {
		req := h1Request(string(rune('a'+i)), false)
		if conn := pool.Acquire(req, AcquireOptions{}); conn == nil {
			t.Fatalf("acquisition %d: expected a connection, got none", i)
		}
	}
	if conn := pool.Acquire(h1Request("h", false), AcquireOptions{}); conn != nil {
		t.Errorf("eighth concurrent acquisition: expected none, got a connection")
	}

	// A reused request beyond the free connections also gets nothing.
	if conn := pool.Acquire(h1Request("i", true), AcquireOptions{}); conn != nil {
		t.Errorf("reused acquisition with empty pool: expected none, got a connection")
	}
}

func TestConnectionPool_RepeatedAcquireReturnsSameConnection(t *testing.T) {
	pool := NewConnectionPool([]*graph.NetworkRequest{h1Request("seed", false)}, testPoolOptions())

	req := h1Request("a", false)
	first := pool.Acquire(req, AcquireOptions{})
	if first == nil {
		t.Fatal("expected a connection")
	}
	second := pool.Acquire(req, AcquireOptions{})
	if first != second {
		t.Error("repeated acquire for the same request returned a different connection")
	}
}

func TestConnectionPool_ReleaseMakesConnectionAcquirable(t *testing.T) {
	opts := testPoolOptions()
	opts.ConnectionsPerOrigin = 1 // 1 + spare = 2 connections
	pool := NewConnectionPool([]*graph.NetworkRequest{h1Request("seed", false)}, opts)

	req1 := h1Request("a", false)
	req2 := h1Request("b", false)
	req3 := h1Request("c", false)

	if pool.Acquire(req1, AcquireOptions{}) == nil || pool.Acquire(req2, AcquireOptions{}) == nil {
		t.Fatal("expected two connections")
	}
	if pool.Acquire(req3, AcquireOptions{}) != nil {
		t.Fatal("expected exhaustion before release")
	}

	pool.Release(req1)
	if pool.Acquire(req3, AcquireOptions{}) == nil {
		t.Error("released connection was not acquirable by another request")
	}
}

func TestConnectionPool_ReleaseUnknownRequestIsNoop(t *testing.T) {
	pool := NewConnectionPool([]*graph.NetworkRequest{h1Request("seed", false)}, testPoolOptions())
	pool.Release(h1Request("never-acquired", false))

	if got := len(pool.ConnectionsInUse()); got != 0 {
		t.Errorf("expected no connections in use, got %d", got)
	}
}

func TestConnectionPool_H2ConnectionIsShared(t *testing.T) {
	pool := NewConnectionPool([]*graph.NetworkRequest{h2Request("seed", false)}, testPoolOptions())

	first := pool.Acquire(h2Request("a", false), AcquireOptions{})
	if first == nil {
		t.Fatal("expected the h2 connection")
	}
	// Further requests multiplex onto the same in-use connection.
	second := pool.Acquire(h2Request("b", false), AcquireOptions{})
	if second != first {
		t.Error("expected concurrent h2 acquisitions to share one connection")
	}
}

func TestConnectionPool_H2ReleaseKeepsConnectionInUse(t *testing.T) {
	pool := NewConnectionPool([]*graph.NetworkRequest{h2Request("seed", false)}, testPoolOptions())

	reqA := h2Request("a", false)
	reqB := h2Request("b", false)
	if pool.Acquire(reqA, AcquireOptions{}) == nil || pool.Acquire(reqB, AcquireOptions{}) == nil {
		t.Fatal("expected both requests to share the h2 connection")
	}

	// The connection stays in use until its last holder releases.
	pool.Release(reqA)
	if got := len(pool.ConnectionsInUse()); got != 1 {
		t.Errorf("after first release: expected 1 connection in use, got %d", got)
	}
	pool.Release(reqB)
	if got := len(pool.ConnectionsInUse()); got != 0 {
		t.Errorf("after last release: expected 0 connections in use, got %d", got)
	}
}

func TestConnectionPool_IgnoreObservedReuse(t *testing.T) {
	pool := NewConnectionPool([]*graph.NetworkRequest{h1Request("seed", false)}, testPoolOptions())

	// All connections are cold, so a reused request normally fails.
	if pool.Acquire(h1Request("a", true), AcquireOptions{}) != nil {
		t.Fatal("expected no warm connection for a reused request")
	}
	if pool.Acquire(h1Request("b", true), AcquireOptions{IgnoreObservedReuse: true}) == nil {
		t.Error("expected a connection once observed reuse is waived")
	}
}

func TestConnectionPool_ConnectionsInUse(t *testing.T) {
	pool := NewConnectionPool([]*graph.NetworkRequest{h1Request("seed", false)}, testPoolOptions())

	pool.Acquire(h1Request("a", false), AcquireOptions{})
	pool.Acquire(h1Request("b", false), AcquireOptions{})

	if got := len(pool.ConnectionsInUse()); got != 2 {
		t.Errorf("expected 2 connections in use, got %d", got)
	}
}
