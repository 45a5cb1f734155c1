package simnet

import "testing"

func TestDNSCache_ColdLookupCost(t *testing.T) {
	cache := NewDNSCache(100)

	delay := cache.Resolve("example.com", 0, false)
	if delay != 200 {
		t.Errorf("cold lookup: expected 200 (rtt x 2), got %v", delay)
	}

	// Without update, a repeat lookup is still cold.
	delay = cache.Resolve("example.com", 500, false)
	if delay != 200 {
		t.Errorf("repeat lookup without update: expected 200, got %v", delay)
	}
}

func TestDNSCache_Idempotence(t *testing.T) {
	cache := NewDNSCache(100)

	first := cache.Resolve("example.com", 0, true)
	if first != 200 {
		t.Errorf("first lookup: expected 200, got %v", first)
	}

	second := cache.Resolve("example.com", 300, true)
	if second != 0 {
		t.Errorf("lookup after caching: expected 0, got %v", second)
	}

	atSameTime := cache.Resolve("example.com", 0, true)
	if atSameTime != 0 {
		t.Errorf("lookup at cached time: expected 0, got %v", atSameTime)
	}
}

func TestDNSCache_Monotonicity(t *testing.T) {
	cache := NewDNSCache(100)

	cache.Resolve("example.com", 1000, true)

	// An update with an earlier time must not move the cached
	// resolution backwards.
	cache.Resolve("example.com", 100, true)

	delay := cache.Resolve("example.com", 500, false)
	if delay != 200 {
		t.Errorf("lookup before cached resolution: expected 200, got %v", delay)
	}
	delay = cache.Resolve("example.com", 1000, false)
	if delay != 0 {
		t.Errorf("lookup at cached resolution: expected 0, got %v", delay)
	}
}

func TestDNSCache_HostsAreIndependent(t *testing.T) {
	cache := NewDNSCache(50)

	cache.Resolve("a.example.com", 0, true)

	delay := cache.Resolve("b.example.com", 1000, false)
	if delay != 100 {
		t.Errorf("unrelated host: expected 100, got %v", delay)
	}
}
