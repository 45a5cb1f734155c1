// Package simnet models the network resources a simulated page load
// competes for: DNS resolution, TCP(+TLS)(+H2) connections with
// slow-start congestion growth, and the per-origin connection pool.
package simnet

// dnsResolutionRTTMultiplier scales one round trip into a DNS lookup
// cost. Observed lookups take roughly two round trips once cache
// misses and recursive resolution are averaged in.
const dnsResolutionRTTMultiplier = 2

// DNSCache tracks, per hostname, the simulated time at which the
// hostname was first resolved. A run owns exactly one cache; caches
// are never shared across concurrent runs.
type DNSCache struct {
	rtt float64

	resolvedAt map[string]float64
}

// NewDNSCache creates a cache for a run with the given round-trip time
// in milliseconds.
func NewDNSCache(rtt float64) *DNSCache {
	return &DNSCache{
		rtt:        rtt,
		resolvedAt: make(map[string]float64),
	}
}

// Resolve returns the additional delay, in simulated milliseconds,
// that a lookup of host issued at requestedAt would incur. A hostname
// already resolved at or before requestedAt costs nothing. When update
// is true the resolution time is recorded, but an existing earlier
// time always wins; a later call can never move a cached resolution
// backwards.
func (c *DNSCache) Resolve(host string, requestedAt float64, update bool) float64 {
	cachedAt, ok := c.resolvedAt[host]
	if ok && cachedAt <= requestedAt {
		return 0
	}

	delay := c.rtt * dnsResolutionRTTMultiplier
	if update && !ok {
		// First resolution wins. Rewriting the entry, even to an
		// earlier time, would let a later lookup travel back in time.
		c.resolvedAt[host] = requestedAt
	}
	return delay
}
