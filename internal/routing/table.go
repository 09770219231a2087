// Package routing implements the fixed-size routing table:
// linear-scan insertion, longest-prefix-match lookup with metric
// tie-break, and aging by last-use.
package routing

import (
	"fmt"

	"rtnet-go/internal/wire"
)

// LinkLocalPrefixLen is the prefix length of the link-local route
// every context installs at init.
const LinkLocalPrefixLen = 10

var LinkLocalPrefix = wire.IPv6Addr{0xFE, 0x80}

// Route is a single routing table entry.
type Route struct {
	Destination wire.IPv6Addr
	PrefixLen   uint8
	NextHop     wire.IPv6Addr // zero value means directly connected
	HasNextHop  bool
	Metric      uint16
	LastUsedMs  uint32
	Valid       bool

	// linkLocalDefault marks the route installed at init so the ager
	// never expires it.
	linkLocalDefault bool
}

// Table is the fixed-capacity routing table (RIB).
type Table struct {
	entries []Route
}

// NewTable builds a table with capacity entries and installs the
// fe80::/10 link-local default route every node carries.
func NewTable(capacity int, now uint32) *Table {
	t := &Table{entries: make([]Route, capacity)}
	idx, err := t.add(LinkLocalPrefix, LinkLocalPrefixLen, wire.IPv6Addr{}, false, 1, now)
	if err == nil {
		t.entries[idx].linkLocalDefault = true
	}
	return t
}

// Add inserts a route into the first invalid slot. next-hop absent
// (hasNextHop == false) means directly connected.
func (t *Table) Add(dest wire.IPv6Addr, prefixLen uint8, nextHop wire.IPv6Addr, hasNextHop bool, metric uint16, now uint32) error {
	if prefixLen > 128 {
		return fmt.Errorf("routing: invalid_param: prefix length %d > 128", prefixLen)
	}
	_, err := t.add(dest, prefixLen, nextHop, hasNextHop, metric, now)
	return err
}

func (t *Table) add(dest wire.IPv6Addr, prefixLen uint8, nextHop wire.IPv6Addr, hasNextHop bool, metric uint16, now uint32) (int, error) {
	for i := range t.entries {
		if t.entries[i].Valid {
			continue
		}
		t.entries[i] = Route{
			Destination: dest,
			PrefixLen:   prefixLen,
			NextHop:     nextHop,
			HasNextHop:  hasNextHop,
			Metric:      metric,
			LastUsedMs:  now,
			Valid:       true,
		}
		return i, nil
	}
	return -1, fmt.Errorf("routing: overflow")
}

// Find performs longest-prefix-match lookup, breaking ties by the
// strictly lower metric. No equal-cost multipath: at most one winner
// is returned. On a hit the winner's last-used stamp is refreshed.
func (t *Table) Find(dst wire.IPv6Addr, now uint32) *Route {
	var best *Route
	var bestPrefixLen uint8
	var bestMetric uint16

	for i := range t.entries {
		entry := &t.entries[i]
		if !entry.Valid {
			continue
		}
		if !wire.PrefixMatch(dst, entry.Destination, entry.PrefixLen) {
			continue
		}
		if best == nil || entry.PrefixLen > bestPrefixLen ||
			(entry.PrefixLen == bestPrefixLen && entry.Metric < bestMetric) {
			best = entry
			bestPrefixLen = entry.PrefixLen
			bestMetric = entry.Metric
		}
	}

	if best != nil {
		best.LastUsedMs = now
	}
	return best
}

// Invalidate clears a route entry in place, used by explicit deletion.
func (t *Table) Invalidate(r *Route) {
	r.Valid = false
}

// Age invalidates any valid, non-default-route entry whose last use
// exceeds horizonMs. Uses wraparound-safe unsigned subtraction so a
// millisecond clock rollover never causes a spurious age-out.
func (t *Table) Age(now uint32, horizonMs uint32) {
	for i := range t.entries {
		entry := &t.entries[i]
		if !entry.Valid || entry.linkLocalDefault {
			continue
		}
		if now-entry.LastUsedMs > horizonMs {
			entry.Valid = false
		}
	}
}

// Entries exposes the backing slice for diagnostics (e.g. `show route`).
func (t *Table) Entries() []Route {
	return t.entries
}

// Cap returns the table's fixed capacity.
func (t *Table) Cap() int {
	return len(t.entries)
}
