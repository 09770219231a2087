// Package neighbor implements the IPv6-to-MAC neighbor cache: linear
// lookup with stamp refresh on hit, free-slot or oldest-eviction
// insertion, and aging by last-confirmed time.
package neighbor

import "rtnet-go/internal/wire"

// Reachability states.
const (
	StateReachable = 0
	StateStale     = 1
	StateProbe     = 2
)

// Entry is a single neighbor cache entry.
type Entry struct {
	Addr          wire.IPv6Addr
	MAC           wire.MACAddr
	State         uint8
	LastConfirmed uint32
	Valid         bool
}

// Cache is the fixed-capacity neighbor cache.
type Cache struct {
	entries []Entry
}

func NewCache(capacity int) *Cache {
	return &Cache{entries: make([]Entry, capacity)}
}

// Lookup performs a linear scan for addr. On a hit the entry's
// last-confirmed stamp is refreshed to now and the MAC is returned.
func (c *Cache) Lookup(addr wire.IPv6Addr, now uint32) (wire.MACAddr, bool) {
	for i := range c.entries {
		e := &c.entries[i]
		if e.Valid && e.Addr.Equal(addr) {
			e.LastConfirmed = now
			return e.MAC, true
		}
	}
	return wire.MACAddr{}, false
}

// Add inserts or overwrites an entry for addr. It prefers a free slot;
// failing that it evicts the entry with the oldest LastConfirmed.
func (c *Cache) Add(addr wire.IPv6Addr, mac wire.MACAddr, now uint32) {
	idx := -1
	for i := range c.entries {
		if !c.entries[i].Valid {
			idx = i
			break
		}
	}
	if idx == -1 {
		oldest := uint32(0)
		oldestIdx := 0
		first := true
		for i := range c.entries {
			if first || c.entries[i].LastConfirmed < oldest {
				oldest = c.entries[i].LastConfirmed
				oldestIdx = i
				first = false
			}
		}
		idx = oldestIdx
	}

	c.entries[idx] = Entry{
		Addr:          addr,
		MAC:           mac,
		State:         StateReachable,
		LastConfirmed: now,
		Valid:         true,
	}
}

// Age invalidates any valid entry whose last-confirmed time exceeds
// horizonMs, using wraparound-safe unsigned subtraction.
func (c *Cache) Age(now uint32, horizonMs uint32) {
	for i := range c.entries {
		e := &c.entries[i]
		if e.Valid && now-e.LastConfirmed > horizonMs {
			e.Valid = false
		}
	}
}

func (c *Cache) Entries() []Entry {
	return c.entries
}

func (c *Cache) Cap() int {
	return len(c.entries)
}
