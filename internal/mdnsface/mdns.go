// Package mdnsface implements the mDNS service-discovery façade: a
// TTL-indexed record cache behind query/announce operations. The
// DNS-SD wire parser and the multicast responder itself live with an
// external collaborator — this façade only maintains the cache and
// the announce schedule such a responder would consume.
package mdnsface

import (
	"fmt"

	"rtnet-go/internal/wire"
)

const MaxNameLen = 63

var (
	ErrInvalidParam = fmt.Errorf("mdnsface: invalid_param")
	ErrOverflow     = fmt.Errorf("mdnsface: overflow: announce table full")
)

// Record is a single cached (or locally announced) service record.
type Record struct {
	Name     string
	Addr     wire.IPv6Addr
	Port     uint16
	TTLMs    uint32
	LastSeen uint32
	Valid    bool
}

// Announcement tracks a locally-registered service pending periodic
// multicast advertisement.
type Announcement struct {
	Name       string
	Port       uint16
	TTLMs      uint32
	LastSentMs uint32
	Valid      bool
}

// Facade is the fixed-capacity mDNS cache plus the local announce
// table.
type Facade struct {
	cache     []Record
	announces []Announcement
}

func NewFacade(cacheCapacity, announceCapacity int) *Facade {
	return &Facade{
		cache:     make([]Record, cacheCapacity),
		announces: make([]Announcement, announceCapacity),
	}
}

// Query looks up name among valid cache records by exact match. A
// miss returns ok=false; with no responder collaborator to wait on,
// the caller reports that as a timeout.
func (f *Facade) Query(name string) (Record, bool) {
	for i := range f.cache {
		r := &f.cache[i]
		if r.Valid && r.Name == name {
			return *r, true
		}
	}
	return Record{}, false
}

// Resolve installs or refreshes a cache entry, e.g. after an
// externally-injected response arrives. A valid record with the same
// name is refreshed in place; otherwise insertion prefers a free slot,
// else overwrites the entry with the smallest remaining TTL.
func (f *Facade) Resolve(name string, addr wire.IPv6Addr, port uint16, ttlMs uint32, now uint32) error {
	if len(name) == 0 || len(name) > MaxNameLen {
		return fmt.Errorf("%w: name length %d", ErrInvalidParam, len(name))
	}

	idx := -1
	for i := range f.cache {
		if f.cache[i].Valid && f.cache[i].Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		for i := range f.cache {
			if !f.cache[i].Valid {
				idx = i
				break
			}
		}
	}
	if idx == -1 {
		oldestRemaining := uint32(0)
		first := true
		for i := range f.cache {
			remaining := remainingTTL(f.cache[i], now)
			if first || remaining < oldestRemaining {
				oldestRemaining = remaining
				idx = i
				first = false
			}
		}
	}

	f.cache[idx] = Record{Name: name, Addr: addr, Port: port, TTLMs: ttlMs, LastSeen: now, Valid: true}
	return nil
}

func remainingTTL(r Record, now uint32) uint32 {
	elapsed := now - r.LastSeen
	if elapsed >= r.TTLMs {
		return 0
	}
	return r.TTLMs - elapsed
}

// Announce registers a local service for periodic multicast
// advertisement. ttlSec is carried in milliseconds internally.
func (f *Facade) Announce(name string, port uint16, ttlSec uint32, now uint32) error {
	if len(name) == 0 || len(name) > MaxNameLen || port == 0 || ttlSec == 0 {
		return ErrInvalidParam
	}

	ttlMs := ttlSec * 1000

	for i := range f.announces {
		a := &f.announces[i]
		if a.Valid && a.Name == name {
			a.Port = port
			a.TTLMs = ttlMs
			return nil
		}
	}

	for i := range f.announces {
		if !f.announces[i].Valid {
			f.announces[i] = Announcement{Name: name, Port: port, TTLMs: ttlMs, LastSentMs: now, Valid: true}
			return nil
		}
	}

	return ErrOverflow
}

// Age invalidates cache records whose TTL has elapsed.
func (f *Facade) Age(now uint32) {
	for i := range f.cache {
		r := &f.cache[i]
		if r.Valid && now-r.LastSeen > r.TTLMs {
			r.Valid = false
		}
	}
}

// DueAnnouncements returns the announcements whose TTL schedule has
// elapsed since LastSentMs, refreshing their schedule as a side
// effect — the periodic task uses this to drive the actual multicast
// emission (via the responder collaborator, out of scope here).
func (f *Facade) DueAnnouncements(now uint32) []Announcement {
	var due []Announcement
	for i := range f.announces {
		a := &f.announces[i]
		if !a.Valid {
			continue
		}
		if now-a.LastSentMs >= a.TTLMs {
			due = append(due, *a)
			a.LastSentMs = now
		}
	}
	return due
}
