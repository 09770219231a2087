package stack

import (
	"errors"

	"rtnet-go/internal/mdnsface"
	"rtnet-go/internal/wire"
)

// MDNSQuery looks up name in the mDNS cache. A miss is reported as
// ErrTimeout since there is no real multicast responder collaborator
// to keep waiting on.
func (c *Context) MDNSQuery(name string) (mdnsface.Record, error) {
	release := c.guard.Acquire()
	defer release()

	if !c.initialized {
		return mdnsface.Record{}, newError("mdns_query", ErrInvalidParam, nil)
	}
	if len(name) == 0 || len(name) > mdnsface.MaxNameLen {
		return mdnsface.Record{}, newError("mdns_query", ErrInvalidParam, nil)
	}
	rec, ok := c.mdns.Query(name)
	if !ok {
		return mdnsface.Record{}, newError("mdns_query", ErrTimeout, nil)
	}
	return rec, nil
}

// MDNSObserve installs or refreshes a cache record, the way an
// external multicast responder reports a received answer. Subsequent
// MDNSQuery calls for name hit the cache until the TTL lapses.
func (c *Context) MDNSObserve(name string, addr wire.IPv6Addr, port uint16, ttlSec uint32) error {
	release := c.guard.Acquire()
	defer release()

	if !c.initialized {
		return newError("mdns_observe", ErrInvalidParam, nil)
	}
	if port == 0 || ttlSec == 0 {
		return newError("mdns_observe", ErrInvalidParam, nil)
	}
	now := c.hooks.NowMs()
	if err := c.mdns.Resolve(name, addr, port, ttlSec*1000, now); err != nil {
		return newError("mdns_observe", ErrInvalidParam, err)
	}
	return nil
}

// MDNSAnnounce registers a local service for periodic advertisement.
func (c *Context) MDNSAnnounce(name string, port uint16, ttlSec uint32) error {
	release := c.guard.Acquire()
	defer release()

	if !c.initialized {
		return newError("mdns_announce", ErrInvalidParam, nil)
	}
	now := c.hooks.NowMs()
	if err := c.mdns.Announce(name, port, ttlSec, now); err != nil {
		if errors.Is(err, mdnsface.ErrInvalidParam) {
			return newError("mdns_announce", ErrInvalidParam, err)
		}
		return newError("mdns_announce", ErrOverflow, err)
	}
	return nil
}
