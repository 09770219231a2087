package stack

import (
	"github.com/sirupsen/logrus"

	"rtnet-go/internal/buffer"
	"rtnet-go/internal/mdnsface"
	"rtnet-go/internal/neighbor"
	"rtnet-go/internal/platform"
	"rtnet-go/internal/routing"
	"rtnet-go/internal/stats"
	"rtnet-go/internal/tcplite"
	"rtnet-go/internal/udpengine"
	"rtnet-go/internal/wire"
)

// Context is the single aggregate every stack operation hangs off.
// Nothing in this package reaches for a package-level variable; every
// method takes a *Context receiver and every field below is reachable
// only through it, so two independent stacks can coexist in one
// process.
type Context struct {
	hooks platform.Hooks
	guard platform.Guard
	log   *logrus.Logger

	rxPool *buffer.Pool
	txPool *buffer.Pool

	routes    *routing.Table
	neighbors *neighbor.Cache
	conns     *tcplite.Table
	mdns      *mdnsface.Facade
	udpPorts  *udpengine.ReceiveRegistry

	localAddr wire.IPv6Addr
	localMAC  wire.MACAddr

	nextEphemeralPort uint16
	seqCounter        uint32

	stats       stats.Statistics
	initialized bool
}

// NewContext wires a Context to its platform collaborator and logger.
// The returned Context is not yet usable for traffic — Initialize
// must be called first; construction here only fixes capacities.
func NewContext(hooks platform.Hooks, log *logrus.Logger) *Context {
	if log == nil {
		log = logrus.New()
	}
	c := &Context{hooks: hooks, log: log}
	c.guard = platform.NewGuard(hooks)
	c.resetTables()
	return c
}

// resetTables (re)allocates every fixed-capacity subsystem at its
// configured size. Called from NewContext and from Initialize, so a
// re-Initialize genuinely zeroes all state rather than leaving stale
// entries behind.
func (c *Context) resetTables() {
	now := uint32(0)
	if c.hooks != nil {
		now = c.hooks.NowMs()
	}
	c.rxPool = buffer.NewPool(MaxRXBuffers)
	c.txPool = buffer.NewPool(MaxTXBuffers)
	c.routes = routing.NewTable(MaxRoutingEntries, now)
	c.neighbors = neighbor.NewCache(MaxNeighborCache)
	c.conns = tcplite.NewTable(MaxTCPConnections, TCPMaxRetries, TCPTimeoutMs)
	c.mdns = mdnsface.NewFacade(MaxMDNSCache, MaxMDNSAnnounces)
	c.udpPorts = udpengine.NewReceiveRegistry()
	c.stats.Reset()
}

// Initialize performs the full de-init/re-init sweep: every subsystem
// is rebuilt at its configured capacity, the link-local default route
// is reinstalled by routing.NewTable, the ephemeral port counter
// reseeds at EphemeralPortStart, and the sequence counter reseeds
// from the platform clock so successive process restarts don't replay
// sequence numbers.
func (c *Context) Initialize(localAddr wire.IPv6Addr, localMAC wire.MACAddr) error {
	release := c.guard.Acquire()
	defer release()

	if localAddr.Equal(wire.Unspecified) || localMAC == (wire.MACAddr{}) {
		return newError("initialize", ErrInvalidParam, nil)
	}

	c.resetTables()
	c.localAddr = localAddr
	c.localMAC = localMAC
	c.nextEphemeralPort = EphemeralPortStart
	c.seqCounter = c.hooks.NowMs()*1000 + 1
	c.initialized = true

	c.log.WithFields(logrus.Fields{
		"local_addr": localAddr.String(),
		"local_mac":  localMAC.String(),
	}).Info("stack initialized")
	return nil
}

// GetStatistics returns a point-in-time snapshot of the counters.
func (c *Context) GetStatistics() stats.Statistics {
	release := c.guard.Acquire()
	defer release()
	return c.stats.Snapshot()
}

// RouteSnapshot copies out the valid routing table entries for
// diagnostics (`show route` and the like).
func (c *Context) RouteSnapshot() []routing.Route {
	release := c.guard.Acquire()
	defer release()

	var out []routing.Route
	for _, r := range c.routes.Entries() {
		if r.Valid {
			out = append(out, r)
		}
	}
	return out
}

// NeighborSnapshot copies out the valid neighbor cache entries for
// diagnostics.
func (c *Context) NeighborSnapshot() []neighbor.Entry {
	release := c.guard.Acquire()
	defer release()

	var out []neighbor.Entry
	for _, e := range c.neighbors.Entries() {
		if e.Valid {
			out = append(out, e)
		}
	}
	return out
}

// allocEphemeralPort returns the next ephemeral port and advances the
// counter, wrapping back to EphemeralPortStart at uint16 overflow.
// Must be called with the critical section already held.
func (c *Context) allocEphemeralPort() uint16 {
	port := c.nextEphemeralPort
	if c.nextEphemeralPort == 0xFFFF {
		c.nextEphemeralPort = EphemeralPortStart
	} else {
		c.nextEphemeralPort++
	}
	return port
}

// nextSeq draws the next TCP initial sequence number. Must be called
// with the critical section already held.
func (c *Context) nextSeq() uint32 {
	c.seqCounter += 9973 // odd stride keeps successive ISNs well spread
	return c.seqCounter
}
