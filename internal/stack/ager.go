package stack

import (
	"rtnet-go/internal/mdnsface"
	"rtnet-go/internal/tcplite"
	"rtnet-go/internal/wire"
)

// PeriodicTask drives every subsystem's aging and retransmission
// sweep. The caller is expected to invoke it on a fixed cadence
// (PeriodicTaskIntervalMs) from thread context, never from the RX
// interrupt path. Its cost is linear in the sum of the table sizes.
func (c *Context) PeriodicTask() {
	release := c.guard.Acquire()
	defer release()

	if !c.initialized {
		return
	}
	now := c.hooks.NowMs()

	c.routes.Age(now, RouteAgeHorizonMs)
	c.neighbors.Age(now, NeighborAgeHorizonMs)
	c.mdns.Age(now)

	// Retransmissions run before the idle sweep: a due retry counts
	// as connection activity, so a connection still inside its retry
	// budget is never idle-closed on the same tick its timer fires.
	synRetries, synExpired := c.conns.DueSynRetransmits(now)
	for _, handle := range synRetries {
		conn := c.conns.Get(handle)
		c.sendTCPSegment(handle, wire.TCPFlagSYN, conn.SendUnacked, 0, nil, now)
	}
	for _, handle := range synExpired {
		c.stats.TxErrors++
		c.log.WithField("handle", handle).Warn("tcp handshake exceeded retry cap")
	}

	jobs, expired := c.conns.DueRetransmits(now)
	for _, job := range jobs {
		c.retransmitSegment(job, now)
	}
	for _, handle := range expired {
		c.stats.TxErrors++
		c.log.WithField("handle", handle).Warn("tcp connection exceeded retry cap")
	}

	for _, handle := range c.conns.AgeIdle(now, TCPTimeoutMs) {
		c.log.WithField("handle", handle).Debug("tcp connection aged out idle")
	}

	for _, ann := range c.mdns.DueAnnouncements(now) {
		c.sendMDNSAnnouncement(ann)
	}
}

// retransmitSegment re-emits a segment the connection table flagged as
// due, reusing the already-recorded sequence number and payload.
func (c *Context) retransmitSegment(job tcplite.RetransmitJob, now uint32) {
	conn := c.conns.Get(job.Handle)
	if conn == nil {
		return
	}
	c.sendTCPSegment(job.Handle, wire.TCPFlagACK|wire.TCPFlagPSH, job.Seq, conn.RecvNext, job.Data, now)
}

// sendMDNSAnnouncement stands in for the external multicast
// responder: it only bumps tx_packets so the announce schedule's side
// effects stay observable in statistics.
func (c *Context) sendMDNSAnnouncement(ann mdnsface.Announcement) {
	c.log.WithFields(map[string]interface{}{"name": ann.Name, "port": ann.Port}).Debug("mdns announcement due")
	c.stats.TxPackets++
}
