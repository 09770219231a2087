package stack

import (
	"rtnet-go/internal/udpengine"
	"rtnet-go/internal/wire"
)

// resolveNextHop looks up the MAC for dst's next hop in the neighbor
// cache. There is no solicitation state machine on the egress path: a
// miss is a transient failure, and the caller retries after a
// neighbor advertisement from the peer has been processed.
func (c *Context) resolveNextHop(addr wire.IPv6Addr, now uint32) (wire.MACAddr, bool) {
	return c.neighbors.Lookup(addr, now)
}

// UDPSend assembles and transmits a UDP datagram to dst:dport.
// sport == 0 draws the next ephemeral source port. Route lookup or
// next-hop resolution failure yields ErrNoRoute; buffer exhaustion
// yields ErrNoBuffer.
func (c *Context) UDPSend(dst wire.IPv6Addr, dport, sport uint16, payload []byte, qos uint8) error {
	release := c.guard.Acquire()
	defer release()

	if !c.initialized {
		return newError("udp_send", ErrInvalidParam, nil)
	}
	if dport == 0 {
		return newError("udp_send", ErrInvalidParam, nil)
	}
	if len(payload) == 0 || len(payload) > MTU {
		return newError("udp_send", ErrInvalidParam, nil)
	}
	now := c.hooks.NowMs()

	route := c.routes.Find(dst, now)
	if route == nil {
		c.stats.RoutingErrors++
		return newError("udp_send", ErrNoRoute, nil)
	}
	nextHop := dst
	if route.HasNextHop {
		nextHop = route.NextHop
	}
	dstMAC, ok := c.resolveNextHop(nextHop, now)
	if !ok {
		c.stats.RoutingErrors++
		return newError("udp_send", ErrNoRoute, nil)
	}

	idx, err := c.txPool.Allocate(qos, now)
	if err != nil {
		c.stats.TxDropped++
		return newError("udp_send", ErrNoBuffer, err)
	}
	defer c.txPool.Free(idx)
	buf := c.txPool.Get(idx)

	if sport == 0 {
		sport = c.allocEphemeralPort()
	}
	n, err := udpengine.BuildDatagram(buf.Data[:], c.localMAC, dstMAC, c.localAddr, dst, sport, dport, payload)
	if err != nil {
		c.stats.TxErrors++
		return newError("udp_send", ErrInvalidParam, err)
	}

	c.hooks.Transmit(buf.Data[:n])
	c.stats.TxPackets++
	return nil
}

// RegisterUDPPort installs a delivery callback for inbound datagrams
// addressed to port. Datagrams for unregistered ports are dropped
// silently during RX dispatch.
func (c *Context) RegisterUDPPort(port uint16, fn udpengine.ReceiveHandler) {
	release := c.guard.Acquire()
	defer release()
	c.udpPorts.Register(port, fn)
}

// AddRoute installs a routing table entry. nextHop == nil means the
// prefix is directly connected.
func (c *Context) AddRoute(dest wire.IPv6Addr, prefixLen uint8, nextHop *wire.IPv6Addr, metric uint16) error {
	release := c.guard.Acquire()
	defer release()

	now := c.hooks.NowMs()
	hasNextHop := nextHop != nil
	var nh wire.IPv6Addr
	if hasNextHop {
		nh = *nextHop
	}
	if err := c.routes.Add(dest, prefixLen, nh, hasNextHop, metric, now); err != nil {
		if prefixLen > 128 {
			return newError("add_route", ErrInvalidParam, err)
		}
		c.stats.RoutingErrors++
		return newError("add_route", ErrOverflow, err)
	}
	return nil
}
