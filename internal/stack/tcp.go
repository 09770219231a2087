package stack

import (
	"rtnet-go/internal/buffer"
	"rtnet-go/internal/tcplite"
	"rtnet-go/internal/wire"
)

// TCPConnect allocates a connection slot and emits the initial SYN.
// The handle returned is stable for the connection's lifetime and is
// re-validated on every later call (it is just a table index, not a
// pointer).
func (c *Context) TCPConnect(dst wire.IPv6Addr, dport uint16) (int, error) {
	release := c.guard.Acquire()
	defer release()

	if !c.initialized {
		return -1, newError("tcp_connect", ErrInvalidParam, nil)
	}
	now := c.hooks.NowMs()

	route := c.routes.Find(dst, now)
	if route == nil {
		c.stats.RoutingErrors++
		return -1, newError("tcp_connect", ErrNoRoute, nil)
	}

	srcPort := c.allocEphemeralPort()
	isn := c.nextSeq()
	handle, err := c.conns.Connect(c.localAddr, dst, srcPort, dport, isn, now)
	if err != nil {
		if err == tcplite.ErrNoFreeSlot {
			return -1, newError("tcp_connect", ErrNoBuffer, err)
		}
		return -1, newError("tcp_connect", ErrConnection, err)
	}

	c.sendTCPSegment(handle, wire.TCPFlagSYN, isn, 0, nil, now)
	return handle, nil
}

// TCPSend queues payload for transmission over an ESTABLISHED (or
// CLOSE_WAIT) connection and emits the resulting segments immediately;
// the periodic task re-emits any that go unacknowledged.
func (c *Context) TCPSend(handle int, data []byte) error {
	release := c.guard.Acquire()
	defer release()

	if !c.initialized {
		return newError("tcp_send", ErrInvalidParam, nil)
	}
	now := c.hooks.NowMs()

	conn := c.conns.Get(handle)
	if conn == nil {
		return newError("tcp_send", ErrInvalidParam, nil)
	}
	seq := conn.SendNext
	if err := c.conns.Send(handle, data, now); err != nil {
		if err == tcplite.ErrQueueFull {
			return newError("tcp_send", ErrNoBuffer, err)
		}
		return newError("tcp_send", ErrConnection, err)
	}

	for off := 0; off < len(data); off += tcplite.MSS {
		end := off + tcplite.MSS
		if end > len(data) {
			end = len(data)
		}
		c.sendTCPSegment(handle, wire.TCPFlagACK|wire.TCPFlagPSH, seq, conn.RecvNext, data[off:end], now)
		seq += uint32(end - off)
	}
	return nil
}

// TCPClose starts (or completes) the connection teardown for handle.
func (c *Context) TCPClose(handle int) error {
	release := c.guard.Acquire()
	defer release()

	if !c.initialized {
		return newError("tcp_close", ErrInvalidParam, nil)
	}
	now := c.hooks.NowMs()

	conn := c.conns.Get(handle)
	if conn == nil {
		return newError("tcp_close", ErrInvalidParam, nil)
	}
	wasEstablished := conn.State == tcplite.Established
	wasCloseWait := conn.State == tcplite.CloseWait
	seq := conn.SendNext
	ack := conn.RecvNext

	if err := c.conns.Close(handle, now); err != nil {
		return newError("tcp_close", ErrConnection, err)
	}
	if wasEstablished || wasCloseWait {
		c.sendTCPSegment(handle, wire.TCPFlagFIN|wire.TCPFlagACK, seq, ack, nil, now)
	}
	return nil
}

// sendTCPSegment assembles and transmits one TCP-Lite segment for an
// existing connection. Best-effort: a transmit failure only counts
// against statistics. The retransmit timers (driven by PeriodicTask)
// re-send a lost SYN or queued data segment; a lost pure ACK or FIN
// is not re-sent.
func (c *Context) sendTCPSegment(handle int, flags uint8, seq, ack uint32, payload []byte, now uint32) {
	conn := c.conns.Get(handle)
	if conn == nil {
		return
	}

	dstMAC, ok := c.resolveNextHop(conn.RemoteAddr, now)
	if !ok {
		c.stats.TxDropped++
		return
	}

	idx, err := c.txPool.Allocate(buffer.QoSNormal, now)
	if err != nil {
		c.stats.TxDropped++
		return
	}
	defer c.txPool.Free(idx)
	buf := c.txPool.Get(idx)

	segLen := wire.TCPHeaderLen + len(payload)
	frame := buf.Data[:wire.EthernetHeaderLen+wire.IPv6HeaderLen+segLen]

	eth := wire.EthernetHeader{DstMAC: dstMAC, SrcMAC: c.localMAC, EtherType: wire.EtherTypeIPv6}
	_ = wire.EncodeEthernetHeader(frame, &eth)

	ipOff := wire.EthernetHeaderLen
	ip := wire.IPv6Header{
		Version:       wire.IPv6Version,
		PayloadLength: uint16(segLen),
		NextHeader:    wire.NextHeaderTCP,
		HopLimit:      wire.IPv6DefaultHopLimit,
		Src:           conn.LocalAddr,
		Dst:           conn.RemoteAddr,
	}
	_ = wire.EncodeIPv6Header(frame[ipOff:], &ip)

	tcpOff := ipOff + wire.IPv6HeaderLen
	tcp := wire.TCPHeader{
		SrcPort:    conn.LocalPort,
		DstPort:    conn.RemotePort,
		SeqNum:     seq,
		AckNum:     ack,
		DataOffset: 5,
		Flags:      flags,
		Window:     conn.RecvWindow,
	}
	copy(frame[tcpOff+wire.TCPHeaderLen:], payload)
	_ = wire.EncodeTCPHeader(frame[tcpOff:], &tcp)
	pseudo := wire.PseudoHeaderSum(conn.LocalAddr, conn.RemoteAddr, uint16(segLen), wire.NextHeaderTCP)
	tcp.Checksum = wire.Checksum(frame[tcpOff:], pseudo)
	_ = wire.EncodeTCPHeader(frame[tcpOff:], &tcp)

	c.hooks.Transmit(frame)
	c.stats.TxPackets++
}

// handleTCP dispatches an inbound TCP-Lite segment (called from
// ProcessRxPacket with the critical section already held).
func (c *Context) handleTCP(ip wire.IPv6Header, upper []byte, now uint32) {
	hdr, err := wire.DecodeTCPHeader(upper)
	if err != nil {
		c.stats.RxErrors++
		return
	}

	handle := c.conns.FindByTuple(ip.Dst, ip.Src, hdr.DstPort, hdr.SrcPort)
	if handle == -1 {
		c.stats.RxDropped++
		return
	}

	if wire.HasFlag(hdr.Flags, wire.TCPFlagRST) {
		c.conns.HandleRst(handle)
		return
	}

	if wire.HasFlag(hdr.Flags, wire.TCPFlagSYN) && wire.HasFlag(hdr.Flags, wire.TCPFlagACK) {
		if err := c.conns.HandleSynAck(handle, now); err == nil {
			conn := c.conns.Get(handle)
			conn.RecvNext = hdr.SeqNum + 1
			c.sendTCPSegment(handle, wire.TCPFlagACK, conn.SendNext, conn.RecvNext, nil, now)
		}
		return
	}

	if wire.HasFlag(hdr.Flags, wire.TCPFlagFIN) {
		conn := c.conns.Get(handle)
		ack := hdr.SeqNum + 1
		if len(upper) > wire.TCPHeaderLen {
			ack += uint32(len(upper) - wire.TCPHeaderLen)
		}
		_ = c.conns.HandleFin(handle, hdr.SeqNum, now)
		c.sendTCPSegment(handle, wire.TCPFlagACK, conn.SendNext, ack, nil, now)
		return
	}

	if wire.HasFlag(hdr.Flags, wire.TCPFlagACK) {
		_ = c.conns.HandleAck(handle, hdr.AckNum, now)
	}
}
