package stack

import (
	"rtnet-go/internal/buffer"
	"rtnet-go/internal/udpengine"
	"rtnet-go/internal/wire"
)

// ProcessRxPacket is the interrupt-context ingress entry point: it
// validates the frame, verifies the upper-layer checksum, and demuxes
// to ICMPv6/UDP/TCP-Lite. rx_packets increments only once a frame
// clears the length/ethertype/version checks, so a malformed or
// foreign-ethertype frame counts as rx_errors alone and never
// inflates rx_packets.
func (c *Context) ProcessRxPacket(frame []byte) error {
	release := c.guard.Acquire()
	defer release()

	if !c.initialized {
		return newError("process_rx_packet", ErrInvalidParam, nil)
	}
	now := c.hooks.NowMs()

	if len(frame) < wire.EthernetHeaderLen+wire.IPv6HeaderLen {
		c.stats.RxErrors++
		return newError("process_rx_packet", ErrInvalidParam, nil)
	}

	eth, err := wire.DecodeEthernetHeader(frame)
	if err != nil || eth.EtherType != wire.EtherTypeIPv6 {
		c.stats.RxErrors++
		return newError("process_rx_packet", ErrInvalidParam, err)
	}

	ipOff := wire.EthernetHeaderLen
	ip, err := wire.DecodeIPv6Header(frame[ipOff:])
	if err != nil || ip.Version != wire.IPv6Version {
		c.stats.RxErrors++
		return newError("process_rx_packet", ErrInvalidParam, err)
	}

	payloadOff := ipOff + wire.IPv6HeaderLen
	if payloadOff+int(ip.PayloadLength) > len(frame) {
		c.stats.RxErrors++
		return newError("process_rx_packet", ErrInvalidParam, nil)
	}

	// Past this point the frame is structurally a well-formed IPv6
	// frame of the declared length — it counts as accepted regardless
	// of what happens next.
	c.stats.RxPackets++

	if ip.HopLimit == 0 {
		c.stats.RxErrors++
		return newError("process_rx_packet", ErrInvalidParam, nil)
	}

	if !c.destinedForUs(ip.Dst) {
		c.stats.RxDropped++
		return newError("process_rx_packet", ErrInvalidParam, nil)
	}

	upper := frame[payloadOff : payloadOff+int(ip.PayloadLength)]
	pseudo := wire.PseudoHeaderSum(ip.Src, ip.Dst, ip.PayloadLength, ip.NextHeader)
	if wire.Checksum(upper, pseudo) != 0 {
		c.stats.ChecksumErrors++
		return newError("process_rx_packet", ErrChecksum, nil)
	}

	c.neighbors.Add(ip.Src, eth.SrcMAC, now)

	switch ip.NextHeader {
	case wire.NextHeaderICMPv6:
		c.handleICMPv6(ip, upper, now)
	case wire.NextHeaderUDP:
		c.handleUDP(ip, upper)
	case wire.NextHeaderTCP:
		c.handleTCP(ip, upper, now)
	default:
		c.stats.RxErrors++
		return newError("process_rx_packet", ErrInvalidParam, nil)
	}

	return nil
}

// destinedForUs reports whether dst addresses this node: our unicast
// address, the all-nodes multicast group, or our own solicited-node
// group. This node never forwards, so anything else is simply not
// for us.
func (c *Context) destinedForUs(dst wire.IPv6Addr) bool {
	if dst.Equal(c.localAddr) {
		return true
	}
	if dst.Equal(wire.LinkLocalAllNodesMulticast) {
		return true
	}
	if dst.Equal(wire.SolicitedNodeMulticast(c.localAddr)) {
		return true
	}
	return false
}

func (c *Context) handleUDP(ip wire.IPv6Header, upper []byte) {
	hdr, payload, err := udpengine.ParseDatagram(upper)
	if err != nil {
		c.stats.RxErrors++
		return
	}
	if !c.udpPorts.Deliver(hdr.DstPort, payload, ip.Src, hdr.SrcPort) {
		c.stats.RxDropped++
	}
}

func (c *Context) handleICMPv6(ip wire.IPv6Header, upper []byte, now uint32) {
	hdr, err := wire.DecodeICMPv6Header(upper)
	if err != nil {
		c.stats.RxErrors++
		return
	}

	switch hdr.Type {
	case wire.ICMPv6TypeEchoRequest:
		c.sendEchoReply(ip.Src, upper[wire.ICMPv6HeaderLen:], now)
	case wire.ICMPv6TypeNeighborSolicitation:
		ns, err := wire.DecodeNeighborSolicitation(upper[wire.ICMPv6HeaderLen:])
		if err != nil {
			c.stats.RxErrors++
			return
		}
		if ns.Target.Equal(c.localAddr) {
			c.sendNeighborAdvertisement(ip.Src, now)
		}
	case wire.ICMPv6TypeNeighborAdvertisement:
		na, err := wire.DecodeNeighborAdvertisement(upper[wire.ICMPv6HeaderLen:])
		if err != nil {
			c.stats.RxErrors++
			return
		}
		_ = na // the neighbor entry is already learned from eth.SrcMAC above
	default:
		c.stats.RxDropped++
	}
}

func (c *Context) sendEchoReply(dst wire.IPv6Addr, echoPayload []byte, now uint32) {
	dstMAC, ok := c.resolveNextHop(dst, now)
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

	icmpLen := wire.ICMPv6HeaderLen + len(echoPayload)
	frame := buf.Data[:wire.EthernetHeaderLen+wire.IPv6HeaderLen+icmpLen]

	eth := wire.EthernetHeader{DstMAC: dstMAC, SrcMAC: c.localMAC, EtherType: wire.EtherTypeIPv6}
	_ = wire.EncodeEthernetHeader(frame, &eth)

	ipOff := wire.EthernetHeaderLen
	ip := wire.IPv6Header{
		Version:       wire.IPv6Version,
		PayloadLength: uint16(icmpLen),
		NextHeader:    wire.NextHeaderICMPv6,
		HopLimit:      wire.IPv6DefaultHopLimit,
		Src:           c.localAddr,
		Dst:           dst,
	}
	_ = wire.EncodeIPv6Header(frame[ipOff:], &ip)

	icmpOff := ipOff + wire.IPv6HeaderLen
	copy(frame[icmpOff+wire.ICMPv6HeaderLen:], echoPayload)
	icmp := wire.ICMPv6Header{Type: wire.ICMPv6TypeEchoReply, Code: 0}
	_ = wire.EncodeICMPv6Header(frame[icmpOff:], &icmp)
	pseudo := wire.PseudoHeaderSum(c.localAddr, dst, uint16(icmpLen), wire.NextHeaderICMPv6)
	icmp.Checksum = wire.Checksum(frame[icmpOff:], pseudo)
	_ = wire.EncodeICMPv6Header(frame[icmpOff:], &icmp)

	c.hooks.Transmit(frame)
	c.stats.TxPackets++
}

func (c *Context) sendNeighborAdvertisement(dst wire.IPv6Addr, now uint32) {
	dstMAC, ok := c.resolveNextHop(dst, now)
	if !ok {
		c.stats.TxDropped++
		return
	}

	idx, err := c.txPool.Allocate(buffer.QoSHigh, now)
	if err != nil {
		c.stats.TxDropped++
		return
	}
	defer c.txPool.Free(idx)
	buf := c.txPool.Get(idx)

	icmpLen := wire.ICMPv6HeaderLen + 4 + wire.IPv6AddrLen
	frame := buf.Data[:wire.EthernetHeaderLen+wire.IPv6HeaderLen+icmpLen]

	eth := wire.EthernetHeader{DstMAC: dstMAC, SrcMAC: c.localMAC, EtherType: wire.EtherTypeIPv6}
	_ = wire.EncodeEthernetHeader(frame, &eth)

	ipOff := wire.EthernetHeaderLen
	ip := wire.IPv6Header{
		Version:       wire.IPv6Version,
		PayloadLength: uint16(icmpLen),
		NextHeader:    wire.NextHeaderICMPv6,
		HopLimit:      255,
		Src:           c.localAddr,
		Dst:           dst,
	}
	_ = wire.EncodeIPv6Header(frame[ipOff:], &ip)

	icmpOff := ipOff + wire.IPv6HeaderLen
	na := wire.NeighborAdvertisement{Solicited: true, Override: true, Target: c.localAddr}
	_ = wire.EncodeNeighborAdvertisement(frame[icmpOff+wire.ICMPv6HeaderLen:], &na)
	icmp := wire.ICMPv6Header{Type: wire.ICMPv6TypeNeighborAdvertisement, Code: 0}
	_ = wire.EncodeICMPv6Header(frame[icmpOff:], &icmp)
	pseudo := wire.PseudoHeaderSum(c.localAddr, dst, uint16(icmpLen), wire.NextHeaderICMPv6)
	icmp.Checksum = wire.Checksum(frame[icmpOff:], pseudo)
	_ = wire.EncodeICMPv6Header(frame[icmpOff:], &icmp)

	c.hooks.Transmit(frame)
	c.stats.TxPackets++
}
