// Package udpengine assembles outbound UDP datagrams onto the wire
// and dispatches inbound ones to registered port callbacks. Route
// selection, neighbor resolution, buffer allocation, and hardware
// handoff are orchestrated by the stack package, which owns the
// Context those steps share.
package udpengine

import (
	"fmt"

	"rtnet-go/internal/wire"
)

// HeaderOverhead is the combined Ethernet+IPv6+UDP header size this
// package prepends to a payload.
const HeaderOverhead = wire.EthernetHeaderLen + wire.IPv6HeaderLen + wire.UDPHeaderLen

// BuildDatagram assembles an Ethernet+IPv6+UDP frame carrying payload
// into buf, which must be at least HeaderOverhead+len(payload) bytes.
// It returns the total frame length.
func BuildDatagram(buf []byte, srcMAC, dstMAC wire.MACAddr, srcAddr, dstAddr wire.IPv6Addr, srcPort, dstPort uint16, payload []byte) (int, error) {
	total := HeaderOverhead + len(payload)
	if len(buf) < total {
		return 0, fmt.Errorf("udpengine: buffer too small: need %d, have %d", total, len(buf))
	}

	eth := wire.EthernetHeader{DstMAC: dstMAC, SrcMAC: srcMAC, EtherType: wire.EtherTypeIPv6}
	if err := wire.EncodeEthernetHeader(buf, &eth); err != nil {
		return 0, err
	}

	udpLen := uint16(wire.UDPHeaderLen + len(payload))
	ip := wire.IPv6Header{
		Version:       wire.IPv6Version,
		PayloadLength: udpLen,
		NextHeader:    wire.NextHeaderUDP,
		HopLimit:      wire.IPv6DefaultHopLimit,
		Src:           srcAddr,
		Dst:           dstAddr,
	}
	ipOff := wire.EthernetHeaderLen
	if err := wire.EncodeIPv6Header(buf[ipOff:], &ip); err != nil {
		return 0, err
	}

	udpOff := ipOff + wire.IPv6HeaderLen
	udpHdr := wire.UDPHeader{SrcPort: srcPort, DstPort: dstPort, Length: udpLen, Checksum: 0}
	if err := wire.EncodeUDPHeader(buf[udpOff:], &udpHdr); err != nil {
		return 0, err
	}
	payloadOff := udpOff + wire.UDPHeaderLen
	n := copy(buf[payloadOff:], payload)

	pseudo := wire.PseudoHeaderSum(srcAddr, dstAddr, udpLen, wire.NextHeaderUDP)
	checksum := wire.Checksum(buf[udpOff:payloadOff+n], pseudo)
	if checksum == 0 {
		checksum = 0xFFFF // RFC 768: a computed zero is transmitted as all-ones
	}
	udpHdr.Checksum = checksum
	if err := wire.EncodeUDPHeader(buf[udpOff:], &udpHdr); err != nil {
		return 0, err
	}

	return payloadOff + n, nil
}

// ParseDatagram decodes the UDP header and payload out of an IPv6
// payload slice (i.e. buf starts at the UDP header).
func ParseDatagram(buf []byte) (wire.UDPHeader, []byte, error) {
	hdr, err := wire.DecodeUDPHeader(buf)
	if err != nil {
		return hdr, nil, err
	}
	if int(hdr.Length) > len(buf) {
		return hdr, nil, fmt.Errorf("udpengine: length %d exceeds buffer %d", hdr.Length, len(buf))
	}
	return hdr, buf[wire.UDPHeaderLen:hdr.Length], nil
}

// ReceiveHandler is invoked when a datagram arrives for a registered
// port.
type ReceiveHandler func(payload []byte, srcAddr wire.IPv6Addr, srcPort uint16)

// ReceiveRegistry maps destination ports to delivery callbacks. RX
// dispatch consults it to decide where an inbound datagram goes;
// datagrams for ports with no registration are dropped upstream.
type ReceiveRegistry struct {
	handlers map[uint16]ReceiveHandler
}

func NewReceiveRegistry() *ReceiveRegistry {
	return &ReceiveRegistry{handlers: make(map[uint16]ReceiveHandler)}
}

func (r *ReceiveRegistry) Register(port uint16, fn ReceiveHandler) {
	r.handlers[port] = fn
}

func (r *ReceiveRegistry) Unregister(port uint16) {
	delete(r.handlers, port)
}

// Deliver invokes the handler registered for port, if any, and
// reports whether a handler existed.
func (r *ReceiveRegistry) Deliver(port uint16, payload []byte, srcAddr wire.IPv6Addr, srcPort uint16) bool {
	fn, ok := r.handlers[port]
	if !ok {
		return false
	}
	fn(payload, srcAddr, srcPort)
	return true
}
