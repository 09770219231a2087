package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	IPv6HeaderLen       = 40
	IPv6Version         = 6
	IPv6DefaultHopLimit = 64

	NextHeaderICMPv6 = 58
	NextHeaderUDP    = 17
	NextHeaderTCP    = 6
)

// IPv6Header is the fixed 40-byte IPv6 header (RFC 8200 §3). FlowLabel
// only uses its low 20 bits.
type IPv6Header struct {
	Version       uint8
	TrafficClass  uint8
	FlowLabel     uint32
	PayloadLength uint16
	NextHeader    uint8
	HopLimit      uint8
	Src           IPv6Addr
	Dst           IPv6Addr
}

// EncodeIPv6Header writes hdr into the first IPv6HeaderLen bytes of buf.
func EncodeIPv6Header(buf []byte, hdr *IPv6Header) error {
	if len(buf) < IPv6HeaderLen {
		return fmt.Errorf("wire: ipv6 encode buffer too small: %d", len(buf))
	}

	vcl := (uint32(hdr.Version&0xF) << 28) | (uint32(hdr.TrafficClass) << 20) | (hdr.FlowLabel & 0xFFFFF)
	binary.BigEndian.PutUint32(buf[0:4], vcl)
	binary.BigEndian.PutUint16(buf[4:6], hdr.PayloadLength)
	buf[6] = hdr.NextHeader
	buf[7] = hdr.HopLimit
	copy(buf[8:24], hdr.Src[:])
	copy(buf[24:40], hdr.Dst[:])
	return nil
}

// DecodeIPv6Header parses the first IPv6HeaderLen bytes of buf.
func DecodeIPv6Header(buf []byte) (IPv6Header, error) {
	var hdr IPv6Header
	if len(buf) < IPv6HeaderLen {
		return hdr, fmt.Errorf("wire: ipv6 header too short: %d bytes", len(buf))
	}

	vcl := binary.BigEndian.Uint32(buf[0:4])
	hdr.Version = uint8(vcl >> 28)
	hdr.TrafficClass = uint8((vcl >> 20) & 0xFF)
	hdr.FlowLabel = vcl & 0xFFFFF
	hdr.PayloadLength = binary.BigEndian.Uint16(buf[4:6])
	hdr.NextHeader = buf[6]
	hdr.HopLimit = buf[7]
	copy(hdr.Src[:], buf[8:24])
	copy(hdr.Dst[:], buf[24:40])
	return hdr, nil
}
