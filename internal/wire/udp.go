package wire

import (
	"encoding/binary"
	"fmt"
)

const UDPHeaderLen = 8

// UDPHeader is the fixed 8-byte UDP header (RFC 768).
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

func EncodeUDPHeader(buf []byte, hdr *UDPHeader) error {
	if len(buf) < UDPHeaderLen {
		return fmt.Errorf("wire: udp encode buffer too small: %d", len(buf))
	}
	binary.BigEndian.PutUint16(buf[0:2], hdr.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], hdr.DstPort)
	binary.BigEndian.PutUint16(buf[4:6], hdr.Length)
	binary.BigEndian.PutUint16(buf[6:8], hdr.Checksum)
	return nil
}

func DecodeUDPHeader(buf []byte) (UDPHeader, error) {
	var hdr UDPHeader
	if len(buf) < UDPHeaderLen {
		return hdr, fmt.Errorf("wire: udp header too short: %d bytes", len(buf))
	}
	hdr.SrcPort = binary.BigEndian.Uint16(buf[0:2])
	hdr.DstPort = binary.BigEndian.Uint16(buf[2:4])
	hdr.Length = binary.BigEndian.Uint16(buf[4:6])
	hdr.Checksum = binary.BigEndian.Uint16(buf[6:8])
	return hdr, nil
}
