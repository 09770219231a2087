package wire

import (
	"encoding/binary"
	"fmt"
)

// TCPHeaderLen is the fixed header length this stack emits and
// accepts; TCP-Lite never negotiates options, so DataOffset is always
// 5 (20 bytes).
const TCPHeaderLen = 20

// TCP-Lite flag bits (subset of RFC 793: no window scaling, no SACK).
const (
	TCPFlagFIN = 1 << 0
	TCPFlagSYN = 1 << 1
	TCPFlagRST = 1 << 2
	TCPFlagPSH = 1 << 3
	TCPFlagACK = 1 << 4
)

// TCPHeader is the reduced 20-byte TCP-Lite header: no options, no
// window scaling, no urgent pointer semantics beyond the raw field.
type TCPHeader struct {
	SrcPort    uint16
	DstPort    uint16
	SeqNum     uint32
	AckNum     uint32
	DataOffset uint8 // in 32-bit words, always 5 here
	Flags      uint8
	Window     uint16
	Checksum   uint16
	UrgentPtr  uint16
}

func EncodeTCPHeader(buf []byte, hdr *TCPHeader) error {
	if len(buf) < TCPHeaderLen {
		return fmt.Errorf("wire: tcp encode buffer too small: %d", len(buf))
	}
	binary.BigEndian.PutUint16(buf[0:2], hdr.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], hdr.DstPort)
	binary.BigEndian.PutUint32(buf[4:8], hdr.SeqNum)
	binary.BigEndian.PutUint32(buf[8:12], hdr.AckNum)
	buf[12] = hdr.DataOffset << 4
	buf[13] = hdr.Flags
	binary.BigEndian.PutUint16(buf[14:16], hdr.Window)
	binary.BigEndian.PutUint16(buf[16:18], hdr.Checksum)
	binary.BigEndian.PutUint16(buf[18:20], hdr.UrgentPtr)
	return nil
}

func DecodeTCPHeader(buf []byte) (TCPHeader, error) {
	var hdr TCPHeader
	if len(buf) < TCPHeaderLen {
		return hdr, fmt.Errorf("wire: tcp header too short: %d bytes", len(buf))
	}
	hdr.SrcPort = binary.BigEndian.Uint16(buf[0:2])
	hdr.DstPort = binary.BigEndian.Uint16(buf[2:4])
	hdr.SeqNum = binary.BigEndian.Uint32(buf[4:8])
	hdr.AckNum = binary.BigEndian.Uint32(buf[8:12])
	hdr.DataOffset = buf[12] >> 4
	hdr.Flags = buf[13]
	hdr.Window = binary.BigEndian.Uint16(buf[14:16])
	hdr.Checksum = binary.BigEndian.Uint16(buf[16:18])
	hdr.UrgentPtr = binary.BigEndian.Uint16(buf[18:20])
	return hdr, nil
}

func HasFlag(flags, bit uint8) bool {
	return flags&bit != 0
}
