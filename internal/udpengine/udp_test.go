package udpengine

import (
	"testing"

	"rtnet-go/internal/wire"
)

func TestBuildAndParseDatagram(t *testing.T) {
	srcMAC := wire.MACAddr{0, 0xDE, 0xAD, 0xBE, 0xEF, 0x01}
	dstMAC := wire.MACAddr{0, 0xDE, 0xAD, 0xBE, 0xEF, 0x02}
	src, _ := wire.ParseIPv6("fe80::10")
	dst, _ := wire.ParseIPv6("2001:db8::1")
	payload := []byte("hello from host")

	buf := make([]byte, HeaderOverhead+len(payload))
	n, err := BuildDatagram(buf, srcMAC, dstMAC, src, dst, 12345, 53, payload)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Fatalf("BuildDatagram length = %d, want %d", n, len(buf))
	}

	ipOff := wire.EthernetHeaderLen
	udpOff := ipOff + wire.IPv6HeaderLen
	hdr, gotPayload, err := ParseDatagram(buf[udpOff:])
	if err != nil {
		t.Fatal(err)
	}
	if hdr.SrcPort != 12345 || hdr.DstPort != 53 {
		t.Fatalf("unexpected header: %+v", hdr)
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("payload mismatch: got %q, want %q", gotPayload, payload)
	}

	pseudo := wire.PseudoHeaderSum(src, dst, hdr.Length, wire.NextHeaderUDP)
	if sum := wire.Checksum(buf[udpOff:udpOff+int(hdr.Length)], pseudo); sum != 0 {
		t.Fatalf("checksum validation failed, residual = %#x", sum)
	}
}

func TestBuildDatagramRejectsSmallBuffer(t *testing.T) {
	var mac wire.MACAddr
	var addr wire.IPv6Addr
	_, err := BuildDatagram(make([]byte, 4), mac, mac, addr, addr, 1, 2, []byte("x"))
	if err == nil {
		t.Fatal("expected error for undersized buffer")
	}
}

func TestReceiveRegistry(t *testing.T) {
	reg := NewReceiveRegistry()
	var gotPort uint16
	reg.Register(53, func(payload []byte, srcAddr wire.IPv6Addr, srcPort uint16) {
		gotPort = srcPort
	})

	if !reg.Deliver(53, []byte("x"), wire.IPv6Addr{}, 9999) {
		t.Fatal("expected registered handler to be invoked")
	}
	if gotPort != 9999 {
		t.Fatalf("handler saw srcPort %d, want 9999", gotPort)
	}
	if reg.Deliver(54, []byte("x"), wire.IPv6Addr{}, 1) {
		t.Fatal("expected Deliver on unregistered port to report false")
	}
}
