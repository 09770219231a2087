package stack

import "rtnet-go/internal/buffer"

// Compile-time configuration knobs. Table capacities, buffer counts,
// and the TCP timing constants are fixed here; there is no runtime
// resizing of any of them.
const (
	MaxRXBuffers      = 8
	MaxTXBuffers      = 8
	MaxTCPConnections = 4
	MaxRoutingEntries = 32
	MaxNeighborCache  = 16
	MaxMDNSCache      = 8
	MaxMDNSAnnounces  = 8

	// MTU is the largest upper-layer payload accepted on the egress
	// path. Buffers are sized above it (buffer.Size) so a full-MTU
	// payload still fits behind the Ethernet+IPv6+UDP headers the
	// engine prepends.
	MTU        = 1500
	BufferSize = buffer.Size

	TCPMaxRetries = 3
	TCPTimeoutMs  = 5000

	NeighborAgeHorizonMs = 30000
	RouteAgeHorizonMs    = 300000

	EphemeralPortStart = 49152

	// PeriodicTaskIntervalMs documents the cadence PeriodicTask is
	// expected to be driven at; the stack never sleeps internally, so
	// nothing enforces it.
	PeriodicTaskIntervalMs = 100
)
