// Package tcplite implements a reduced connection-oriented transport:
// a fixed connection table, a collapsed RFC 793 state machine, MSS
// segmentation, and retransmission of each queued segment on its own
// timestamp, capped at a fixed retry count.
package tcplite

import (
	"fmt"

	"rtnet-go/internal/wire"
)

const (
	// MSS is the IPv6-minimum-MTU-derived TCP-Lite segment size.
	MSS = 1280
	// MaxInFlightSegments bounds the per-connection retransmit queue;
	// at MSS bytes each this is 5120 bytes, more than the 4096-byte
	// window Connect advertises.
	MaxInFlightSegments = 4
)

var (
	ErrInvalidHandle = fmt.Errorf("tcplite: invalid_param: bad handle")
	ErrNotConnected  = fmt.Errorf("tcplite: connection: not in a sendable state")
	ErrQueueFull     = fmt.Errorf("tcplite: no_buffer: retransmit queue full")
	ErrNoFreeSlot    = fmt.Errorf("tcplite: no_buffer: connection table full")
	ErrDuplicate     = fmt.Errorf("tcplite: invalid_param: duplicate 4-tuple")
)

type segment struct {
	valid       bool
	seq         uint32
	length      uint16
	timestampMs uint32
	retries     uint8
	data        [MSS]byte
}

// Connection is one TCP-Lite connection control block. The table
// index that owns it is its stable handle for the connection's
// lifetime; the index may be reused only after the occupant reaches
// CLOSED.
type Connection struct {
	LocalAddr, RemoteAddr wire.IPv6Addr
	LocalPort, RemotePort uint16

	State uint8

	SendNext    uint32
	SendUnacked uint32
	RecvNext    uint32

	SendWindow uint16
	RecvWindow uint16

	RetransmitCount uint8
	LastActivityMs  uint32

	InUse bool

	segments [MaxInFlightSegments]segment
}

// Table is the fixed-capacity TCP-Lite connection table.
type Table struct {
	conns      []Connection
	mss        uint16
	maxRetries uint8
	timeoutMs  uint32
}

// NewTable builds a connection table with the given capacity, retry
// cap, and retransmission timeout.
func NewTable(capacity int, maxRetries uint8, timeoutMs uint32) *Table {
	return &Table{
		conns:      make([]Connection, capacity),
		mss:        MSS,
		maxRetries: maxRetries,
		timeoutMs:  timeoutMs,
	}
}

func (t *Table) Cap() int { return len(t.conns) }

// FindByTuple returns the handle of the in-use connection matching the
// given 4-tuple, or -1. The tuple is in Connect's perspective (local =
// this node), so a caller holding an inbound segment passes its
// destination as local and its source as remote.
func (t *Table) FindByTuple(localAddr, remoteAddr wire.IPv6Addr, localPort, remotePort uint16) int {
	for i := range t.conns {
		c := &t.conns[i]
		if c.InUse && c.LocalAddr.Equal(localAddr) && c.RemoteAddr.Equal(remoteAddr) &&
			c.LocalPort == localPort && c.RemotePort == remotePort {
			return i
		}
	}
	return -1
}

// Get revalidates and returns the connection at handle, or nil.
func (t *Table) Get(handle int) *Connection {
	if handle < 0 || handle >= len(t.conns) {
		return nil
	}
	return &t.conns[handle]
}

// Connect allocates a free slot and transitions it CLOSED -> SYN_SENT.
// The caller (stack layer) is responsible for the route check and for
// supplying an already-allocated ephemeral local port; Connect itself
// only owns connection-table bookkeeping.
func (t *Table) Connect(localAddr, remoteAddr wire.IPv6Addr, localPort, remotePort uint16, initialSeq, now uint32) (int, error) {
	for i := range t.conns {
		c := &t.conns[i]
		if c.InUse && c.LocalAddr.Equal(localAddr) && c.RemoteAddr.Equal(remoteAddr) &&
			c.LocalPort == localPort && c.RemotePort == remotePort {
			return -1, ErrDuplicate
		}
	}

	for i := range t.conns {
		if t.conns[i].InUse {
			continue
		}
		t.conns[i] = Connection{
			LocalAddr:      localAddr,
			RemoteAddr:     remoteAddr,
			LocalPort:      localPort,
			RemotePort:     remotePort,
			State:          SynSent,
			SendNext:       initialSeq,
			SendUnacked:    initialSeq,
			RecvWindow:     4096,
			SendWindow:     4096,
			LastActivityMs: now,
			InUse:          true,
		}
		return i, nil
	}

	return -1, ErrNoFreeSlot
}

// HandleSynAck transitions SYN_SENT -> ESTABLISHED on receipt of
// SYN+ACK (the stack layer emits the matching ACK).
func (t *Table) HandleSynAck(handle int, now uint32) error {
	c := t.Get(handle)
	if c == nil || !c.InUse {
		return ErrInvalidHandle
	}
	if c.State != SynSent {
		return ErrNotConnected
	}
	c.State = Established
	c.RetransmitCount = 0
	c.LastActivityMs = now
	return nil
}

// Send segments data into MSS-sized chunks, queues each for
// retransmission, and advances SendNext. Only valid from ESTABLISHED
// or CLOSE_WAIT.
func (t *Table) Send(handle int, data []byte, now uint32) error {
	c := t.Get(handle)
	if c == nil {
		return ErrInvalidHandle
	}
	if !c.InUse {
		return ErrNotConnected
	}
	if c.State != Established && c.State != CloseWait {
		return ErrNotConnected
	}

	for off := 0; off < len(data); off += int(t.mss) {
		end := off + int(t.mss)
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]

		slot := -1
		for i := range c.segments {
			if !c.segments[i].valid {
				slot = i
				break
			}
		}
		if slot == -1 {
			return ErrQueueFull
		}

		seg := &c.segments[slot]
		seg.valid = true
		seg.seq = c.SendNext
		seg.length = uint16(len(chunk))
		seg.timestampMs = now
		seg.retries = 0
		copy(seg.data[:], chunk)

		c.SendNext += uint32(len(chunk))
	}

	c.LastActivityMs = now
	return nil
}

// AckSegments marks every in-flight segment that ends at or before
// upTo (seq+length <= upTo) as acknowledged (freed), and advances
// SendUnacked.
func (t *Table) AckSegments(handle int, upTo uint32, now uint32) error {
	c := t.Get(handle)
	if c == nil || !c.InUse {
		return ErrInvalidHandle
	}
	for i := range c.segments {
		seg := &c.segments[i]
		if seg.valid && seqLess(seg.seq+uint32(seg.length), upTo+1) {
			seg.valid = false
		}
	}
	if seqLess(c.SendUnacked, upTo) {
		c.SendUnacked = upTo
	}
	c.LastActivityMs = now
	return nil
}

func seqLess(a, b uint32) bool {
	return int32(a-b) < 0
}

// HandleFin processes an inbound FIN: ESTABLISHED moves to CLOSE_WAIT
// (the stack layer still owes the peer an eventual close), FIN_WAIT
// moves straight to CLOSED. There is no TIME_WAIT hold and no
// half-closed retention.
func (t *Table) HandleFin(handle int, seq uint32, now uint32) error {
	c := t.Get(handle)
	if c == nil || !c.InUse {
		return ErrInvalidHandle
	}
	c.RecvNext = seq + 1
	switch c.State {
	case Established:
		c.State = CloseWait
	case FinWait:
		c.State = Closed
		c.InUse = false
	default:
		c.State = Closed
		c.InUse = false
	}
	c.LastActivityMs = now
	return nil
}

// HandleAck processes an inbound pure ACK, freeing acknowledged
// segments and completing a CLOSING teardown once nothing remains in
// flight. A FIN_WAIT connection stays open until the peer's FIN
// arrives (HandleFin).
func (t *Table) HandleAck(handle int, ackNum uint32, now uint32) error {
	c := t.Get(handle)
	if c == nil || !c.InUse {
		return ErrInvalidHandle
	}
	if err := t.AckSegments(handle, ackNum, now); err != nil {
		return err
	}
	if c.State == Closing {
		for i := range c.segments {
			if c.segments[i].valid {
				return nil
			}
		}
		c.State = Closed
		c.InUse = false
	}
	return nil
}

// HandleRst aborts the connection immediately; RST is an
// unconditional reset in every state.
func (t *Table) HandleRst(handle int) {
	t.ForceClosed(handle)
}

// Close transitions toward CLOSED: ESTABLISHED goes to FIN_WAIT (FIN
// emission is the stack layer's job), CLOSE_WAIT goes to CLOSING,
// anything else goes straight to CLOSED. InUse clears only once
// CLOSED is reached.
func (t *Table) Close(handle int, now uint32) error {
	c := t.Get(handle)
	if c == nil {
		return ErrInvalidHandle
	}
	if !c.InUse {
		return ErrNotConnected
	}

	switch c.State {
	case Established:
		c.State = FinWait
	case CloseWait:
		c.State = Closing
	default:
		c.State = Closed
		c.InUse = false
	}
	c.LastActivityMs = now
	return nil
}

// ForceClosed abruptly terminates a connection (timeout, retransmit
// exhaustion, or periodic idle sweep).
func (t *Table) ForceClosed(handle int) {
	c := t.Get(handle)
	if c == nil {
		return
	}
	c.State = Closed
	c.InUse = false
	for i := range c.segments {
		c.segments[i].valid = false
	}
}

// RetransmitJob describes one segment the stack layer must re-emit.
type RetransmitJob struct {
	Handle int
	Seq    uint32
	Data   []byte
}

// DueRetransmits scans every connection for in-flight segments older
// than the configured timeout. Segments under the retry cap are
// returned for re-emission, with their timestamp refreshed, the retry
// count incremented, and the connection's activity stamp renewed so
// the idle sweep leaves a retrying connection alone; connections
// whose retry cap is exceeded are force-closed and reported via
// expired.
func (t *Table) DueRetransmits(now uint32) (jobs []RetransmitJob, expired []int) {
	for i := range t.conns {
		c := &t.conns[i]
		if !c.InUse {
			continue
		}
		for s := range c.segments {
			seg := &c.segments[s]
			if !seg.valid {
				continue
			}
			if now-seg.timestampMs <= t.timeoutMs {
				continue
			}
			if seg.retries >= t.maxRetries {
				expired = append(expired, i)
				break
			}
			seg.retries++
			seg.timestampMs = now
			c.RetransmitCount = seg.retries
			c.LastActivityMs = now
			data := make([]byte, seg.length)
			copy(data, seg.data[:seg.length])
			jobs = append(jobs, RetransmitJob{Handle: i, Seq: seg.seq, Data: data})
		}
	}

	for _, idx := range expired {
		t.ForceClosed(idx)
	}

	return jobs, expired
}

// DueSynRetransmits scans for SYN_SENT connections whose handshake
// timer elapsed. Connections under the retry cap get their counter
// bumped and timer refreshed and are returned for SYN re-emission;
// those past the cap are force-closed and reported via expired.
func (t *Table) DueSynRetransmits(now uint32) (retry []int, expired []int) {
	for i := range t.conns {
		c := &t.conns[i]
		if !c.InUse || c.State != SynSent {
			continue
		}
		if now-c.LastActivityMs <= t.timeoutMs {
			continue
		}
		if c.RetransmitCount >= t.maxRetries {
			expired = append(expired, i)
			continue
		}
		c.RetransmitCount++
		c.LastActivityMs = now
		retry = append(retry, i)
	}

	for _, idx := range expired {
		t.ForceClosed(idx)
	}

	return retry, expired
}

// AgeIdle force-closes any in-use connection whose last activity
// exceeds horizonMs. Returns the handles that were closed.
func (t *Table) AgeIdle(now uint32, horizonMs uint32) []int {
	var closed []int
	for i := range t.conns {
		c := &t.conns[i]
		if c.InUse && now-c.LastActivityMs > horizonMs {
			t.ForceClosed(i)
			closed = append(closed, i)
		}
	}
	return closed
}
