// Package hostloop is a reference platform.Hooks implementation for
// running this stack on a development host: a reentrant
// counting-mutex critical section, a wall-clock-derived millisecond
// counter, and a software loopback transmit path built on a
// connected pair of Unix datagram sockets via golang.org/x/sys/unix.
package hostloop

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"rtnet-go/internal/platform"
)

// Platform implements platform.Hooks for host-side testing and the
// rtnetctl CLI. It is NOT a production embedded platform hook —
// it exists so the stack can run, loop packets back to itself, and be
// demonstrated without real Ethernet hardware.
type Platform struct {
	mu    sync.Mutex
	depth int

	start time.Time

	loopback  bool
	fds       [2]int
	onReceive func(frame []byte)
}

// New constructs a host platform. When loopback is true, frames
// handed to Transmit are written to an internal socketpair and, if
// SetReceiveHandler has been called, read straight back and delivered
// to that handler.
func New(loopback bool) (*Platform, error) {
	p := &Platform{start: time.Now(), loopback: loopback}
	if loopback {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
		if err != nil {
			return nil, err
		}
		// Non-blocking send side: with no reader the queue fills, and
		// Transmit must then drop the frame rather than block.
		if err := unix.SetNonblock(fds[0], true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return nil, err
		}
		p.fds = [2]int{fds[0], fds[1]}
	}
	return p, nil
}

// Close releases the loopback socketpair, if any.
func (p *Platform) Close() error {
	if !p.loopback {
		return nil
	}
	_ = unix.Close(p.fds[0])
	return unix.Close(p.fds[1])
}

// CriticalSectionEnter/Exit implement a reentrant counting guard: the
// mutex is taken on the outermost Enter and released on the matching
// outermost Exit, so nested Enter/Enter/Exit/Exit from the same
// caller never deadlocks. Taking the lock only at depth 0 means this
// guard is safe only when every caller of the stack is itself
// single-threaded (the CLI in this repository is);
// it is not a general-purpose recursive mutex, which is why
// internal/stack never calls Acquire from within a method it already
// holds the section for.
func (p *Platform) CriticalSectionEnter() {
	if p.depth == 0 {
		p.mu.Lock()
	}
	p.depth++
}

func (p *Platform) CriticalSectionExit() {
	p.depth--
	if p.depth == 0 {
		p.mu.Unlock()
	}
}

// NowMs returns milliseconds since the platform was constructed,
// truncated to 32 bits so callers exercise the same wraparound
// arithmetic the embedded target sees.
func (p *Platform) NowMs() uint32 {
	return uint32(time.Since(p.start).Milliseconds())
}

// Transmit writes frame to the loopback socket (if enabled) and, if a
// receive handler is registered, invokes it inline — standing in for
// the Ethernet ISR re-delivering the frame to ProcessRxPacket.
func (p *Platform) Transmit(frame []byte) {
	if !p.loopback {
		return
	}
	_, _ = unix.Write(p.fds[0], frame)
	if p.onReceive != nil {
		buf := make([]byte, len(frame))
		n, err := unix.Read(p.fds[1], buf)
		if err == nil {
			p.onReceive(buf[:n])
		}
	}
}

// SetReceiveHandler registers the callback invoked with looped-back
// frames, e.g. to feed Transmit output straight back into RX
// processing. Without a handler, looped-back frames stay unread.
func (p *Platform) SetReceiveHandler(fn func(frame []byte)) {
	p.onReceive = fn
}

var _ platform.Hooks = (*Platform)(nil)
