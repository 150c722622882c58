package tunnel

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ringlink/noded/internal/overlay"
)

// remoteTxCapacity bounds the queue of remote-originated packages waiting
// to be written to the local TCP stream. A full queue applies natural
// backpressure to the remote sender through the overlay channel; the
// engine never drops packages to relieve pressure.
const remoteTxCapacity = 1024

// abortGrace is how long a cancelled Tunnel's worker is given to unwind
// before dropTunnel logs it as stuck. Only a warning is logged; the
// goroutine is not stopped by any other means.
const abortGrace = 3 * time.Second

// State is a Tunnel's position in its lifecycle.
type State uint8

const (
	// StatePending: record created, no I/O task running yet.
	StatePending State = iota
	// StateListening: worker spawned, remoteTx accepts packages.
	StateListening
	// StateClosing: cancel fired, worker unwinding.
	StateClosing
	// StateGone: record dropped.
	StateGone
)

// String returns the human-readable name of s.
func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateListening:
		return "Listening"
	case StateClosing:
		return "Closing"
	case StateGone:
		return "Gone"
	default:
		return "Unknown"
	}
}

// Tunnel is the per-tid record on both ends of a logical bidirectional
// byte pipe. It owns exactly one worker task and the cancel handle that
// bounds its lifetime. The worker is handed the *Tunnel itself: it reads
// the tid, peer and remote queue from it and drives its state
// transitions through it.
type Tunnel struct {
	Tid  uuid.UUID
	Peer overlay.Did

	mu       sync.Mutex
	state    State
	remoteTx chan []byte
	conn     net.Conn
	cancel   context.CancelFunc
	done     chan struct{}
}

func newTunnel(tid uuid.UUID, peer overlay.Did) *Tunnel {
	return &Tunnel{
		Tid:  tid,
		Peer: peer,
		done: make(chan struct{}),
	}
}

// State returns the Tunnel's current lifecycle state.
func (t *Tunnel) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// startListening idempotently transitions Pending -> Listening, attaching
// conn and the cancellation function the worker will observe. A second
// call is a no-op and returns false.
func (t *Tunnel) startListening(conn net.Conn, cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePending {
		return false
	}
	t.conn = conn
	t.cancel = cancel
	t.remoteTx = make(chan []byte, remoteTxCapacity)
	t.state = StateListening
	return true
}

// pushRemote enqueues body for delivery to the local TCP stream. It
// blocks only until ctx is cancelled or the Tunnel's worker has exited
// (t.done is closed), giving the full-queue backpressure described in the
// design without risking a permanent block on a tunnel that is already
// torn down.
func (t *Tunnel) pushRemote(ctx context.Context, body []byte) bool {
	t.mu.Lock()
	ch := t.remoteTx
	t.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case ch <- body:
		return true
	case <-ctx.Done():
		return false
	case <-t.done:
		return false
	}
}

// RemoteChan returns the channel the worker's remoteToLocal loop reads
// queued packages from. Returns nil if the Tunnel never reached
// Listening.
func (t *Tunnel) RemoteChan() <-chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remoteTx
}

// markClosing transitions to Closing. Idempotent.
func (t *Tunnel) markClosing() {
	t.mu.Lock()
	t.state = StateClosing
	t.mu.Unlock()
}

// cancelNow fires the cancellation handle and closes the underlying
// stream so a blocked local read is interrupted immediately. Idempotent
// and non-blocking, satisfying "cancel fires within one iteration of
// either sub-loop or within the OS timeout on a read".
func (t *Tunnel) cancelNow() {
	t.mu.Lock()
	t.state = StateClosing
	cancel := t.cancel
	conn := t.conn
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// markDone signals that the worker has fully unwound.
func (t *Tunnel) markDone() {
	t.mu.Lock()
	t.state = StateGone
	t.mu.Unlock()
	close(t.done)
}
