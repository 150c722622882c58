package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ringlink/noded/internal/overlay"
)

// defaultDialTimeout is used when the engine is built without
// WithDialTimeout.
const defaultDialTimeout = 10 * time.Second

// Resolver looks up the local network address a service name dials to.
// The engine never creates services implicitly; an unknown name is a
// dial failure, not a panic.
type Resolver func(service string) (addr string, ok bool)

// Metrics is the subset of observability the engine reports through;
// satisfied by internal/metrics.Collector, and by a no-op in tests.
type Metrics interface {
	TunnelOpened()
	TunnelClosed(reason Defeat)
}

type noopMetrics struct{}

func (noopMetrics) TunnelOpened()       {}
func (noopMetrics) TunnelClosed(Defeat) {}

// ErrDuplicateTunnel is returned when a tid is already registered.
var ErrDuplicateTunnel = errors.New("tunnel: tid already in use")

// Engine is the per-tid state and I/O bridge between a local TCP stream
// and a remote DID: the TunnelEngine of the design. It owns a keyed map
// of Tunnels; each Tunnel owns its own worker task and cancel handle.
type Engine struct {
	mu      sync.Mutex
	tunnels map[uuid.UUID]*Tunnel

	swarm       overlay.Swarm
	resolve     Resolver
	dialTimeout time.Duration
	logger      *slog.Logger
	metrics     Metrics
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithDialTimeout overrides the default 10s dial timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(e *Engine) { e.dialTimeout = d }
}

// WithMetrics wires a Metrics sink into the engine.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine bound to swarm for outbound sends and
// resolve for turning TcpDial service names into local addresses.
func NewEngine(swarm overlay.Swarm, resolve Resolver, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		tunnels:     make(map[uuid.UUID]*Tunnel),
		swarm:       swarm,
		resolve:     resolve,
		dialTimeout: defaultDialTimeout,
		logger:      logger.With(slog.String("component", "tunnel.engine")),
		metrics:     noopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch routes a decoded TunnelMessage from peer to the matching
// operation, per the state machine in the design: TcpDial dials out to
// the locally configured service; TcpPackage/TcpClose operate on an
// existing Tunnel.
func (e *Engine) Dispatch(ctx context.Context, msg Message, peer overlay.Did) {
	switch msg.Kind {
	case KindDial:
		e.dial(ctx, msg.Tid, msg.Service, peer)
	case KindPackage:
		e.acceptPackage(ctx, msg.Tid, msg.Body)
	case KindClose:
		e.acceptClose(msg.Tid, msg.Reason)
	default:
		e.logger.Debug("dropping tunnel message of unrecognized kind", slog.Any("kind", msg.Kind))
	}
}

// dial resolves service, opens a bounded TCP connection, and on success
// starts a worker bridging it to peer; on failure it replies with a
// TcpClose carrying the classified TunnelDefeat.
//
// A tid already present in the tunnel table means this TcpDial is the
// initiating side receiving its own dial echoed back as an acknowledgment
// (OpenLocal already registered it), not a fresh request to service: no
// second connection is opened.
func (e *Engine) dial(ctx context.Context, tid uuid.UUID, service string, peer overlay.Did) {
	if e.lookup(tid) != nil {
		e.logger.Debug("tunnel dial: tid already registered, treating as ack", slog.Any("tid", tid))
		return
	}

	addr, ok := e.resolve(service)
	if !ok {
		e.logger.Warn("tunnel dial: unknown service", slog.String("service", service), slog.Any("tid", tid))
		e.sendClose(context.Background(), peer, tid, DefeatConnectionRefused)
		return
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.dialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		reason := DefeatUnknown
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			reason = DefeatConnectionTimeout
		} else {
			reason = ClassifyIOError(err)
		}
		e.logger.Warn("tunnel dial failed",
			slog.String("service", service), slog.String("addr", addr),
			slog.Any("tid", tid), slog.String("reason", reason.String()))
		e.sendClose(context.Background(), peer, tid, reason)
		return
	}

	if !e.startWorker(tid, peer, conn) {
		_ = conn.Close()
		e.logger.Warn("tunnel dial: duplicate tid", slog.Any("tid", tid))
		return
	}

	e.logger.Info("tunnel dial succeeded", slog.String("service", service), slog.Any("tid", tid))
	e.send(context.Background(), peer, Message{Kind: KindDial, Tid: tid, Service: service})
}

// OpenLocal attaches a locally accepted TCP stream to a fresh Tunnel and
// announces it to peer as a TcpDial, for the initiating side of a tunnel.
func (e *Engine) OpenLocal(tid uuid.UUID, conn net.Conn, peer overlay.Did, service string) error {
	if !e.startWorker(tid, peer, conn) {
		return fmt.Errorf("open local tunnel %s: %w", tid, ErrDuplicateTunnel)
	}
	e.send(context.Background(), peer, Message{Kind: KindDial, Tid: tid, Service: service})
	return nil
}

// acceptPackage pushes body into tid's Tunnel. If no Tunnel exists for
// tid, the message is dropped and logged; the engine never creates a
// Tunnel implicitly from a package.
func (e *Engine) acceptPackage(ctx context.Context, tid uuid.UUID, body []byte) {
	t := e.lookup(tid)
	if t == nil {
		e.logger.Debug("dropping package for unknown tunnel", slog.Any("tid", tid))
		return
	}
	t.pushRemote(ctx, body)
}

// acceptClose transitions tid's Tunnel to Closing; the cancellation this
// triggers unwinds the worker, which then drops the record.
func (e *Engine) acceptClose(tid uuid.UUID, _ Defeat) {
	t := e.lookup(tid)
	if t == nil {
		e.logger.Debug("close for unknown tunnel", slog.Any("tid", tid))
		return
	}
	e.dropTunnel(t)
}

// startWorker registers a new Tunnel for tid and launches its worker
// bridging conn to peer. Returns false if tid is already registered or
// the Tunnel was already listening (both signal a duplicate).
func (e *Engine) startWorker(tid uuid.UUID, peer overlay.Did, conn net.Conn) bool {
	t, isNew := e.register(tid, peer)
	if !isNew {
		return false
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	if !t.startListening(conn, cancel) {
		cancel()
		return false
	}

	e.metrics.TunnelOpened()
	go e.runWorker(workerCtx, t, conn)
	return true
}

func (e *Engine) register(tid uuid.UUID, peer overlay.Did) (*Tunnel, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.tunnels[tid]; ok {
		return existing, false
	}
	t := newTunnel(tid, peer)
	e.tunnels[tid] = t
	return t, true
}

func (e *Engine) lookup(tid uuid.UUID) *Tunnel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tunnels[tid]
}

func (e *Engine) remove(tid uuid.UUID) {
	e.mu.Lock()
	delete(e.tunnels, tid)
	e.mu.Unlock()
}

// dropTunnel cancels t immediately, closing its stream, and removes the
// record from the map right away: "dropping a Tunnel cancels it" is an
// action on the record's visibility, not a promise the goroutine has
// exited yet. abortGrace later it logs a warning if the worker has still
// not finished; it takes no further action against the worker.
func (e *Engine) dropTunnel(t *Tunnel) {
	t.markClosing()
	t.cancelNow()
	e.remove(t.Tid)

	time.AfterFunc(abortGrace, func() {
		select {
		case <-t.done:
		default:
			e.logger.Warn("tunnel worker did not unwind within grace period, abandoning",
				slog.Any("tid", t.Tid))
		}
	})
}

// send marshals a TunnelMessage into a BackendMessage and hands it to the
// shared wire send path, fragmenting if it exceeds BackendMTU. Send
// failures are logged; the caller never blocks further on them.
func (e *Engine) send(ctx context.Context, peer overlay.Did, msg Message) {
	if err := sendTunnelMessage(ctx, e.swarm, peer, msg); err != nil {
		e.logger.Warn("tunnel send failed", slog.Any("tid", msg.Tid), slog.String("error", err.Error()))
	}
}

// sendClose is send specialized for the KindClose case used throughout
// failure paths.
func (e *Engine) sendClose(ctx context.Context, peer overlay.Did, tid uuid.UUID, reason Defeat) {
	e.send(ctx, peer, Message{Kind: KindClose, Tid: tid, Reason: reason})
}

// Snapshot is a read-only view of a Tunnel for status/introspection
// surfaces; no references to mutable Tunnel state are held.
type Snapshot struct {
	Tid   uuid.UUID
	Peer  overlay.Did
	State State
}

// Snapshots returns a point-in-time view of every live Tunnel.
func (e *Engine) Snapshots() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Snapshot, 0, len(e.tunnels))
	for _, t := range e.tunnels {
		out = append(out, Snapshot{Tid: t.Tid, Peer: t.Peer, State: t.State()})
	}
	return out
}
