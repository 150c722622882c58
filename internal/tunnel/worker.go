package tunnel

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
	"github.com/ringlink/noded/internal/wire"
)

// localReadBufferSize is the chunk size read from the local TCP stream
// before handing it to wire.Send for framing/chunking toward the peer.
const localReadBufferSize = 30000

// sendTunnelMessage encodes a tunnel.Message as the Tunnel-tagged
// BackendMessage and dispatches it through the shared wire send path.
func sendTunnelMessage(ctx context.Context, swarm overlay.Swarm, peer overlay.Did, msg Message) error {
	return wire.Send(ctx, swarm, peer, envelope.Message{
		Type: envelope.MessageTunnel,
		Data: msg.Marshal(),
	})
}

// runWorker bridges conn and peer for the lifetime of t: one goroutine
// copies local reads to peer as TcpPackage messages, another drains
// t.RemoteChan() into conn. Either sub-loop exiting cancels ctx for the
// other; a third watcher goroutine closes conn as soon as ctx is
// cancelled from any source, since a blocked conn.Read or conn.Write
// does not otherwise observe context cancellation.
func (e *Engine) runWorker(ctx context.Context, t *Tunnel, conn net.Conn) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.localToRemote(gctx, t, conn) })
	g.Go(func() error { return e.remoteToLocal(gctx, t, conn) })

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			_ = conn.Close()
		case <-watchDone:
		}
	}()

	err := g.Wait()
	close(watchDone)

	reason := DefeatConnectionClosed
	var defeat *errDefeat
	switch {
	case errors.As(err, &defeat):
		reason = defeat.defeat
	case err != nil:
		reason = ClassifyIOError(err)
	}

	e.logger.Info("tunnel worker exiting",
		slog.Any("tid", t.Tid), slog.String("reason", reason.String()))

	t.markClosing()
	e.sendClose(context.Background(), t.Peer, t.Tid, reason)
	e.remove(t.Tid)
	e.metrics.TunnelClosed(reason)
	t.markDone()
}

// localToRemote reads from conn and forwards each chunk to peer as a
// TcpPackage, until ctx is cancelled or the read fails.
func (e *Engine) localToRemote(ctx context.Context, t *Tunnel, conn net.Conn) error {
	buf := make([]byte, localReadBufferSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, err := conn.Read(buf)
		if n > 0 {
			body := make([]byte, n)
			copy(body, buf[:n])
			sendErr := sendTunnelMessage(ctx, e.swarm, t.Peer, Message{
				Kind: KindPackage,
				Tid:  t.Tid,
				Body: body,
			})
			if sendErr != nil {
				return &errDefeat{defeat: DefeatWebrtcDatachannelSendFailed, cause: sendErr}
			}
		}
		if err != nil {
			return newDefeat(err)
		}
	}
}

// remoteToLocal drains t's remote queue and writes each package to conn,
// until ctx is cancelled or the write fails.
func (e *Engine) remoteToLocal(ctx context.Context, t *Tunnel, conn net.Conn) error {
	ch := t.RemoteChan()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case body, ok := <-ch:
			if !ok {
				return newDefeat(nil)
			}
			if _, err := conn.Write(body); err != nil {
				return newDefeat(err)
			}
		}
	}
}
