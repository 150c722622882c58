// Package backend implements the node's message pipeline: unwrapping the
// overlay envelope, reassembling chunked payloads, decoding the common
// BackendMessage, broadcasting it to observers, and dispatching it to the
// endpoint registered for its message type.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ringlink/noded/internal/chunk"
	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
)

// Backend is the facade every inbound overlay CustomMessage passes
// through. OnPayload is its single entrypoint, mirroring the design's
// "on_payload" operation.
type Backend struct {
	swarm       overlay.Swarm
	router      *Router
	reassembler *chunk.Reassembler
	broadcaster *broadcaster
	logger      *slog.Logger
	metrics     Metrics
}

// Metrics is the subset of observability Backend reports through.
type Metrics interface {
	MessageAccepted(msgType envelope.MessageType)
	MessageDropped(msgType envelope.MessageType, reason string)
	ChunkGroupsInFlight(delta int)
}

type noopMetrics struct{}

func (noopMetrics) MessageAccepted(envelope.MessageType)        {}
func (noopMetrics) MessageDropped(envelope.MessageType, string) {}
func (noopMetrics) ChunkGroupsInFlight(int)                     {}

// New constructs a Backend. router should already have its endpoints
// registered; Backend never registers endpoints on its own behalf.
func New(swarm overlay.Swarm, router *Router, logger *slog.Logger, metrics Metrics) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Backend{
		swarm:       swarm,
		router:      router,
		reassembler: chunk.New(logger),
		broadcaster: newBroadcaster(),
		logger:      logger.With(slog.String("component", "backend")),
		metrics:     metrics,
	}
}

// Subscribe registers a new observer of every decoded BackendMessage the
// node accepts. Callers must Unsubscribe when done.
func (b *Backend) Subscribe() *Subscriber {
	return b.broadcaster.Subscribe()
}

// Unsubscribe releases a Subscriber previously returned by Subscribe.
func (b *Backend) Unsubscribe(s *Subscriber) {
	b.broadcaster.Unsubscribe(s)
}

// OnPayload is the node's single inbound entrypoint: it unwraps the
// overlay envelope, reassembles a chunked payload if necessary, decodes
// the BackendMessage, broadcasts it to subscribers, dispatches it to the
// registered endpoint, and submits any resulting events back to the
// swarm.
//
// Malformed input at any decode stage is logged and dropped rather than
// returned as an error: a bad peer must never be able to fault the
// node. Only a failure to submit the endpoint's own events back into
// the swarm propagates, since that is a structural failure of this
// node's own overlay connection rather than something a peer caused.
func (b *Backend) OnPayload(ctx context.Context, payload overlay.Payload) error {
	if payload.Destination != b.swarm.SelfDID() {
		return nil
	}

	flag, body, err := envelope.Unwrap(payload.Message.Data)
	if err != nil {
		b.logger.Debug("dropping payload with bad envelope", slog.String("error", err.Error()))
		b.metrics.MessageDropped(envelope.MessageUnknown, "bad_envelope")
		return nil
	}

	full, ready, err := b.reassemble(flag, body)
	if err != nil {
		b.logger.Debug("dropping payload that failed reassembly", slog.String("error", err.Error()))
		b.metrics.MessageDropped(envelope.MessageUnknown, "bad_chunk")
		return nil
	}
	if !ready {
		return nil
	}

	msg, err := envelope.Unmarshal(full)
	if err != nil {
		b.logger.Debug("dropping payload with malformed message", slog.String("error", err.Error()))
		b.metrics.MessageDropped(envelope.MessageUnknown, "bad_message")
		return nil
	}

	b.metrics.MessageAccepted(msg.Type)
	b.broadcaster.publish(msg)

	events := b.router.Dispatch(ctx, payload.OriginSender, msg)
	if len(events) == 0 {
		return nil
	}

	if err := b.swarm.SubmitEvents(ctx, events); err != nil {
		return fmt.Errorf("submit events for %s: %w", msg.Type, err)
	}
	return nil
}

// reassemble applies the Framer flag: FlagInline passes body straight
// through as already-complete, FlagChunked threads it through the
// Reassembler and only returns ready=true once every fragment of its
// chunk group has arrived.
func (b *Backend) reassemble(flag byte, body []byte) (full []byte, ready bool, err error) {
	switch flag {
	case envelope.FlagInline:
		return body, true, nil
	case envelope.FlagChunked:
		frag, err := chunk.Unmarshal(body)
		if err != nil {
			return nil, false, err
		}
		full, ready, err := b.reassembler.Handle(frag)
		if err != nil {
			return nil, false, err
		}
		return full, ready, nil
	default:
		return nil, false, fmt.Errorf("reassemble: %w", envelope.ErrBadFlag)
	}
}
