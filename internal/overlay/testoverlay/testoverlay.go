// Package testoverlay provides an in-process loopback double for
// overlay.Swarm: it routes CustomMessages directly between registered
// peers' Backend.OnPayload entrypoints rather than over a real DHT/WebRTC
// network. It backs both package tests and, until a real swarm
// implementation exists, the standalone noded binary's single-process
// deployment mode.
package testoverlay

import (
	"context"
	"fmt"
	"sync"

	"github.com/ringlink/noded/internal/overlay"
)

// Receiver is the subset of Backend the loopback needs: a single
// inbound entrypoint for a delivered Payload.
type Receiver interface {
	OnPayload(ctx context.Context, payload overlay.Payload) error
}

// Swarm is a loopback overlay.Swarm: Send and SubmitEvents deliver
// directly to a Receiver registered under the destination DID, in the
// calling goroutine, with no network or serialization boundary crossed.
type Swarm struct {
	self overlay.Did

	mu    sync.RWMutex
	peers map[overlay.Did]Receiver
}

// New creates a Swarm identifying itself as self.
func New(self overlay.Did) *Swarm {
	return &Swarm{self: self, peers: make(map[overlay.Did]Receiver)}
}

// Register binds did's inbound Receiver. A node typically registers
// itself right after constructing its Backend, then registers any other
// local peers it wants reachable for a test scenario.
func (s *Swarm) Register(did overlay.Did, recv Receiver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[did] = recv
}

// SelfDID implements overlay.Swarm.
func (s *Swarm) SelfDID() overlay.Did {
	return s.self
}

// Send implements overlay.Swarm: it looks up peer's registered Receiver
// and delivers msg synchronously, wrapping overlay.ErrSend if peer is
// not registered or its handler returns an error.
func (s *Swarm) Send(ctx context.Context, msg overlay.CustomMessage, peer overlay.Did) error {
	s.mu.RLock()
	recv, ok := s.peers[peer]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("testoverlay: peer %s not registered: %w", peer, overlay.ErrSend)
	}

	if err := recv.OnPayload(ctx, overlay.Payload{
		Destination:  peer,
		OriginSender: s.self,
		Message:      msg,
	}); err != nil {
		return fmt.Errorf("testoverlay: deliver to %s: %w", peer, overlay.ErrSend)
	}
	return nil
}

// SubmitEvents implements overlay.Swarm: every event carrying a non-empty
// Peer is sent as if produced by this node; events with no Peer are
// dropped, since the loopback has nowhere else to route them.
func (s *Swarm) SubmitEvents(ctx context.Context, events []overlay.Event) error {
	for _, ev := range events {
		if ev.Peer == "" {
			continue
		}
		if err := s.Send(ctx, ev.Message, ev.Peer); err != nil {
			return err
		}
	}
	return nil
}
