// Package overlay defines the collaborator surface the backend and tunnel
// packages are built against: a DHT/WebRTC swarm that the core never
// implements, only consumes.
//
// The swarm itself (Chord lookups, ICE negotiation, data channel framing)
// lives outside this repository. Packages here depend only on the
// interfaces, never on a concrete transport, so the backend dispatcher and
// tunnel engine can be exercised against the loopback double in
// internal/overlay/testoverlay without a real network.
package overlay

import (
	"context"
	"errors"
)

// Did is a peer's address on the DHT: a decentralized identifier string.
type Did string

// ErrSend is returned when a CustomMessage could not be handed to a peer's
// data channel. The overlay either delivers on its own path or fails the
// send; the backend layer never retries.
var ErrSend = errors.New("overlay: send failed")

// CustomMessage is the opaque application payload type carried by the
// swarm's CustomMessage event. The backend's envelope.Wrap/Unwrap operate
// on its Data field.
type CustomMessage struct {
	Data []byte
}

// Payload is what the swarm hands the backend for every inbound message,
// regardless of kind.
type Payload struct {
	Destination  Did
	OriginSender Did
	Message      CustomMessage
}

// Event is produced by an endpoint handler and folded back into the swarm
// by Overlay.SubmitEvents. The core treats events as opaque; only the
// swarm interprets them.
type Event struct {
	// Kind names the event for the swarm's own dispatch; the core never
	// branches on it.
	Kind string
	// Peer is the destination DID for events that carry an outbound
	// message (e.g. an HTTP response or an extension reply).
	Peer Did
	// Message is the outbound CustomMessage payload, already framed.
	Message CustomMessage
}

// Swarm is the subset of overlay behavior the backend needs: sending a
// message to a peer, submitting derived events, and knowing this node's
// own identity.
type Swarm interface {
	// Send hands msg to peer's data channel. It returns ErrSend (wrapped)
	// on failure; the backend does not retry.
	Send(ctx context.Context, msg CustomMessage, peer Did) error

	// SubmitEvents folds handler-produced events back into the swarm.
	// A non-nil error here is a structural failure and propagates out of
	// Backend.OnPayload, unlike decode/handler errors which are absorbed.
	SubmitEvents(ctx context.Context, events []Event) error

	// SelfDID returns this node's own identifier, used by Backend to
	// decide whether an inbound Payload is addressed to it.
	SelfDID() Did
}
