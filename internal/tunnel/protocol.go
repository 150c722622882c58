// Package tunnel implements the TCP tunnel engine: a bidirectional relay
// between a local TCP socket and a remote DID, with a per-tid state
// machine, cancellation, backpressure, and graceful teardown.
package tunnel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// -------------------------------------------------------------------------
// TunnelMessage — the application protocol inside MessageType::Tunnel
// -------------------------------------------------------------------------

// Kind tags which TunnelMessage variant a wire packet carries.
type Kind uint8

const (
	// KindDial requests opening a TCP connection to a service name known
	// at the receiver.
	KindDial Kind = 1
	// KindPackage carries bytes for an already-opened tunnel.
	KindPackage Kind = 2
	// KindClose terminates the tunnel with a diagnostic reason.
	KindClose Kind = 3
)

// Message is the decoded form of a TunnelMessage: exactly one of Dial,
// Package, or Close fields is meaningful, selected by Kind.
type Message struct {
	Kind    Kind
	Tid     uuid.UUID
	Service string // KindDial
	Body    []byte // KindPackage
	Reason  Defeat // KindClose
}

// tidSize is the marshaled length of a uuid.UUID.
const tidSize = 16

// ErrTooShort is returned when a buffer is too small to hold a TunnelMessage
// header.
var ErrTooShort = errors.New("tunnel: buffer shorter than message header")

// ErrUnknownKind is returned when a wire Kind byte matches none of
// KindDial/KindPackage/KindClose.
var ErrUnknownKind = errors.New("tunnel: unrecognized message kind")

// Marshal encodes m as kind (1) ‖ tid (16) ‖ variant-specific payload.
// KindDial:    service string, length-prefixed (LE u16).
// KindPackage: raw body bytes, taking the rest of the buffer.
// KindClose:   reason (1 byte).
func (m Message) Marshal() []byte {
	switch m.Kind {
	case KindDial:
		svc := []byte(m.Service)
		out := make([]byte, 1+tidSize+2+len(svc))
		out[0] = byte(m.Kind)
		copy(out[1:1+tidSize], m.Tid[:])
		binary.LittleEndian.PutUint16(out[1+tidSize:3+tidSize], uint16(len(svc)))
		copy(out[3+tidSize:], svc)
		return out
	case KindPackage:
		out := make([]byte, 1+tidSize+len(m.Body))
		out[0] = byte(m.Kind)
		copy(out[1:1+tidSize], m.Tid[:])
		copy(out[1+tidSize:], m.Body)
		return out
	case KindClose:
		out := make([]byte, 1+tidSize+1)
		out[0] = byte(m.Kind)
		copy(out[1:1+tidSize], m.Tid[:])
		out[1+tidSize] = byte(m.Reason)
		return out
	default:
		return nil
	}
}

// Unmarshal decodes a TunnelMessage from its wire form.
func Unmarshal(buf []byte) (Message, error) {
	if len(buf) < 1+tidSize {
		return Message{}, fmt.Errorf("unmarshal tunnel message: %w", ErrTooShort)
	}
	kind := Kind(buf[0])
	var tid uuid.UUID
	copy(tid[:], buf[1:1+tidSize])
	rest := buf[1+tidSize:]

	switch kind {
	case KindDial:
		if len(rest) < 2 {
			return Message{}, fmt.Errorf("unmarshal tunnel dial: %w", ErrTooShort)
		}
		n := binary.LittleEndian.Uint16(rest[0:2])
		if len(rest) < int(2+n) {
			return Message{}, fmt.Errorf("unmarshal tunnel dial: %w", ErrTooShort)
		}
		return Message{Kind: kind, Tid: tid, Service: string(rest[2 : 2+n])}, nil
	case KindPackage:
		body := make([]byte, len(rest))
		copy(body, rest)
		return Message{Kind: kind, Tid: tid, Body: body}, nil
	case KindClose:
		if len(rest) < 1 {
			return Message{}, fmt.Errorf("unmarshal tunnel close: %w", ErrTooShort)
		}
		return Message{Kind: kind, Tid: tid, Reason: Defeat(rest[0])}, nil
	default:
		return Message{}, fmt.Errorf("unmarshal tunnel message kind %d: %w", kind, ErrUnknownKind)
	}
}
