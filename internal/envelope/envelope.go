// Package envelope implements the Framer: the 4-byte prefix on every
// overlay CustomMessage payload, and the BackendMessage wire format it
// carries once unwrapped.
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// -------------------------------------------------------------------------
// Custom envelope — 4-byte prefix on every overlay CustomMessage
// -------------------------------------------------------------------------

// FlagInline marks an envelope carrying a complete BackendMessage.
const FlagInline = 0

// FlagChunked marks an envelope carrying a single Chunk fragment.
const FlagChunked = 1

// PrefixSize is the length of the envelope header (flag + 3 reserved bytes).
const PrefixSize = 4

// ErrTooShort is returned by Unwrap when the input is shorter than PrefixSize.
var ErrTooShort = errors.New("envelope: payload shorter than prefix")

// ErrBadFlag is returned when a decoded flag byte is neither FlagInline nor
// FlagChunked.
var ErrBadFlag = errors.New("envelope: unrecognized flag")

// Wrap prepends the envelope prefix to an already-encoded BackendMessage or
// Chunk. The reserved bytes are always zeroed on send; the implementation
// does not assign them meaning, per the reserved-bytes note in the design.
func Wrap(flag byte, body []byte) []byte {
	out := make([]byte, PrefixSize+len(body))
	out[0] = flag
	copy(out[PrefixSize:], body)
	return out
}

// Unwrap splits an overlay payload into its flag and trailing body. It
// fails if the payload is shorter than the fixed prefix; the 3 reserved
// bytes are ignored on receive.
func Unwrap(payload []byte) (flag byte, body []byte, err error) {
	if len(payload) < PrefixSize {
		return 0, nil, ErrTooShort
	}
	return payload[0], payload[PrefixSize:], nil
}

// -------------------------------------------------------------------------
// BackendMessage — the common envelope delivered to endpoints
// -------------------------------------------------------------------------

// MessageType tags the kind of payload carried inside a BackendMessage.
// Values are stable wire identifiers; unknown tags are a no-op, never an
// error.
type MessageType uint16

const (
	// MessageUnknown is never sent; it is the zero value used when a tag
	// does not match any recognized MessageType.
	MessageUnknown MessageType = 0
	// MessageSimpleText carries a UTF-8 text payload.
	MessageSimpleText MessageType = 1
	// MessageHTTPRequest carries an HTTP request to forward to the local
	// proxy service.
	MessageHTTPRequest MessageType = 2
	// MessageTunnel carries a TunnelMessage (TcpDial/TcpPackage/TcpClose).
	MessageTunnel MessageType = 3
	// MessageExtension carries an opaque extension callout payload.
	MessageExtension MessageType = 4
)

// String returns the human-readable name of a MessageType, or
// "Unknown(<n>)" for an unrecognized tag.
func (t MessageType) String() string {
	switch t {
	case MessageSimpleText:
		return "SimpleText"
	case MessageHTTPRequest:
		return "HttpRequest"
	case MessageTunnel:
		return "TunnelMessage"
	case MessageExtension:
		return "Extension"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(t))
	}
}

// ExtraSize is the length of the reserved, opaque-to-the-core bytes every
// BackendMessage carries.
const ExtraSize = 30

// headerSize is message_type (2) + extra (30).
const headerSize = 2 + ExtraSize

// ErrMessageTooShort is returned when a buffer is too small to hold a
// BackendMessage header.
var ErrMessageTooShort = errors.New("envelope: buffer shorter than message header")

// Message is the common envelope delivered to endpoints: a typed tag, 30
// reserved pass-through bytes, and a variable-length payload.
type Message struct {
	Type  MessageType
	Extra [ExtraSize]byte
	Data  []byte
}

// Marshal encodes m as message_type (LE u16) ‖ extra[30] ‖ data.
func (m Message) Marshal() []byte {
	out := make([]byte, headerSize+len(m.Data))
	binary.LittleEndian.PutUint16(out[0:2], uint16(m.Type))
	copy(out[2:2+ExtraSize], m.Extra[:])
	copy(out[headerSize:], m.Data)
	return out
}

// Unmarshal decodes a BackendMessage from its wire form. data.len is
// implied by the outer framing: everything past the fixed header is
// payload.
func Unmarshal(buf []byte) (Message, error) {
	if len(buf) < headerSize {
		return Message{}, fmt.Errorf("unmarshal message: %w", ErrMessageTooShort)
	}
	var m Message
	m.Type = MessageType(binary.LittleEndian.Uint16(buf[0:2]))
	copy(m.Extra[:], buf[2:2+ExtraSize])
	if n := len(buf) - headerSize; n > 0 {
		m.Data = make([]byte, n)
		copy(m.Data, buf[headerSize:])
	}
	return m, nil
}
