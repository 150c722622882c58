package envelope_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ringlink/noded/internal/envelope"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	t.Parallel()

	body := []byte("hello overlay")
	wrapped := envelope.Wrap(envelope.FlagChunked, body)

	if len(wrapped) != envelope.PrefixSize+len(body) {
		t.Fatalf("len(wrapped) = %d, want %d", len(wrapped), envelope.PrefixSize+len(body))
	}

	flag, got, err := envelope.Unwrap(wrapped)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if flag != envelope.FlagChunked {
		t.Errorf("flag = %d, want %d", flag, envelope.FlagChunked)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("body = %q, want %q", got, body)
	}
}

func TestWrapReservedBytesZeroed(t *testing.T) {
	t.Parallel()

	wrapped := envelope.Wrap(envelope.FlagInline, []byte("x"))
	for i := 1; i < envelope.PrefixSize; i++ {
		if wrapped[i] != 0 {
			t.Errorf("reserved byte %d = %d, want 0", i, wrapped[i])
		}
	}
}

func TestUnwrapTooShort(t *testing.T) {
	t.Parallel()

	_, _, err := envelope.Unwrap([]byte{0, 0})
	if !errors.Is(err, envelope.ErrTooShort) {
		t.Fatalf("err = %v, want ErrTooShort", err)
	}
}

func TestMessageMarshalUnmarshalRoundTrip(t *testing.T) {
	t.Parallel()

	msg := envelope.Message{
		Type: envelope.MessageSimpleText,
		Data: []byte("ping"),
	}
	copy(msg.Extra[:], "routing-hint")

	encoded := msg.Marshal()
	decoded, err := envelope.Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Type != msg.Type {
		t.Errorf("Type = %v, want %v", decoded.Type, msg.Type)
	}
	if decoded.Extra != msg.Extra {
		t.Errorf("Extra = %v, want %v", decoded.Extra, msg.Extra)
	}
	if !bytes.Equal(decoded.Data, msg.Data) {
		t.Errorf("Data = %q, want %q", decoded.Data, msg.Data)
	}
}

func TestMessageMarshalEmptyData(t *testing.T) {
	t.Parallel()

	msg := envelope.Message{Type: envelope.MessageTunnel}
	decoded, err := envelope.Unmarshal(msg.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Data) != 0 {
		t.Errorf("Data = %v, want empty", decoded.Data)
	}
}

func TestUnmarshalTooShort(t *testing.T) {
	t.Parallel()

	_, err := envelope.Unmarshal([]byte{1, 2, 3})
	if !errors.Is(err, envelope.ErrMessageTooShort) {
		t.Fatalf("err = %v, want ErrMessageTooShort", err)
	}
}

func TestMessageTypeString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		typ  envelope.MessageType
		want string
	}{
		{envelope.MessageSimpleText, "SimpleText"},
		{envelope.MessageHTTPRequest, "HttpRequest"},
		{envelope.MessageTunnel, "TunnelMessage"},
		{envelope.MessageExtension, "Extension"},
		{envelope.MessageType(99), "Unknown(99)"},
	}

	for _, tc := range cases {
		if got := tc.typ.String(); got != tc.want {
			t.Errorf("MessageType(%d).String() = %q, want %q", tc.typ, got, tc.want)
		}
	}
}
