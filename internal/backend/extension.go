package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
)

// ExtensionSandbox runs an opaque extension payload and returns whatever
// bytes it wants relayed back to the peer, if any. A nil return means
// no reply is sent.
type ExtensionSandbox interface {
	Run(ctx context.Context, from overlay.Did, extra [envelope.ExtraSize]byte, data []byte) ([]byte, error)
}

// NoopExtensionSandbox accepts every extension payload and never replies.
// It is the default wiring until a real sandbox is configured: the
// design treats MessageExtension as a pluggable callout, not a built-in
// feature.
type NoopExtensionSandbox struct {
	Logger *slog.Logger
}

// Run implements ExtensionSandbox.
func (s NoopExtensionSandbox) Run(_ context.Context, from overlay.Did, _ [envelope.ExtraSize]byte, data []byte) ([]byte, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("extension payload received, no sandbox configured",
		slog.String("from", string(from)), slog.Int("bytes", len(data)))
	return nil, nil
}

// ExtensionEndpoint handles MessageExtension by handing the payload to a
// Sandbox and, if it returns a non-empty reply, emitting it back to the
// sender with the same Extra bytes it arrived with.
type ExtensionEndpoint struct {
	Sandbox ExtensionSandbox
}

// NewExtensionEndpoint creates an ExtensionEndpoint backed by sandbox.
func NewExtensionEndpoint(sandbox ExtensionSandbox) *ExtensionEndpoint {
	return &ExtensionEndpoint{Sandbox: sandbox}
}

// Handle implements Endpoint.
func (e *ExtensionEndpoint) Handle(ctx context.Context, from overlay.Did, msg envelope.Message) ([]overlay.Event, error) {
	reply, err := e.Sandbox.Run(ctx, from, msg.Extra, msg.Data)
	if err != nil {
		return nil, fmt.Errorf("run extension sandbox: %w", err)
	}
	if len(reply) == 0 {
		return nil, nil
	}

	out := envelope.Message{Type: envelope.MessageExtension, Extra: msg.Extra, Data: reply}
	return []overlay.Event{{
		Kind:    "extension_reply",
		Peer:    from,
		Message: overlay.CustomMessage{Data: envelope.Wrap(envelope.FlagInline, out.Marshal())},
	}}, nil
}
