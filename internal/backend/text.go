package backend

import (
	"context"
	"log/slog"

	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
)

// TextSink receives SimpleText payloads as they arrive. The default
// wiring logs them; a status surface or test can supply its own sink to
// observe traffic without touching the broadcaster.
type TextSink interface {
	Accept(text string)
}

// LogTextSink is a TextSink that logs every message at info level.
type LogTextSink struct {
	Logger *slog.Logger
}

// Accept implements TextSink.
func (s LogTextSink) Accept(text string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("received simple text", slog.String("text", text))
}

// TextEndpoint handles MessageSimpleText: a one-way text payload with no
// reply. It never produces events.
type TextEndpoint struct {
	Sink TextSink
}

// NewTextEndpoint creates a TextEndpoint delivering to sink.
func NewTextEndpoint(sink TextSink) *TextEndpoint {
	return &TextEndpoint{Sink: sink}
}

// Handle implements Endpoint.
func (e *TextEndpoint) Handle(_ context.Context, _ overlay.Did, msg envelope.Message) ([]overlay.Event, error) {
	if e.Sink != nil {
		e.Sink.Accept(string(msg.Data))
	}
	return nil, nil
}
