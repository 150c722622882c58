package backend

import (
	"context"
	"log/slog"

	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
)

// Router dispatches a decoded BackendMessage to the Endpoint registered
// for its MessageType. An unrecognized type, or one with no registered
// Endpoint, is logged and dropped rather than treated as an error: per
// the design, an unrecognized message_type is a no-op, not a failure.
type Router struct {
	logger    *slog.Logger
	endpoints map[envelope.MessageType]Endpoint
}

// NewRouter creates an empty Router. Use Register to wire in endpoints.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:    logger.With(slog.String("component", "backend.router")),
		endpoints: make(map[envelope.MessageType]Endpoint),
	}
}

// Register binds t to the Endpoint that handles it. A later call for the
// same type replaces the earlier registration.
func (r *Router) Register(t envelope.MessageType, ep Endpoint) {
	r.endpoints[t] = ep
}

// Dispatch routes msg to its registered Endpoint. Endpoint errors are
// logged and absorbed into an empty event slice: an endpoint-local
// failure must never propagate as an overlay-level failure.
func (r *Router) Dispatch(ctx context.Context, from overlay.Did, msg envelope.Message) []overlay.Event {
	ep, ok := r.endpoints[msg.Type]
	if !ok {
		r.logger.Debug("no endpoint registered for message type", slog.String("type", msg.Type.String()))
		return nil
	}

	events, err := ep.Handle(ctx, from, msg)
	if err != nil {
		r.logger.Warn("endpoint handler failed",
			slog.String("type", msg.Type.String()), slog.String("error", err.Error()))
		return nil
	}
	return events
}
