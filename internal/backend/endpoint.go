package backend

import (
	"context"

	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
)

// Endpoint is the uniform contract every message-type handler implements:
// given a decoded BackendMessage and the peer that sent it, produce
// events to fold back into the swarm. Endpoint errors are endpoint-local;
// the router logs and absorbs them into "no events" rather than letting
// them escape as overlay failures.
type Endpoint interface {
	Handle(ctx context.Context, from overlay.Did, msg envelope.Message) ([]overlay.Event, error)
}
