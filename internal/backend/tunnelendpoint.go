package backend

import (
	"context"

	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
	"github.com/ringlink/noded/internal/tunnel"
)

// TunnelEndpoint adapts an *tunnel.Engine to the Endpoint contract. The
// engine does its own sending through the swarm handle it was
// constructed with: dial acks and dial-failure closes from within
// Dispatch, packages and worker-exit closes from its background workers.
// Handle therefore always returns an empty event slice: the uniform
// Endpoint contract is satisfied trivially.
type TunnelEndpoint struct {
	Engine *tunnel.Engine
}

// NewTunnelEndpoint wraps engine as an Endpoint.
func NewTunnelEndpoint(engine *tunnel.Engine) *TunnelEndpoint {
	return &TunnelEndpoint{Engine: engine}
}

// Handle implements Endpoint.
func (e *TunnelEndpoint) Handle(ctx context.Context, from overlay.Did, msg envelope.Message) ([]overlay.Event, error) {
	tm, err := tunnel.Unmarshal(msg.Data)
	if err != nil {
		return nil, err
	}
	e.Engine.Dispatch(ctx, tm, from)
	return nil, nil
}
