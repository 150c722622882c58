package backend_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ringlink/noded/internal/backend"
	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/tunnel"
)

func TestTunnelEndpointHandleDispatchesAndReturnsNoEvents(t *testing.T) {
	t.Parallel()

	swarm := &fakeSwarm{}
	engine := tunnel.NewEngine(swarm, func(string) (string, bool) { return "", false }, nil)
	ep := backend.NewTunnelEndpoint(engine)

	tm := tunnel.Message{Kind: tunnel.KindDial, Tid: uuid.New(), Service: "missing"}
	events, err := ep.Handle(context.Background(), "did:noded:peer", envelope.Message{Data: tm.Marshal()})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if events != nil {
		t.Errorf("events = %v, want nil", events)
	}
}

func TestTunnelEndpointHandleMalformedData(t *testing.T) {
	t.Parallel()

	swarm := &fakeSwarm{}
	engine := tunnel.NewEngine(swarm, func(string) (string, bool) { return "", false }, nil)
	ep := backend.NewTunnelEndpoint(engine)

	_, err := ep.Handle(context.Background(), "did:noded:peer", envelope.Message{Data: []byte{1}})
	if err == nil {
		t.Error("Handle with malformed tunnel message = nil error, want an error")
	}
}
