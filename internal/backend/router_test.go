package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ringlink/noded/internal/backend"
	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
)

type fakeEndpoint struct {
	events []overlay.Event
	err    error
	calls  []envelope.Message
	from   overlay.Did
}

func (f *fakeEndpoint) Handle(_ context.Context, from overlay.Did, msg envelope.Message) ([]overlay.Event, error) {
	f.calls = append(f.calls, msg)
	f.from = from
	return f.events, f.err
}

func TestRouterDispatchUnregisteredTypeReturnsNil(t *testing.T) {
	t.Parallel()

	r := backend.NewRouter(nil)
	events := r.Dispatch(context.Background(), "did:noded:peer", envelope.Message{Type: envelope.MessageSimpleText})
	if events != nil {
		t.Errorf("events = %v, want nil", events)
	}
}

func TestRouterDispatchRoutesToRegisteredEndpoint(t *testing.T) {
	t.Parallel()

	ep := &fakeEndpoint{events: []overlay.Event{{Kind: "test"}}}
	r := backend.NewRouter(nil)
	r.Register(envelope.MessageSimpleText, ep)

	events := r.Dispatch(context.Background(), "did:noded:peer", envelope.Message{Type: envelope.MessageSimpleText, Data: []byte("hi")})
	if len(events) != 1 || events[0].Kind != "test" {
		t.Fatalf("events = %+v, want one event with Kind=test", events)
	}
	if len(ep.calls) != 1 {
		t.Fatalf("endpoint called %d times, want 1", len(ep.calls))
	}
	if ep.from != "did:noded:peer" {
		t.Errorf("from = %q, want did:noded:peer", ep.from)
	}
}

func TestRouterDispatchAbsorbsEndpointError(t *testing.T) {
	t.Parallel()

	ep := &fakeEndpoint{err: errors.New("boom")}
	r := backend.NewRouter(nil)
	r.Register(envelope.MessageExtension, ep)

	events := r.Dispatch(context.Background(), "did:noded:peer", envelope.Message{Type: envelope.MessageExtension})
	if events != nil {
		t.Errorf("events = %v, want nil after endpoint error", events)
	}
}

func TestRouterRegisterReplacesExisting(t *testing.T) {
	t.Parallel()

	first := &fakeEndpoint{events: []overlay.Event{{Kind: "first"}}}
	second := &fakeEndpoint{events: []overlay.Event{{Kind: "second"}}}

	r := backend.NewRouter(nil)
	r.Register(envelope.MessageSimpleText, first)
	r.Register(envelope.MessageSimpleText, second)

	events := r.Dispatch(context.Background(), "did:noded:peer", envelope.Message{Type: envelope.MessageSimpleText})
	if len(events) != 1 || events[0].Kind != "second" {
		t.Fatalf("events = %+v, want Kind=second", events)
	}
	if len(first.calls) != 0 {
		t.Errorf("first endpoint called %d times, want 0", len(first.calls))
	}
}
