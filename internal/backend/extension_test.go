package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ringlink/noded/internal/backend"
	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
)

type stubSandbox struct {
	reply []byte
	err   error
	got   []byte
}

func (s *stubSandbox) Run(_ context.Context, _ overlay.Did, _ [envelope.ExtraSize]byte, data []byte) ([]byte, error) {
	s.got = data
	return s.reply, s.err
}

func TestExtensionEndpointNoReply(t *testing.T) {
	t.Parallel()

	sandbox := &stubSandbox{}
	ep := backend.NewExtensionEndpoint(sandbox)

	events, err := ep.Handle(context.Background(), "did:noded:peer", envelope.Message{Data: []byte("payload")})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if events != nil {
		t.Errorf("events = %v, want nil", events)
	}
	if string(sandbox.got) != "payload" {
		t.Errorf("sandbox.got = %q, want payload", sandbox.got)
	}
}

func TestExtensionEndpointEmitsReplyWithSameExtra(t *testing.T) {
	t.Parallel()

	sandbox := &stubSandbox{reply: []byte("answer")}
	ep := backend.NewExtensionEndpoint(sandbox)

	msg := envelope.Message{Data: []byte("question")}
	copy(msg.Extra[:], "routing-tag")

	events, err := ep.Handle(context.Background(), "did:noded:peer", msg)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(events) != 1 || events[0].Peer != "did:noded:peer" {
		t.Fatalf("events = %+v, want one event addressed back to the sender", events)
	}

	_, body, err := envelope.Unwrap(events[0].Message.Data)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	reply, err := envelope.Unmarshal(body)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(reply.Data) != "answer" {
		t.Errorf("reply.Data = %q, want answer", reply.Data)
	}
	if reply.Extra != msg.Extra {
		t.Errorf("reply.Extra = %v, want %v", reply.Extra, msg.Extra)
	}
}

func TestExtensionEndpointPropagatesSandboxError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("sandbox failed")
	ep := backend.NewExtensionEndpoint(&stubSandbox{err: wantErr})

	_, err := ep.Handle(context.Background(), "did:noded:peer", envelope.Message{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapping %v", err, wantErr)
	}
}

func TestNoopExtensionSandboxNeverReplies(t *testing.T) {
	t.Parallel()

	sandbox := backend.NoopExtensionSandbox{}
	reply, err := sandbox.Run(context.Background(), "did:noded:peer", [envelope.ExtraSize]byte{}, []byte("x"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply != nil {
		t.Errorf("reply = %v, want nil", reply)
	}
}
