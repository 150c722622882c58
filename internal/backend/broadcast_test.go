package backend_test

import (
	"context"
	"testing"

	"github.com/ringlink/noded/internal/backend"
	"github.com/ringlink/noded/internal/envelope"
)

func TestSubscribeUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	router := backend.NewRouter(nil)
	be := backend.New(&fakeSwarm{}, router, nil, nil)

	sub := be.Subscribe()
	be.Unsubscribe(sub)

	_, ok := <-sub.Messages()
	if ok {
		t.Error("channel still open after Unsubscribe")
	}
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	t.Parallel()

	router := backend.NewRouter(nil)
	be := backend.New(&fakeSwarm{}, router, nil, nil)

	subA := be.Subscribe()
	subB := be.Subscribe()
	defer be.Unsubscribe(subA)
	defer be.Unsubscribe(subB)

	msg := envelope.Message{Type: envelope.MessageSimpleText, Data: []byte("broadcast")}
	payload := buildPayload(t, envelope.FlagInline, msg.Marshal())
	if err := be.OnPayload(context.Background(), payload); err != nil {
		t.Fatalf("OnPayload: %v", err)
	}

	for name, sub := range map[string]*backend.Subscriber{"A": subA, "B": subB} {
		select {
		case got := <-sub.Messages():
			if string(got.Data) != "broadcast" {
				t.Errorf("subscriber %s got %q, want broadcast", name, got.Data)
			}
		default:
			t.Errorf("subscriber %s received nothing", name)
		}
	}
}
