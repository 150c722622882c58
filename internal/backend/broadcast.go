package backend

import (
	"sync"

	"github.com/ringlink/noded/internal/envelope"
)

// broadcastCapacity bounds each subscriber's inbox. A subscriber that
// falls behind has messages dropped rather than blocking message
// delivery for the rest of the node; Backend.OnPayload never waits on a
// slow subscriber.
const broadcastCapacity = 64

// Subscriber receives a copy of every decoded message the backend
// accepts, before it is handed to the endpoint router. Used by
// in-process observers (tests, for example) that want visibility
// without participating in dispatch.
type Subscriber struct {
	ch chan envelope.Message
}

// Messages returns the channel new decoded messages arrive on.
func (s *Subscriber) Messages() <-chan envelope.Message {
	return s.ch
}

// broadcaster fans out each accepted Message to every live Subscriber.
type broadcaster struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new Subscriber. Callers should Unsubscribe when
// done to release the inbox.
func (b *broadcaster) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan envelope.Message, broadcastCapacity)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes s and closes its inbox.
func (b *broadcaster) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	_, ok := b.subs[s]
	delete(b.subs, s)
	b.mu.Unlock()
	if ok {
		close(s.ch)
	}
}

// publish fans msg out to every current subscriber, dropping it for any
// subscriber whose inbox is full.
func (b *broadcaster) publish(msg envelope.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.ch <- msg:
		default:
		}
	}
}
