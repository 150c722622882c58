// Package wire is the shared send path used by anything that talks to a
// peer directly through the swarm rather than via the Backend facade's
// event-submission path: today, only the tunnel engine (its worker loops
// and its dial acknowledgements and closes).
// It applies the Framer and, when a message would exceed BackendMTU,
// splits it into Chunks first — the "MUST fragment to fit the overlay's
// MTU" rule the tunnel engine is held to.
package wire

import (
	"context"
	"math/rand/v2"

	"github.com/ringlink/noded/internal/chunk"
	"github.com/ringlink/noded/internal/envelope"
	"github.com/ringlink/noded/internal/overlay"
)

// BackendMTU is the maximum body size of a single overlay CustomMessage
// this node will send inline. Messages whose encoded BackendMessage
// exceeds it are split into Chunks of at most BackendMTU bytes each.
const BackendMTU = 1200

// Send encodes msg, chunking it if necessary, and hands each resulting
// overlay payload to swarm.Send in order. It returns the first send
// error encountered; chunked sends are not rolled back on partial
// failure, matching the "no retry of failed custom-message sends at the
// backend layer" non-goal.
func Send(ctx context.Context, swarm overlay.Swarm, peer overlay.Did, msg envelope.Message) error {
	body := msg.Marshal()

	if len(body) <= BackendMTU {
		payload := envelope.Wrap(envelope.FlagInline, body)
		return swarm.Send(ctx, overlay.CustomMessage{Data: payload}, peer)
	}

	chunkID := rand.Uint64() //nolint:gosec // grouping id, not security sensitive
	for _, f := range chunk.Split(chunkID, body, BackendMTU) {
		payload := envelope.Wrap(envelope.FlagChunked, f.Marshal())
		if err := swarm.Send(ctx, overlay.CustomMessage{Data: payload}, peer); err != nil {
			return err
		}
	}
	return nil
}
