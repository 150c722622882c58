package chunk

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// groupTTL bounds how long a partially-received fragment group is kept
// before it is swept as abandoned. Spec leaves eviction policy
// unspecified beyond "completed groups are removed"; this implementation
// additionally ages out incomplete ones so a peer that never sends the
// last fragment cannot grow the table without bound.
const groupTTL = 60 * time.Second

// sweepInterval is how often the age-bound cache scans for expired,
// still-incomplete groups.
const sweepInterval = 30 * time.Second

// ErrZeroTotal is returned when a fragment claims a group of zero total
// fragments, which can never complete.
var ErrZeroTotal = errors.New("chunk: fragment total must be >= 1")

// group is the in-memory accumulator for one chunk_id: fragments received
// so far, keyed by index, plus the claimed total. completed marks a group
// removed by Handle because it finished, so the eviction callback (which
// also fires on this deliberate removal) can tell that apart from a group
// the cache is dropping because it aged out incomplete.
type group struct {
	total     uint32
	have      map[uint32][]byte
	completed bool
}

// Reassembler accumulates Fragments keyed by ChunkID and returns the full
// byte string exactly once, when the last fragment of a group arrives.
// Safe for concurrent use: a single mutex serializes all group mutation,
// matching the "no suspension inside critical sections" rule — the only
// work under the lock is map bookkeeping, never I/O.
type Reassembler struct {
	mu     sync.Mutex
	groups *gocache.Cache
	logger *slog.Logger
}

// New creates an empty Reassembler. Incomplete groups older than groupTTL
// are evicted and logged as abandoned.
func New(logger *slog.Logger) *Reassembler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reassembler{
		groups: gocache.New(groupTTL, sweepInterval),
		logger: logger.With(slog.String("component", "chunk.reassembler")),
	}
	r.groups.OnEvicted(func(key string, value any) {
		g, ok := value.(*group)
		if !ok || g.completed {
			return
		}
		r.logger.Warn("dropping incomplete chunk group on expiry",
			slog.String("chunk_id", key),
			slog.Int("received", len(g.have)),
			slog.Uint64("total", uint64(g.total)),
		)
	})
	return r
}

// Handle folds one fragment into its group. It returns the reassembled
// bytes exactly once, when the last of Total distinct indices for
// ChunkID has arrived; otherwise it returns (nil, false). Duplicate
// indices are idempotent and out-of-order arrival is permitted.
func (r *Reassembler) Handle(f Fragment) ([]byte, bool, error) {
	if f.Total == 0 {
		return nil, false, fmt.Errorf("handle fragment %d: %w", f.ChunkID, ErrZeroTotal)
	}

	key := strconv.FormatUint(f.ChunkID, 10)

	r.mu.Lock()
	var g *group
	if raw, ok := r.groups.Get(key); ok {
		g, ok = raw.(*group)
		if !ok {
			r.mu.Unlock()
			return nil, false, fmt.Errorf("handle fragment %d: corrupt group entry", f.ChunkID)
		}
		if g.completed {
			r.mu.Unlock()
			return nil, false, nil
		}
	} else {
		g = &group{total: f.Total, have: make(map[uint32][]byte, f.Total)}
		r.groups.Set(key, g, gocache.DefaultExpiration)
	}

	g.have[f.Index] = f.Body
	complete := uint32(len(g.have)) >= g.total
	if complete {
		g.completed = true
	}
	r.mu.Unlock()

	if !complete {
		return nil, false, nil
	}

	full := make([]byte, 0)
	for i := uint32(0); i < g.total; i++ {
		full = append(full, g.have[i]...)
	}
	// Delete synchronously invokes OnEvicted, so it runs after r.mu is
	// released rather than nested inside the critical section above.
	r.groups.Delete(key)

	return full, true, nil
}
