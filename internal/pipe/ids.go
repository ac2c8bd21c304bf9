package pipe

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator generates pipe IDs.
// Implemented by UUIDv7Generator (production), FixedGenerator and
// testutil.SequentialGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 pipe IDs, so journal
// entries list pipes in creation order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs in order.
//
//	gen := NewFixedGenerator("pipe-a", "pipe-b")
//	gen.Generate() // "pipe-a"
//	gen.Generate() // "pipe-b"
//	gen.Generate() // panic: all IDs exhausted
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID. Panics when exhausted, which
// catches a test creating more pipes than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
