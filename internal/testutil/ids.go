package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator produces pipe IDs "<prefix>-1", "<prefix>-2", ...
//
// Unlike pipe.FixedGenerator it never runs out, which suits scenarios that
// create an unknown number of pipes. Golden traces stay byte-identical
// across runs because the IDs depend only on creation order.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. An empty prefix defaults to
// "pipe".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "pipe"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
