package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator hands out txn ids "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with a fresh SequentialGenerator produces byte-identical
// ledgers.
//
// Thread-safety: SequentialGenerator is safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. If prefix is empty, "txn" is used.
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "txn"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.TxnIDGenerator.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Issued returns how many ids have been generated.
func (g *SequentialGenerator) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}
