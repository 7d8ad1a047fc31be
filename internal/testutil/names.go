package testutil

import (
	"fmt"
	"sync"
)

// FixedFlowGenerator returns the same flow token every time.
//
// Dispatches in a scenario share one token, which keeps log lines and
// golden traces identical across runs.
//
// Thread-safety: FixedFlowGenerator is stateless and safe for concurrent use.
type FixedFlowGenerator struct {
	token string
}

// NewFixedFlowGenerator creates a fixed generator.
// If token is empty, Generate() returns "test-flow-default".
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = "test-flow-default"
	}
	return &FixedFlowGenerator{token: token}
}

// Generate returns the fixed flow token.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}

// SequenceGenerator produces unique, predictable names: prefix-0001,
// prefix-0002, ... It satisfies store.NameGenerator, where names must be
// unique because they are primary keys.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator for the given prefix.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next name in the sequence.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
