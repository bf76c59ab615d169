package graph

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator issues node identifiers of the form
// <kind>:<path>:<line>:<name>#<n>, where n is drawn from a counter that only
// ever advances. One generator belongs to one Builder; it is safe for
// concurrent use by that builder's workers.
type IDGenerator struct {
	counter atomic.Uint64
}

// NewIDGenerator returns a generator whose first disambiguator is 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns a fresh identifier for the tuple.
func (g *IDGenerator) Next(kind NodeKind, path string, line int, name string) string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s:%s:%d:%s#%d", kind, path, line, name, n)
}

// Issued returns how many identifiers have been handed out.
func (g *IDGenerator) Issued() uint64 {
	return g.counter.Load()
}
