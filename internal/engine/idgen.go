package engine

import (
	"sync"

	"github.com/google/uuid"
)

// UserIDGenerator produces auto-generated external user ids.
// Implemented by UUIDGenerator (production) and FixedGenerator (tests).
type UserIDGenerator interface {
	Generate() string
}

// UUIDGenerator generates random RFC 4122 UUIDs.
//
// Uses github.com/google/uuid. The ids only need global uniqueness; the
// backend treats them as opaque strings.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate creates a new random UUID as a hyphenated string.
func (g UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// FixedGenerator returns predetermined ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal
// mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Panics when all ids are consumed - fail fast on test misconfiguration
// (test generated more identities than expected).
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
