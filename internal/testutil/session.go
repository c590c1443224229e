package testutil

// FixedSessionGenerator returns the same session ID every time.
//
// A scenario run with a FixedSessionGenerator produces byte-identical
// store contents, which keeps golden comparisons stable.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a generator for id.
// If id is empty, Generate returns "test-session-default".
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed session ID.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
