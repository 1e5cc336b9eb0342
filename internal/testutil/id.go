package testutil

// FixedIDGenerator returns the same run id every time.
//
// This enables deterministic test execution and golden snapshot comparison.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed run id generator.
//
// If id is empty, Generate() returns "test-run-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed run id.
//
// Implements runner.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
