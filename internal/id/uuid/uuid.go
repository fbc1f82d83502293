// Package uuid provides run identifiers for correlating logs, metrics and history rows.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 run IDs.
type Generator struct{}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// NewRunID returns a UUIDv7 string so history rows sort by start time.
func (Generator) NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// MustRunID returns a run ID, falling back to a random UUIDv4 when the
// time-ordered generator fails.
func (g Generator) MustRunID() string {
	id, err := g.NewRunID()
	if err == nil {
		return id
	}
	return uuid.NewString()
}
