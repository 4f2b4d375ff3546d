// Package memory stores past judgments and retrieves the ones nearest to a
// new claim so follow-up answers can cite earlier fact checks.
package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/model"
)

var (
	// ErrNotFound is returned when a record id does not exist
	ErrNotFound = goerr.New("memory record not found")

	// ErrAlreadyExists is returned by Create when the id is taken
	ErrAlreadyExists = goerr.New("memory record already exists")
)

// Repository is a backend for memory records
type Repository interface {
	// Create stores rec under rec.ID. It never overwrites: an existing id
	// yields ErrAlreadyExists.
	Create(ctx context.Context, rec model.MemoryRecord) error

	// Get returns the record with id or ErrNotFound
	Get(ctx context.Context, id string) (*model.MemoryRecord, error)

	// Nearest returns up to limit records ordered by cosine distance to embedding
	Nearest(ctx context.Context, embedding []float32, limit int) ([]model.MemoryMatch, error)

	// Reset deletes every record
	Reset(ctx context.Context) error

	Close() error
}
