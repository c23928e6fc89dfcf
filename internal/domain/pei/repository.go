package pei

import "context"

// Repository defines the interface for plan persistence.
// Implementation is in infrastructure layer (persistence/kv).
type Repository interface {
	// Load returns the plan stored under id, or ErrPEINotFound.
	Load(ctx context.Context, id string) (PEI, error)

	// Save fully overwrites the stored snapshot of the plan.
	Save(ctx context.Context, p PEI) error

	// ListByStudent returns every plan of the student, newest first.
	// Undecodable entries are skipped.
	ListByStudent(ctx context.Context, studentID string) ([]PEI, error)

	// Delete removes the stored plan, or returns ErrPEINotFound.
	Delete(ctx context.Context, id string) error
}
