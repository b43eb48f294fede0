// Package questions provides the question store: durable records with an
// atomic single-record read-modify-write primitive and the secondary queries
// the assignment engine and read paths are built on.
package questions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/crowdguru/backend/internal/models"
)

// ErrNotFound is returned when a question id does not exist.
var ErrNotFound = errors.New("question not found")

// MutateFunc inspects and optionally mutates a question inside a store
// transaction. It returns true when the record should be persisted. The
// store re-reads the record before calling it, so the function always sees
// the current committed state, not whatever the caller read earlier.
type MutateFunc func(q *models.Question) (changed bool, err error)

// Store is the persistence contract shared by the PostgreSQL repository and
// the in-memory backend.
type Store interface {
	// Create inserts a new open question.
	Create(ctx context.Context, q *models.Question) error

	// Get returns the question with the given id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.Question, error)

	// Mutate runs fn against the current state of one record under a
	// row-level transaction and returns the post-transaction record.
	Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Question, error)

	// Candidates returns open questions whose last claim is absent or older
	// than expiry, never-claimed first, then oldest claim, then oldest asked.
	Candidates(ctx context.Context, expiry time.Time, limit int) ([]*models.Question, error)

	// OpenAskedBy returns the user's outstanding unanswered question, if any.
	OpenAskedBy(ctx context.Context, asker string) (*models.Question, error)

	// OpenAssignedTo returns an unanswered question carrying a claim for
	// user, if any.
	OpenAssignedTo(ctx context.Context, user string) (*models.Question, error)

	// ListAnswered returns answered questions, most recently answered first.
	ListAnswered(ctx context.Context, limit int) ([]*models.Question, error)

	// SetSuspended flips the suspended flag on the asker's open question
	// when its current value differs. No-op if the asker has none.
	SetSuspended(ctx context.Context, asker string, suspended bool) error
}
