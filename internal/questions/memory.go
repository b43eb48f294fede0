package questions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crowdguru/backend/internal/models"
)

// Memory is an in-memory Store for local development and tests. A single
// mutex stands in for the database's row-level transactions: Mutate holds it
// for the whole read-modify-write, which gives the same atomicity the
// PostgreSQL repository gets from SELECT ... FOR UPDATE.
type Memory struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*models.Question
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[uuid.UUID]*models.Question)}
}

// Create inserts a new open question.
func (m *Memory) Create(ctx context.Context, q *models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[q.ID] = q.Clone()
	return nil
}

// Get returns a question by id.
func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return q.Clone(), nil
}

// Mutate applies fn to the stored record under the store lock and persists
// the result when fn reports a change.
func (m *Memory) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	q := stored.Clone()
	changed, err := fn(q)
	if err != nil {
		return nil, err
	}
	if changed {
		m.data[id] = q.Clone()
	}
	return q, nil
}

// Candidates returns open questions eligible against expiry, never-claimed
// first, then oldest claim, then oldest asked.
func (m *Memory) Candidates(ctx context.Context, expiry time.Time, limit int) ([]*models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Question
	for _, q := range m.data {
		if q.Answered() {
			continue
		}
		if q.LastAssignedAt == nil || q.LastAssignedAt.Before(expiry) {
			out = append(out, q.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastAssignedAt == nil && b.LastAssignedAt != nil:
			return true
		case a.LastAssignedAt != nil && b.LastAssignedAt == nil:
			return false
		case a.LastAssignedAt != nil && !a.LastAssignedAt.Equal(*b.LastAssignedAt):
			return a.LastAssignedAt.Before(*b.LastAssignedAt)
		}
		return a.AskedAt.Before(b.AskedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// OpenAskedBy returns the user's outstanding unanswered question, if any.
func (m *Memory) OpenAskedBy(ctx context.Context, asker string) (*models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, q := range m.data {
		if !q.Answered() && q.Asker == asker {
			return q.Clone(), nil
		}
	}
	return nil, nil
}

// OpenAssignedTo returns an unanswered question claimed by user, if any.
func (m *Memory) OpenAssignedTo(ctx context.Context, user string) (*models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, q := range m.data {
		if !q.Answered() && q.HasAssignee(user) {
			return q.Clone(), nil
		}
	}
	return nil, nil
}

// ListAnswered returns answered questions, most recent first.
func (m *Memory) ListAnswered(ctx context.Context, limit int) ([]*models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Question
	for _, q := range m.data {
		if q.Answered() {
			out = append(out, q.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AnsweredAt.After(*out[j].AnsweredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetSuspended flips the suspended flag on the asker's open question.
func (m *Memory) SetSuspended(ctx context.Context, asker string, suspended bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.data {
		if !q.Answered() && q.Asker == asker && q.Suspended != suspended {
			q.Suspended = suspended
		}
	}
	return nil
}
