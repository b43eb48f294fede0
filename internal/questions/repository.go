package questions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crowdguru/backend/internal/models"
)

const questionColumns = `id, body, asker, asked_at, suspended, assignees, last_assigned_at, answer, answerer, answered_at`

// Repository implements Store over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new open question.
func (r *Repository) Create(ctx context.Context, q *models.Question) error {
	const query = `INSERT INTO questions (id, body, asker, asked_at, suspended, assignees)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, q.ID, q.Body, q.Asker, q.AskedAt, q.Suspended, q.Assignees)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// Get returns a question by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	const query = `SELECT ` + questionColumns + ` FROM questions WHERE id = $1`
	q, err := scanQuestion(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

// Mutate re-reads the record under a row lock, applies fn, and persists the
// result when fn reports a change. Exclusivity decisions made by fn are
// therefore always against the current committed state.
func (r *Repository) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Question, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `SELECT ` + questionColumns + ` FROM questions WHERE id = $1 FOR UPDATE`
	q, err := scanQuestion(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock question: %w", err)
	}

	changed, err := fn(q)
	if err != nil {
		return nil, err
	}
	if changed {
		const update = `UPDATE questions
			SET suspended = $2, assignees = $3, last_assigned_at = $4,
			    answer = $5, answerer = $6, answered_at = $7
			WHERE id = $1`
		if _, err := tx.Exec(ctx, update, q.ID, q.Suspended, q.Assignees,
			q.LastAssignedAt, q.Answer, q.Answerer, q.AnsweredAt); err != nil {
			return nil, fmt.Errorf("update question: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return q, nil
}

// Candidates returns open questions eligible for assignment against expiry.
// Never-claimed questions sort first (NULLS FIRST), ties break on asked_at so
// the oldest question wins.
func (r *Repository) Candidates(ctx context.Context, expiry time.Time, limit int) ([]*models.Question, error) {
	const query = `SELECT ` + questionColumns + ` FROM questions
		WHERE answer IS NULL AND (last_assigned_at IS NULL OR last_assigned_at < $1)
		ORDER BY last_assigned_at ASC NULLS FIRST, asked_at ASC
		LIMIT $2`
	return r.queryQuestions(ctx, query, expiry, limit)
}

// OpenAskedBy returns the user's outstanding unanswered question, if any.
func (r *Repository) OpenAskedBy(ctx context.Context, asker string) (*models.Question, error) {
	const query = `SELECT ` + questionColumns + ` FROM questions
		WHERE asker = $1 AND answer IS NULL
		LIMIT 1`
	return r.queryOne(ctx, query, asker)
}

// OpenAssignedTo returns an unanswered question claimed by user, if any.
func (r *Repository) OpenAssignedTo(ctx context.Context, user string) (*models.Question, error) {
	const query = `SELECT ` + questionColumns + ` FROM questions
		WHERE answer IS NULL AND $1 = ANY(assignees)
		LIMIT 1`
	return r.queryOne(ctx, query, user)
}

// ListAnswered returns answered questions, most recent first.
func (r *Repository) ListAnswered(ctx context.Context, limit int) ([]*models.Question, error) {
	const query = `SELECT ` + questionColumns + ` FROM questions
		WHERE answer IS NOT NULL
		ORDER BY answered_at DESC
		LIMIT $1`
	return r.queryQuestions(ctx, query, limit)
}

// SetSuspended flips the suspended flag on the asker's open question when it
// differs from the requested value.
func (r *Repository) SetSuspended(ctx context.Context, asker string, suspended bool) error {
	const query = `UPDATE questions SET suspended = $2
		WHERE asker = $1 AND answer IS NULL AND suspended <> $2`
	if _, err := r.pool.Exec(ctx, query, asker, suspended); err != nil {
		return fmt.Errorf("set suspended: %w", err)
	}
	return nil
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*models.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query question: %w", err)
	}
	return q, nil
}

func (r *Repository) queryQuestions(ctx context.Context, query string, args ...any) ([]*models.Question, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.Body, &q.Asker, &q.AskedAt, &q.Suspended,
		&q.Assignees, &q.LastAssignedAt, &q.Answer, &q.Answerer, &q.AnsweredAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}
