// Package assignment implements the question assignment engine: optimistic,
// lock-free claiming of open questions with TTL-based expiry of stale claims.
// All coordination is pushed down to the store's per-record transaction; the
// engine itself keeps no shared state and is safe for concurrent use.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crowdguru/backend/internal/models"
	"github.com/crowdguru/backend/internal/questions"
)

const (
	// DefaultTTL is how long a claim is honored as exclusive before another
	// caller may supersede it.
	DefaultTTL = 120 * time.Second

	// candidateFetch is 2, not 1: fetching a second candidate lets the
	// engine skip a question asked by the requesting user without another
	// query round-trip.
	candidateFetch = 2
)

// Store is the slice of the question store the engine needs.
type Store interface {
	Mutate(ctx context.Context, id uuid.UUID, fn questions.MutateFunc) (*models.Question, error)
	Candidates(ctx context.Context, expiry time.Time, limit int) ([]*models.Question, error)
	OpenAskedBy(ctx context.Context, asker string) (*models.Question, error)
	OpenAssignedTo(ctx context.Context, user string) (*models.Question, error)
}

// Config carries the engine's dependencies. Store is required; the rest
// default to DefaultTTL, time.Now and a no-op logger.
type Config struct {
	Store  Store
	TTL    time.Duration
	Now    func() time.Time
	Logger *zap.Logger
}

// Engine selects, claims, releases and answers questions.
type Engine struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewEngine creates an assignment engine from cfg.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		store:  cfg.Store,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
	if e.ttl <= 0 {
		e.ttl = DefaultTTL
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// AskerNotice is what the caller needs to tell the asker their question has
// been answered. The engine performs no delivery itself.
type AskerNotice struct {
	Asker    string
	Question string
	Answer   string
}

// Assign finds an open question not validly claimed by anyone, claims it for
// user, and returns it. Returns nil when no eligible question exists. A user
// never receives their own question.
//
// The loop is optimistic: the candidate query races freely with other
// callers' claims, and the claim transaction re-checks exclusivity against
// the store's current state. Losing the race restarts selection with a fresh
// expiry; each round either claims a question, moves to a different
// candidate, or observes an empty candidate set and stops.
func (e *Engine) Assign(ctx context.Context, user string) (*models.Question, error) {
	for {
		expiry := e.now().Add(-e.ttl)
		candidates, err := e.store.Candidates(ctx, expiry, candidateFetch)
		if err != nil {
			return nil, fmt.Errorf("select candidates: %w", err)
		}

		var pick *models.Question
		for _, c := range candidates {
			if c.Asker != user {
				pick = c
				break
			}
		}
		if pick == nil {
			// Queue empty for this user.
			return nil, nil
		}

		claimed, err := e.tryClaim(ctx, pick.ID, user)
		if err != nil {
			return nil, err
		}
		if claimed.HasAssignee(user) {
			return claimed, nil
		}
		// Another caller claimed it between our query and our transaction.
		e.logger.Debug("claim race lost, reselecting",
			zap.String("user", user), zap.String("question_id", pick.ID.String()))
	}
}

// tryClaim attempts to record a claim for user on one question. The expiry is
// recomputed inside the transaction so the exclusivity check runs against the
// record's committed state at transaction time. When the existing claim is
// still fresh the record is left untouched; the caller detects the lost race
// from the returned record.
func (e *Engine) tryClaim(ctx context.Context, id uuid.UUID, user string) (*models.Question, error) {
	q, err := e.store.Mutate(ctx, id, func(q *models.Question) (bool, error) {
		if q.Answered() {
			return false, nil
		}
		expiry := e.now().Add(-e.ttl)
		if q.LastAssignedAt == nil || q.LastAssignedAt.Before(expiry) {
			// A user holds at most one entry; a re-claim after expiry
			// replaces their stale entry rather than duplicating it.
			q.RemoveAssignee(user)
			q.Assignees = append(q.Assignees, user)
			now := e.now()
			q.LastAssignedAt = &now
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim question: %w", err)
	}
	return q, nil
}

// Release removes user's claim on a question if present. Stale entries left
// by other users are deliberately kept; expiry is decided from
// LastAssignedAt, never from the assignee list.
func (e *Engine) Release(ctx context.Context, id uuid.UUID, user string) error {
	_, err := e.store.Mutate(ctx, id, func(q *models.Question) (bool, error) {
		return q.RemoveAssignee(user), nil
	})
	if err != nil {
		return fmt.Errorf("release question: %w", err)
	}
	return nil
}

// Answer records the terminal transition: sets answer, answerer and
// answered-at, clears the assignee list, and returns the asker notice plus
// the superseded assignees who should hear that someone else was faster.
// A second answer on the same question fails with ErrAlreadyAnswered.
func (e *Engine) Answer(ctx context.Context, id uuid.UUID, user, text string) (*AskerNotice, []string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyAnswer
	}

	var superseded []string
	q, err := e.store.Mutate(ctx, id, func(q *models.Question) (bool, error) {
		if q.Answered() {
			return false, ErrAlreadyAnswered
		}
		superseded = superseded[:0]
		for _, a := range q.Assignees {
			if a != user {
				superseded = append(superseded, a)
			}
		}
		now := e.now()
		q.Answer = &text
		q.Answerer = &user
		q.AnsweredAt = &now
		// empty, not nil: the assignees column is NOT NULL.
		q.Assignees = []string{}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyAnswered) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("answer question: %w", err)
	}

	e.logger.Info("question answered",
		zap.String("question_id", q.ID.String()),
		zap.String("answerer", user),
		zap.Int("superseded", len(superseded)))
	return &AskerNotice{Asker: q.Asker, Question: q.Body, Answer: text}, superseded, nil
}

// OpenAskedBy returns the user's outstanding unanswered question, if any.
func (e *Engine) OpenAskedBy(ctx context.Context, user string) (*models.Question, error) {
	q, err := e.store.OpenAskedBy(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("open asked by: %w", err)
	}
	return q, nil
}

// OpenAssignedTo returns the question the user currently holds a claim on, if any.
func (e *Engine) OpenAssignedTo(ctx context.Context, user string) (*models.Question, error) {
	q, err := e.store.OpenAssignedTo(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("open assigned to: %w", err)
	}
	return q, nil
}
