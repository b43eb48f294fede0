package models

import (
	"time"

	"github.com/google/uuid"
)

// Question is the sole persistent entity: a question asked by one user,
// claimed by zero or more answerers, and eventually answered by exactly one.
type Question struct {
	ID        uuid.UUID `json:"id"`
	Body      string    `json:"body"`
	Asker     string    `json:"asker"`
	AskedAt   time.Time `json:"asked_at"`
	Suspended bool      `json:"suspended"`

	// Assignees holds every user with a recorded claim, in claim order.
	// Entries are not pruned when a claim passes its TTL; expiry is decided
	// from LastAssignedAt alone.
	Assignees      []string   `json:"assignees"`
	LastAssignedAt *time.Time `json:"last_assigned_at,omitempty"`

	Answer     *string    `json:"answer,omitempty"`
	Answerer   *string    `json:"answerer,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

// NewQuestion creates an open question with a fresh id and no assignees.
func NewQuestion(body, asker string, askedAt time.Time) *Question {
	return &Question{
		ID:      uuid.New(),
		Body:    body,
		Asker:   asker,
		AskedAt: askedAt,
		// empty, not nil: a nil slice writes SQL NULL into the NOT NULL
		// assignees column.
		Assignees: []string{},
	}
}

// Answered reports whether the question has reached its terminal state.
func (q *Question) Answered() bool {
	return q.Answer != nil
}

// HasAssignee reports whether user holds a recorded claim on the question.
func (q *Question) HasAssignee(user string) bool {
	for _, a := range q.Assignees {
		if a == user {
			return true
		}
	}
	return false
}

// RemoveAssignee drops user's claim if present and reports whether anything changed.
func (q *Question) RemoveAssignee(user string) bool {
	for i, a := range q.Assignees {
		if a == user {
			q.Assignees = append(q.Assignees[:i], q.Assignees[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so callers can mutate the result without
// aliasing store-held state.
func (q *Question) Clone() *Question {
	c := *q
	if q.Assignees != nil {
		// copy via make so an empty slice stays non-nil through the clone
		c.Assignees = make([]string, len(q.Assignees))
		copy(c.Assignees, q.Assignees)
	}
	if q.LastAssignedAt != nil {
		t := *q.LastAssignedAt
		c.LastAssignedAt = &t
	}
	if q.Answer != nil {
		s := *q.Answer
		c.Answer = &s
	}
	if q.Answerer != nil {
		s := *q.Answerer
		c.Answerer = &s
	}
	if q.AnsweredAt != nil {
		t := *q.AnsweredAt
		c.AnsweredAt = &t
	}
	return &c
}
