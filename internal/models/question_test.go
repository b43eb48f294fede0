package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBare(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"user@example.com/laptop", "user@example.com"},
		{"user@example.com", "user@example.com"},
		{"user@example.com/a/b", "user@example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Bare(tt.addr))
	}
}

func TestNewQuestionAssigneesNonNil(t *testing.T) {
	// The assignees column is NOT NULL; a nil slice would encode as SQL NULL
	// and fail the insert.
	q := NewQuestion("q", "asker@example.com", time.Now())
	require.NotNil(t, q.Assignees)
	require.Empty(t, q.Assignees)
}

func TestAssigneeMembership(t *testing.T) {
	q := NewQuestion("q", "asker@example.com", time.Now())
	require.False(t, q.HasAssignee("a@example.com"))

	q.Assignees = []string{"a@example.com", "b@example.com"}
	require.True(t, q.HasAssignee("a@example.com"))

	require.True(t, q.RemoveAssignee("a@example.com"))
	require.False(t, q.HasAssignee("a@example.com"))
	require.Equal(t, []string{"b@example.com"}, q.Assignees)

	require.False(t, q.RemoveAssignee("a@example.com"))
}

func TestCloneIsIndependent(t *testing.T) {
	now := time.Now()
	answer := "42"
	q := NewQuestion("q", "asker@example.com", now)
	q.Assignees = []string{"a@example.com"}
	q.LastAssignedAt = &now
	q.Answer = &answer

	c := q.Clone()
	c.Assignees[0] = "tampered"
	*c.Answer = "tampered"
	*c.LastAssignedAt = now.Add(time.Hour)

	require.Equal(t, []string{"a@example.com"}, q.Assignees)
	require.Equal(t, "42", *q.Answer)
	require.Equal(t, now, *q.LastAssignedAt)
}
