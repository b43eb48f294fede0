package assignment

import "errors"

var (
	// ErrEmptyAnswer rejects an answer with no text before any store access.
	ErrEmptyAnswer = errors.New("answer text is empty")

	// ErrAlreadyAnswered rejects a second answer on a question whose
	// terminal state is already set.
	ErrAlreadyAnswered = errors.New("question is already answered")
)
