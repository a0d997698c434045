package quiz

import (
	"context"

	"github.com/pkg/errors"
)

// Source is the study material questions are generated from.
type Source struct {
	Title   string
	Content string
	URL     string
}

// Generator writes multiple choice questions about a Source.
// Questions come back without ids and with Position set from 0.
type Generator interface {
	Generate(ctx context.Context, src Source, count int) ([]Question, error)
}

// ValidateQuestions checks generated questions are answerable.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return errors.New("no questions generated")
	}
	for i, q := range questions {
		if q.Question == "" {
			return errors.Errorf("question %d: empty question", i)
		}
		if len(q.Options) < 2 {
			return errors.Errorf("question %d: expected at least 2 options, got %d", i, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return errors.Errorf("question %d: correct index %d out of range", i, q.CorrectIndex)
		}
	}
	return nil
}
