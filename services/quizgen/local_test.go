package quizgen

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studyhub/core/quiz"
)

const photosynthesis = "Photosynthesis converts light energy into chemical energy. " +
	"Chlorophyll absorbs mostly blue and red wavelengths. " +
	"The Calvin cycle fixes carbon dioxide into sugars."

func TestLocal_Generate(t *testing.T) {
	src := quiz.Source{Title: "Photosynthesis", Content: photosynthesis}
	questions, err := Local{}.Generate(context.Background(), src, 5)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	require.NoError(t, quiz.ValidateQuestions(questions))

	for i, q := range questions {
		assert.Equal(t, i, q.Position)
		assert.Equal(t, i%4, q.CorrectIndex)
		require.Len(t, q.Options, 4)
		answer := q.Options[q.CorrectIndex]
		assert.Contains(t, q.Explanation, answer)
		assert.NotContains(t, q.Question, answer)
		assert.True(t, strings.HasPrefix(q.Question, "Fill in the blank: "))

		seen := make(map[string]bool)
		for _, o := range q.Options {
			assert.False(t, seen[strings.ToLower(o)], "duplicate option %q", o)
			seen[strings.ToLower(o)] = true
		}
	}
	assert.Equal(t, "Photosynthesis", questions[0].Options[0])

	again, err := Local{}.Generate(context.Background(), src, 5)
	require.NoError(t, err)
	assert.Equal(t, questions, again, "same source, same questions")

	few, err := Local{}.Generate(context.Background(), src, 2)
	require.NoError(t, err)
	assert.Equal(t, questions[:2], few)
}

func TestLocal_Generate_fallback(t *testing.T) {
	tests := []struct {
		name  string
		src   quiz.Source
		title string
	}{
		{name: "no content", src: quiz.Source{Title: "Optics"}, title: "Optics"},
		{name: "short sentences", src: quiz.Source{Title: "Links", Content: "See slides. Read ch 2."}, title: "Links"},
		{name: "nothing at all", src: quiz.Source{}, title: "this material"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			questions, err := Local{}.Generate(context.Background(), tt.src, 5)
			require.NoError(t, err)
			require.Len(t, questions, 1)
			assert.Equal(t, []string{tt.title, "None of the above"}, questions[0].Options)
			assert.NoError(t, quiz.ValidateQuestions(questions))
		})
	}
}
