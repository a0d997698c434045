package quizgen

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/trezcool/studyhub/core/quiz"
)

var fallbackWords = []string{"analysis", "function", "structure", "process", "theory", "method", "variable", "system"}

// Local builds fill-in-the-blank questions from the material text without any external call.
// The same Source always yields the same questions.
type Local struct{}

var _ quiz.Generator = Local{} // interface compliance check

func (Local) Generate(_ context.Context, src quiz.Source, count int) ([]quiz.Question, error) {
	text := strings.TrimSpace(src.Content)
	if text == "" {
		text = src.Title
	}
	sentences := splitSentences(text)
	vocab := keywords(text)

	questions := make([]quiz.Question, 0, count)
	for _, s := range sentences {
		if len(questions) == count {
			break
		}
		answer := longestWord(s)
		if len(answer) < 4 {
			continue
		}
		pos := len(questions)
		questions = append(questions, quiz.Question{
			Position:     pos,
			Question:     "Fill in the blank: " + blank(s, answer),
			Options:      options(answer, vocab, pos),
			CorrectIndex: pos % 4,
			Explanation:  s,
		})
	}

	if len(questions) == 0 {
		title := src.Title
		if title == "" {
			title = "this material"
		}
		questions = append(questions, quiz.Question{
			Position:     0,
			Question:     "Which material is this quiz about?",
			Options:      []string{title, "None of the above"},
			CorrectIndex: 0,
		})
	}
	return questions, nil
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' || r == '?' || r == '\n' })
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); len(strings.Fields(p)) >= 4 {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

func cleanWord(w string) string {
	return strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
}

func longestWord(s string) string {
	var longest string
	for _, w := range strings.Fields(s) {
		if w = cleanWord(w); len(w) > len(longest) {
			longest = w
		}
	}
	return longest
}

func blank(s, word string) string {
	return strings.Replace(s, word, "_____", 1)
}

// keywords returns the distinct words of 5 letters or more, longest first.
func keywords(text string) []string {
	seen := make(map[string]bool)
	words := make([]string, 0)
	for _, w := range strings.Fields(text) {
		w = cleanWord(w)
		lw := strings.ToLower(w)
		if len(w) >= 5 && !seen[lw] {
			seen[lw] = true
			words = append(words, w)
		}
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	return words
}

// options returns 4 options with answer at index pos%4.
func options(answer string, vocab []string, pos int) []string {
	distractors := make([]string, 0, 3)
	for _, pool := range [][]string{vocab, fallbackWords} {
		for _, w := range pool {
			if len(distractors) == 3 {
				break
			}
			if strings.EqualFold(w, answer) || containsFold(distractors, w) {
				continue
			}
			distractors = append(distractors, w)
		}
	}

	opts := make([]string, 0, 4)
	opts = append(opts, distractors[:pos%4]...)
	opts = append(opts, answer)
	opts = append(opts, distractors[pos%4:]...)
	return opts
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
