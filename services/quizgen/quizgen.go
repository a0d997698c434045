package quizgen

import (
	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/quiz"
)

// New returns the configured Generator.
func New(conf *core.Config) quiz.Generator {
	if conf.QuizGen.Backend == "openai" && conf.QuizGen.APIKey != "" {
		return NewOpenAI(conf)
	}
	return Local{}
}
