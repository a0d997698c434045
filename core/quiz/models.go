package quiz

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/studyhub/core"
)

type Quiz struct {
	ID         string     `json:"id"`
	GroupID    string     `json:"group_id"`
	MaterialID string     `json:"material_id"`
	CreatedBy  string     `json:"created_by"`
	Title      string     `json:"title"`
	TodoID     string     `json:"todo_id"`
	CreatedAt  time.Time  `json:"created_at"`
	Questions  []Question `json:"questions,omitempty"`
}

// WithoutAnswers returns a copy of the quiz that does not reveal the correct options.
func (q Quiz) WithoutAnswers() Quiz {
	questions := make([]Question, len(q.Questions))
	for i, qst := range q.Questions {
		qst.CorrectIndex = -1
		qst.Explanation = ""
		questions[i] = qst
	}
	q.Questions = questions
	return q
}

type Question struct {
	ID           string   `json:"id"`
	QuizID       string   `json:"quiz_id"`
	Position     int      `json:"position"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
}

type Submission struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quiz_id"`
	UserID      string    `json:"user_id"`
	Answers     []int     `json:"answers"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewQuiz is the body of a quiz creation request.
type NewQuiz struct {
	MaterialID string `json:"materialId" validate:"required"`
	GroupID    string `json:"groupId" validate:"required"`
	UserID     string `json:"userId" validate:"required"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.MaterialID = core.CleanString(nq.MaterialID)
	nq.GroupID = core.CleanString(nq.GroupID)
	nq.UserID = core.CleanString(nq.UserID)
	return validate.Struct(nq)
}

type Answers struct {
	Answers []int `json:"answers" validate:"required,dive,min=0"`
}

func (a *Answers) Validate(validate *validator.Validate) error {
	return validate.Struct(a)
}

// Result is the outcome of a submission. Correct[i] tells whether answer i was right.
type Result struct {
	SubmissionID string     `json:"submission_id"`
	Score        int        `json:"score"`
	Total        int        `json:"total"`
	Correct      []bool     `json:"correct"`
	Questions    []Question `json:"questions"`
}

// Score grades answers against questions, in order.
func Score(questions []Question, answers []int) (score int, correct []bool) {
	correct = make([]bool, len(questions))
	for i, q := range questions {
		if i < len(answers) && answers[i] == q.CorrectIndex {
			correct[i] = true
			score++
		}
	}
	return score, correct
}
