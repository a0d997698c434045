package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studyhub/core/quiz"
)

const (
	quizColumns       = "id, group_id, material_id, created_by, title, todo_id, created_at"
	questionColumns   = "id, quiz_id, position, question, options, correct_index, explanation"
	submissionColumns = "id, quiz_id, user_id, answers, score, total, submitted_at"
)

type quizRow struct {
	ID         string      `db:"id"`
	GroupID    string      `db:"group_id"`
	MaterialID null.String `db:"material_id"`
	CreatedBy  string      `db:"created_by"`
	Title      string      `db:"title"`
	TodoID     null.String `db:"todo_id"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r quizRow) toQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:         r.ID,
		GroupID:    r.GroupID,
		MaterialID: r.MaterialID.String,
		CreatedBy:  r.CreatedBy,
		Title:      r.Title,
		TodoID:     r.TodoID.String,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type questionRow struct {
	ID           string         `db:"id"`
	QuizID       string         `db:"quiz_id"`
	Position     int            `db:"position"`
	Question     string         `db:"question"`
	Options      pq.StringArray `db:"options"`
	CorrectIndex int            `db:"correct_index"`
	Explanation  string         `db:"explanation"`
}

type submissionRow struct {
	ID          string        `db:"id"`
	QuizID      string        `db:"quiz_id"`
	UserID      string        `db:"user_id"`
	Answers     pq.Int64Array `db:"answers"`
	Score       int           `db:"score"`
	Total       int           `db:"total"`
	SubmittedAt time.Time     `db:"submitted_at"`
}

func (r submissionRow) toSubmission() quiz.Submission {
	answers := make([]int, len(r.Answers))
	for i, a := range r.Answers {
		answers[i] = int(a)
	}
	return quiz.Submission{
		ID:          r.ID,
		QuizID:      r.QuizID,
		UserID:      r.UserID,
		Answers:     answers,
		Score:       r.Score,
		Total:       r.Total,
		SubmittedAt: r.SubmittedAt.UTC(),
	}
}

type quizRepository struct {
	db *sqlx.DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *sqlx.DB) quiz.Repository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz) (quiz.Quiz, error) {
	qb := psql.Insert("quiz").
		Columns("id", "group_id", "material_id", "created_by", "title", "todo_id", "created_at").
		Values(qz.ID, qz.GroupID, nullString(qz.MaterialID), qz.CreatedBy, qz.Title, nullString(qz.TodoID), qz.CreatedAt)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		return quiz.Quiz{}, err
	}
	qz.Questions = nil
	return qz, nil
}

func (repo *quizRepository) CreateQuestions(ctx context.Context, questions []quiz.Question) error {
	if len(questions) == 0 {
		return nil
	}
	qb := psql.Insert("quiz_question").
		Columns("id", "quiz_id", "position", "question", "options", "correct_index", "explanation")
	for _, q := range questions {
		qb = qb.Values(q.ID, q.QuizID, q.Position, q.Question, textArray(q.Options), q.CorrectIndex, q.Explanation)
	}
	_, err := exec(ctx, repo.db, qb)
	return err
}

func (repo *quizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	var row quizRow
	if err := get(ctx, repo.db, &row, psql.Select(quizColumns).From("quiz").Where(sq.Eq{"id": id})); err != nil {
		return quiz.Quiz{}, notFound(err, quiz.ErrNotFound)
	}
	return row.toQuiz(), nil
}

func (repo *quizRepository) QueryQuestions(ctx context.Context, quizID string) ([]quiz.Question, error) {
	var rows []questionRow
	qb := psql.Select(questionColumns).From("quiz_question").Where(sq.Eq{"quiz_id": quizID}).OrderBy("position ASC")
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	questions := make([]quiz.Question, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, quiz.Question{
			ID:           r.ID,
			QuizID:       r.QuizID,
			Position:     r.Position,
			Question:     r.Question,
			Options:      []string(r.Options),
			CorrectIndex: r.CorrectIndex,
			Explanation:  r.Explanation,
		})
	}
	return questions, nil
}

func (repo *quizRepository) QueryQuizzes(ctx context.Context, groupID string) ([]quiz.Quiz, error) {
	var rows []quizRow
	qb := psql.Select(quizColumns).From("quiz").Where(sq.Eq{"group_id": groupID}).OrderBy("created_at DESC")
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	quizzes := make([]quiz.Quiz, 0, len(rows))
	for _, r := range rows {
		quizzes = append(quizzes, r.toQuiz())
	}
	return quizzes, nil
}

func (repo *quizRepository) SetQuizTodo(ctx context.Context, quizID, todoID string) error {
	n, err := exec(ctx, repo.db, psql.Update("quiz").Set("todo_id", nullString(todoID)).Where(sq.Eq{"id": quizID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return quiz.ErrNotFound
	}
	return nil
}

func (repo *quizRepository) DeleteQuiz(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("quiz").Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return quiz.ErrNotFound
	}
	return nil
}

func (repo *quizRepository) CreateSubmission(ctx context.Context, sub quiz.Submission) (quiz.Submission, error) {
	answers := make(pq.Int64Array, len(sub.Answers))
	for i, a := range sub.Answers {
		answers[i] = int64(a)
	}
	qb := psql.Insert("quiz_submission").
		Columns("id", "quiz_id", "user_id", "answers", "score", "total", "submitted_at").
		Values(sub.ID, sub.QuizID, sub.UserID, answers, sub.Score, sub.Total, sub.SubmittedAt)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		return quiz.Submission{}, err
	}
	return sub, nil
}

func (repo *quizRepository) QuerySubmissions(ctx context.Context, quizID, userID string) ([]quiz.Submission, error) {
	var rows []submissionRow
	qb := psql.Select(submissionColumns).From("quiz_submission").
		Where(sq.Eq{"quiz_id": quizID, "user_id": userID}).
		OrderBy("submitted_at DESC")
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	subs := make([]quiz.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubmission())
	}
	return subs, nil
}

func (repo *quizRepository) DeleteMemberSubmissions(ctx context.Context, groupID, userID string) (int64, error) {
	qb := psql.Delete("quiz_submission").
		Where(sq.Eq{"user_id": userID}).
		Where("quiz_id IN (SELECT id FROM quiz WHERE group_id = ?)", groupID)
	return exec(ctx, repo.db, qb)
}
