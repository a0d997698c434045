package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/studyhub/core/quiz"
)

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil) // interface compliance check

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db}
}

func (repo *quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz) (quiz.Quiz, error) {
	defer repo.db.lock(ctx)()

	qz.Questions = nil
	repo.db.t.quizzes[qz.ID] = qz
	return qz, nil
}

func (repo *quizRepository) CreateQuestions(ctx context.Context, questions []quiz.Question) error {
	defer repo.db.lock(ctx)()

	for _, q := range questions {
		if _, ok := repo.db.t.quizzes[q.QuizID]; !ok {
			return quiz.ErrNotFound
		}
		q.Options = copyStrings(q.Options)
		repo.db.t.questions[q.ID] = q
	}
	return nil
}

func (repo *quizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	defer repo.db.lock(ctx)()

	qz, ok := repo.db.t.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	return qz, nil
}

func (repo *quizRepository) QueryQuestions(ctx context.Context, quizID string) ([]quiz.Question, error) {
	defer repo.db.lock(ctx)()

	questions := make([]quiz.Question, 0)
	for _, q := range repo.db.t.questions {
		if q.QuizID == quizID {
			questions = append(questions, q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })
	return questions, nil
}

func (repo *quizRepository) QueryQuizzes(ctx context.Context, groupID string) ([]quiz.Quiz, error) {
	defer repo.db.lock(ctx)()

	quizzes := make([]quiz.Quiz, 0)
	for _, qz := range repo.db.t.quizzes {
		if qz.GroupID == groupID {
			quizzes = append(quizzes, qz)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt) })
	return quizzes, nil
}

func (repo *quizRepository) SetQuizTodo(ctx context.Context, quizID, todoID string) error {
	defer repo.db.lock(ctx)()

	qz, ok := repo.db.t.quizzes[quizID]
	if !ok {
		return quiz.ErrNotFound
	}
	qz.TodoID = todoID
	repo.db.t.quizzes[quizID] = qz
	return nil
}

func (repo *quizRepository) DeleteQuiz(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.quizzes[id]; !ok {
		return quiz.ErrNotFound
	}
	repo.db.t.deleteQuiz(id)
	return nil
}

func (repo *quizRepository) CreateSubmission(ctx context.Context, sub quiz.Submission) (quiz.Submission, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.quizzes[sub.QuizID]; !ok {
		return quiz.Submission{}, quiz.ErrNotFound
	}
	answers := make([]int, len(sub.Answers))
	copy(answers, sub.Answers)
	sub.Answers = answers
	repo.db.t.submissions[sub.ID] = sub
	return sub, nil
}

func (repo *quizRepository) QuerySubmissions(ctx context.Context, quizID, userID string) ([]quiz.Submission, error) {
	defer repo.db.lock(ctx)()

	subs := make([]quiz.Submission, 0)
	for _, sub := range repo.db.t.submissions {
		if sub.QuizID == quizID && sub.UserID == userID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *quizRepository) DeleteMemberSubmissions(ctx context.Context, groupID, userID string) (int64, error) {
	defer repo.db.lock(ctx)()

	var n int64
	for id, sub := range repo.db.t.submissions {
		if sub.UserID != userID {
			continue
		}
		if qz, ok := repo.db.t.quizzes[sub.QuizID]; ok && qz.GroupID == groupID {
			delete(repo.db.t.submissions, id)
			n++
		}
	}
	return n, nil
}
