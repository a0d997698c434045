package quiz

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/material"
	"github.com/trezcool/studyhub/core/todo"
)

// maxSourceBytes bounds how much of a text file is sent to the Generator.
const maxSourceBytes = 64 << 10

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("quiz not found")
	ErrGroupMismatch = core.NewInvalidError("the material does not belong to this group")
	ErrAnswerCount   = core.NewInvalidError("the number of answers does not match the number of questions")
	ErrGeneration    = errors.New("quiz generation failed")
)

type (
	Repository interface {
		CreateQuiz(ctx context.Context, qz Quiz) (Quiz, error)
		CreateQuestions(ctx context.Context, questions []Question) error
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		// QueryQuestions returns the questions of a quiz ordered by Position.
		QueryQuestions(ctx context.Context, quizID string) ([]Question, error)
		// QueryQuizzes returns the quizzes of a group, newest first, without their questions.
		QueryQuizzes(ctx context.Context, groupID string) ([]Quiz, error)
		SetQuizTodo(ctx context.Context, quizID, todoID string) error
		DeleteQuiz(ctx context.Context, id string) error

		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		QuerySubmissions(ctx context.Context, quizID, userID string) ([]Submission, error)
		// DeleteMemberSubmissions deletes the submissions userID made to the quizzes of groupID.
		DeleteMemberSubmissions(ctx context.Context, groupID, userID string) (int64, error)
	}

	MaterialLookup interface {
		Get(ctx context.Context, id string) (material.Material, error)
		Open(ctx context.Context, id string) (io.ReadCloser, material.Material, error)
	}

	TodoTracker interface {
		Create(ctx context.Context, userID string, nt todo.NewTodo) (todo.Todo, error)
		SetCompletion(ctx context.Context, todoID, userID string, completed bool) error
	}

	Service struct {
		repo      Repository
		tx        core.Transactor
		gen       Generator
		materials MaterialLookup
		todos     TodoTracker
		logger    core.Logger
		count     int
	}
)

func NewService(
	repo Repository,
	tx core.Transactor,
	gen Generator,
	materials MaterialLookup,
	todos TodoTracker,
	logger core.Logger,
	conf *core.Config,
) *Service {
	count := conf.QuizGen.Questions
	if count <= 0 {
		count = 5
	}
	return &Service{
		repo:      repo,
		tx:        tx,
		gen:       gen,
		materials: materials,
		todos:     todos,
		logger:    logger,
		count:     count,
	}
}

// Create generates a quiz from a material of the group.
// The quiz and its questions are stored together; the follow-up todo is best effort.
func (svc *Service) Create(ctx context.Context, nq NewQuiz) (Quiz, error) {
	mat, err := svc.materials.Get(ctx, nq.MaterialID)
	if err != nil {
		return Quiz{}, err
	}
	if mat.GroupID != nq.GroupID {
		return Quiz{}, ErrGroupMismatch
	}

	src, err := svc.source(ctx, mat)
	if err != nil {
		return Quiz{}, err
	}
	questions, err := svc.gen.Generate(ctx, src, svc.count)
	if err != nil {
		return Quiz{}, errors.Wrap(ErrGeneration, err.Error())
	}
	if err = ValidateQuestions(questions); err != nil {
		return Quiz{}, errors.Wrap(ErrGeneration, err.Error())
	}

	qz := Quiz{
		ID:         uuid.New().String(),
		GroupID:    nq.GroupID,
		MaterialID: mat.ID,
		CreatedBy:  nq.UserID,
		Title:      "Quiz: " + mat.Title,
		CreatedAt:  time.Now().UTC(),
	}
	for i := range questions {
		questions[i].ID = uuid.New().String()
		questions[i].QuizID = qz.ID
		questions[i].Position = i
	}

	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if qz, err = svc.repo.CreateQuiz(ctx, qz); err != nil {
			return errors.Wrap(err, "creating quiz")
		}
		return errors.Wrap(svc.repo.CreateQuestions(ctx, questions), "creating questions")
	})
	if err != nil {
		return Quiz{}, err
	}
	qz.Questions = questions

	svc.linkTodo(ctx, &qz, mat.Title)
	return qz, nil
}

// linkTodo adds a "Complete Quiz: <material>" todo to the group. Failures only leave the quiz without a todo.
func (svc *Service) linkTodo(ctx context.Context, qz *Quiz, materialTitle string) {
	td, err := svc.todos.Create(ctx, qz.CreatedBy, todo.NewTodo{
		Title:    "Complete Quiz: " + materialTitle,
		Priority: todo.PriorityMedium,
		GroupID:  qz.GroupID,
	})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("quiz %s: creating todo: %v", qz.ID, err), err)
		return
	}
	if err = svc.repo.SetQuizTodo(ctx, qz.ID, td.ID); err != nil {
		svc.logger.Warn(fmt.Sprintf("quiz %s: linking todo: %v", qz.ID, err), err)
		return
	}
	qz.TodoID = td.ID
}

// source collects the text the questions are generated from.
// Text files are read from storage; other files only contribute their title.
func (svc *Service) source(ctx context.Context, mat material.Material) (Source, error) {
	src := Source{Title: mat.Title, Content: mat.Content, URL: mat.URL}
	if !mat.IsFile() || !strings.HasPrefix(mat.MimeType, "text/") {
		return src, nil
	}
	rc, _, err := svc.materials.Open(ctx, mat.ID)
	if err != nil {
		return Source{}, errors.Wrap(err, "opening material")
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(io.LimitReader(rc, maxSourceBytes))
	if err != nil {
		return Source{}, errors.Wrap(err, "reading material")
	}
	src.Content = string(b)
	return src, nil
}

// Get returns the quiz with its questions.
func (svc *Service) Get(ctx context.Context, id string) (Quiz, error) {
	qz, err := svc.repo.GetQuiz(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	if qz.Questions, err = svc.repo.QueryQuestions(ctx, id); err != nil {
		return Quiz{}, err
	}
	return qz, nil
}

func (svc *Service) List(ctx context.Context, groupID string) ([]Quiz, error) {
	return svc.repo.QueryQuizzes(ctx, groupID)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteQuiz(ctx, id)
}

// Submit grades userID's answers, records the submission and completes the linked todo for userID.
func (svc *Service) Submit(ctx context.Context, quizID, userID string, answers []int) (Result, error) {
	qz, err := svc.Get(ctx, quizID)
	if err != nil {
		return Result{}, err
	}
	if len(answers) != len(qz.Questions) {
		return Result{}, ErrAnswerCount
	}

	score, correct := Score(qz.Questions, answers)
	sub, err := svc.repo.CreateSubmission(ctx, Submission{
		ID:          uuid.New().String(),
		QuizID:      quizID,
		UserID:      userID,
		Answers:     answers,
		Score:       score,
		Total:       len(qz.Questions),
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return Result{}, err
	}

	if qz.TodoID != "" {
		if err = svc.todos.SetCompletion(ctx, qz.TodoID, userID, true); err != nil {
			svc.logger.Warn(fmt.Sprintf("quiz %s: completing todo %s: %v", quizID, qz.TodoID, err), err)
		}
	}

	return Result{
		SubmissionID: sub.ID,
		Score:        sub.Score,
		Total:        sub.Total,
		Correct:      correct,
		Questions:    qz.Questions,
	}, nil
}

// Submissions returns userID's submissions to a quiz, newest first.
func (svc *Service) Submissions(ctx context.Context, quizID, userID string) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, quizID, userID)
}

// PurgeMember deletes the submissions userID made to the quizzes of groupID.
func (svc *Service) PurgeMember(ctx context.Context, groupID, userID string) error {
	_, err := svc.repo.DeleteMemberSubmissions(ctx, groupID, userID)
	return errors.Wrap(err, "deleting member submissions")
}
