package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/quiz"
	"github.com/trezcool/studyhub/core/user"
)

type quizApi struct {
	svc      *quiz.Service
	groups   *group.Service
	users    *user.Service
	validate *validator.Validate
}

func registerQuizAPI(r routes, deps ServerDeps) {
	api := quizApi{
		svc:      deps.QuizSvc,
		groups:   deps.GroupSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}
	member := groupMemberMiddleware(api.users, api.groups)

	r.api.POST("/quiz/create", api.create, r.jwt)

	r.groups.GET("/:id/quizzes", api.list, member)

	qg := r.api.Group("/quizzes", r.jwt)
	qg.GET("/:id", api.retrieve)
	qg.DELETE("/:id", api.destroy)
	qg.POST("/:id/submit", api.submit)
	qg.GET("/:id/submissions", api.submissions)
}

// create generates a quiz from a material.
//   400: a field is missing, or the material belongs to another group
//   403: userId is not the caller, or the caller is not a member of the group
//   404: the user or the material does not exist
//   500: generation or storage failure
func (api *quizApi) create(ctx echo.Context) error {
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if data.UserID != claims.Subject {
		return errHttpForbidden
	}
	if _, err = api.users.GetByID(ctx.Request().Context(), data.UserID); err != nil {
		return errors.Wrap(err, "finding user")
	}
	if _, err = requireMember(ctx, api.users, api.groups, data.GroupID); err != nil {
		return err
	}

	qz, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, CreateQuizResponse{
		Success:        true,
		QuizID:         qz.ID,
		QuestionsCount: len(qz.Questions),
	})
}

func (api *quizApi) list(ctx echo.Context) error {
	quizzes, err := api.svc.List(ctx.Request().Context(), contextGroup(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	if quizzes == nil {
		quizzes = []quiz.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

// visibleQuiz loads the quiz named by `:id`, with its questions, when the caller is a member of its group.
func (api *quizApi) visibleQuiz(ctx echo.Context) (quiz.Quiz, group.Member, error) {
	qz, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return quiz.Quiz{}, group.Member{}, errors.Wrap(err, "finding quiz")
	}
	mbr, err := requireMember(ctx, api.users, api.groups, qz.GroupID)
	if err != nil {
		return quiz.Quiz{}, group.Member{}, err
	}
	return qz, mbr, nil
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	qz, _, err := api.visibleQuiz(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, qz.WithoutAnswers())
}

func (api *quizApi) destroy(ctx echo.Context) error {
	qz, mbr, err := api.visibleQuiz(ctx)
	if err != nil {
		return err
	}
	if qz.CreatedBy != mbr.UserID && !mbr.CanManage() {
		return errHttpForbidden
	}
	if err = api.svc.Delete(ctx.Request().Context(), qz.ID); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *quizApi) submit(ctx echo.Context) error {
	qz, mbr, err := api.visibleQuiz(ctx)
	if err != nil {
		return err
	}

	var data quiz.Answers
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Answers")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Submit(ctx.Request().Context(), qz.ID, mbr.UserID, data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting answers")
	}
	return ctx.JSON(http.StatusCreated, res)
}

// submissions lists the caller's own submissions to the quiz.
func (api *quizApi) submissions(ctx echo.Context) error {
	qz, mbr, err := api.visibleQuiz(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.Submissions(ctx.Request().Context(), qz.ID, mbr.UserID)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if subs == nil {
		subs = []quiz.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

type CreateQuizResponse struct {
	Success        bool   `json:"success"`
	QuizID         string `json:"quizId"`
	QuestionsCount int    `json:"questionsCount"`
}
