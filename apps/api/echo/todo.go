package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/todo"
	"github.com/trezcool/studyhub/core/user"
)

type todoApi struct {
	svc      *todo.Service
	groups   *group.Service
	users    *user.Service
	validate *validator.Validate
}

func registerTodoAPI(r routes, deps ServerDeps) {
	api := todoApi{
		svc:      deps.TodoSvc,
		groups:   deps.GroupSvc,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}

	tg := r.api.Group("/todos", r.jwt)
	tg.GET("", api.list)
	tg.POST("", api.create)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)
	tg.POST("/:id/toggle", api.toggle)
}

func (api *todoApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter, err := bindTodoFilter(ctx)
	if err != nil {
		return err
	}

	todos, err := api.svc.ListForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing todos")
	}
	return ctx.JSON(http.StatusOK, filter.Apply(todos))
}

func (api *todoApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data todo.NewTodo
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTodo")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if data.GroupID != "" {
		if _, err = requireMember(ctx, api.users, api.groups, data.GroupID); err != nil {
			return err
		}
	}

	td, err := api.svc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating todo")
	}
	return ctx.JSON(http.StatusCreated, td.ForUser(usr.ID))
}

// visibleTodo loads the todo named by `:id` as the caller sees it.
// Personal todos are only visible to their creator, group todos to the group members.
func (api *todoApi) visibleTodo(ctx echo.Context) (todo.Todo, user.User, error) {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return todo.Todo{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	td, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), usr.ID)
	if err != nil {
		return todo.Todo{}, user.User{}, errors.Wrap(err, "finding todo")
	}
	if td.IsGroup() {
		if _, err = requireMember(ctx, api.users, api.groups, td.GroupID); err != nil {
			return todo.Todo{}, user.User{}, err
		}
	} else if td.UserID != usr.ID {
		return todo.Todo{}, user.User{}, todo.ErrNotFound
	}
	return td, usr, nil
}

func (api *todoApi) retrieve(ctx echo.Context) error {
	td, _, err := api.visibleTodo(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, td)
}

func (api *todoApi) update(ctx echo.Context) error {
	td, usr, err := api.visibleTodo(ctx)
	if err != nil {
		return err
	}

	var data todo.UpdateTodo
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTodo")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if data.GroupID != nil && *data.GroupID != "" && *data.GroupID != td.GroupID {
		if _, err = requireMember(ctx, api.users, api.groups, *data.GroupID); err != nil {
			return err
		}
	}

	td, err = api.svc.Update(ctx.Request().Context(), td.ID, data, usr.ID)
	if err != nil {
		return errors.Wrap(err, "updating todo")
	}
	return ctx.JSON(http.StatusOK, td)
}

func (api *todoApi) toggle(ctx echo.Context) error {
	td, usr, err := api.visibleTodo(ctx)
	if err != nil {
		return err
	}

	var data ToggleTodoRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleTodoRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	td, err = api.svc.Toggle(ctx.Request().Context(), td.ID, data.Status, usr.ID)
	if err != nil {
		return errors.Wrap(err, "toggling todo")
	}
	return ctx.JSON(http.StatusOK, td)
}

// destroy lets the creator delete a todo, and the group managers delete group todos.
func (api *todoApi) destroy(ctx echo.Context) error {
	td, usr, err := api.visibleTodo(ctx)
	if err != nil {
		return err
	}
	if td.IsGroup() && td.UserID != usr.ID {
		if _, err = requireManager(ctx, api.users, api.groups, td.GroupID); err != nil {
			return err
		}
	}

	if err = api.svc.Delete(ctx.Request().Context(), td.ID); err != nil {
		return errors.Wrap(err, "deleting todo")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type ToggleTodoRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed"`
}
