package todo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/studyhub/core"
)

// Acting user policies for Toggle on group todos.
const (
	// ActorCreator records the completion against the todo's creator.
	ActorCreator = "creator"
	// ActorCaller records the completion against the user toggling the todo.
	ActorCaller = "caller"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("todo not found")
)

type (
	Repository interface {
		CreateTodo(ctx context.Context, td Todo) (Todo, error)
		GetTodo(ctx context.Context, id string) (Todo, error)
		// QueryTodos returns the personal todos created by userID and every todo of the given groups,
		// ordered by creation date, newest first.
		QueryTodos(ctx context.Context, userID string, groupIDs []string) ([]Todo, error)
		UpdateTodo(ctx context.Context, td Todo) (Todo, error)
		DeleteTodo(ctx context.Context, id string) error

		// UpsertCompletion inserts the completion or updates the existing (TodoID, UserID) one.
		UpsertCompletion(ctx context.Context, c Completion) error
		DeleteCompletion(ctx context.Context, todoID, userID string) error
		DeleteCompletions(ctx context.Context, todoID string) error
		QueryCompletions(ctx context.Context, userID string, todoIDs ...string) ([]Completion, error)
		// PruneCompletions deletes the completions whose todo is gone, or whose user is no longer
		// a member of the todo's group. It returns the number of deleted rows.
		PruneCompletions(ctx context.Context) (int64, error)
	}

	GroupLookup interface {
		UserGroupIDs(ctx context.Context, userID string) ([]string, error)
		MemberIDs(ctx context.Context, groupID string) ([]string, error)
	}

	Service struct {
		repo   Repository
		tx     core.Transactor
		groups GroupLookup
		cache  *core.Cache
		actor  string
	}
)

func NewService(repo Repository, tx core.Transactor, groups GroupLookup, cache *core.Cache, conf *core.Config) *Service {
	actor := conf.Todo.CompletionActor
	if actor != ActorCaller {
		actor = ActorCreator
	}
	return &Service{repo: repo, tx: tx, groups: groups, cache: cache, actor: actor}
}

func (svc *Service) Create(ctx context.Context, userID string, nt NewTodo) (Todo, error) {
	now := time.Now().UTC()
	td := Todo{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       nt.Title,
		Description: nt.Description,
		Status:      nt.Status,
		Type:        TypePersonal,
		Priority:    nt.Priority,
		GroupID:     nt.GroupID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if td.Status == "" {
		td.Status = StatusPending
	}
	if td.GroupID != "" {
		td.Type = TypeGroup
	}
	if nt.DueDate != nil {
		due := nt.DueDate.UTC()
		td.DueDate = &due
	}

	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if td, err = svc.repo.CreateTodo(ctx, td); err != nil {
			return errors.Wrap(err, "creating todo")
		}
		if td.Status == StatusCompleted {
			return svc.repo.UpsertCompletion(ctx, Completion{TodoID: td.ID, UserID: userID, Completed: true, CompletedAt: now})
		}
		return nil
	})
	if err != nil {
		return Todo{}, err
	}
	svc.invalidate(ctx, td)
	return td, nil
}

// Get returns the todo as userID sees it.
func (svc *Service) Get(ctx context.Context, id, userID string) (Todo, error) {
	td, err := svc.repo.GetTodo(ctx, id)
	if err != nil {
		return Todo{}, err
	}
	if err = svc.loadCompletions(ctx, userID, []*Todo{&td}); err != nil {
		return Todo{}, err
	}
	return td.ForUser(userID), nil
}

// Update changes a todo on behalf of actingUserID.
// A status change on a group todo only records or removes actingUserID's completion.
func (svc *Service) Update(ctx context.Context, id string, ut UpdateTodo, actingUserID string) (Todo, error) {
	return svc.update(ctx, id, ut, func(Todo) string { return actingUserID })
}

// Toggle sets the status of a todo. For group todos the completion is recorded against
// the todo's creator or the caller, depending on the configured policy.
func (svc *Service) Toggle(ctx context.Context, id, status, callerID string) (Todo, error) {
	return svc.update(ctx, id, UpdateTodo{Status: &status}, func(td Todo) string {
		if svc.actor == ActorCaller {
			return callerID
		}
		return td.UserID
	})
}

func (svc *Service) update(ctx context.Context, id string, ut UpdateTodo, actor func(Todo) string) (Todo, error) {
	var (
		td       Todo
		prevTodo Todo
		actingID string
	)
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if td, err = svc.repo.GetTodo(ctx, id); err != nil {
			return err
		}
		prevTodo = td
		actingID = actor(td)
		now := time.Now().UTC()

		if ut.Status != nil {
			if td.IsGroup() {
				if err = svc.setCompletion(ctx, td.ID, actingID, *ut.Status == StatusCompleted, now); err != nil {
					return err
				}
			} else {
				if *ut.Status == StatusCompleted && td.Status != StatusCompleted {
					c := Completion{TodoID: td.ID, UserID: td.UserID, Completed: true, CompletedAt: now}
					if err = svc.repo.UpsertCompletion(ctx, c); err != nil {
						return errors.Wrap(err, "recording completion")
					}
				}
				td.Status = *ut.Status
			}
		}

		ut.apply(&td)
		td.UpdatedAt = now
		td, err = svc.repo.UpdateTodo(ctx, td)
		return err
	})
	if err != nil {
		return Todo{}, err
	}

	svc.invalidate(ctx, prevTodo)
	if prevTodo.GroupID != td.GroupID {
		svc.invalidate(ctx, td)
	}
	if td.IsGroup() && ut.Status != nil {
		td.Status = *ut.Status
	}
	return td, nil
}

// SetCompletion records (completed) or removes userID's completion of a todo.
func (svc *Service) SetCompletion(ctx context.Context, todoID, userID string, completed bool) error {
	td, err := svc.repo.GetTodo(ctx, todoID)
	if err != nil {
		return err
	}
	if err = svc.setCompletion(ctx, todoID, userID, completed, time.Now().UTC()); err != nil {
		return err
	}
	svc.cache.Invalidate([]string{userID}, core.CacheTodos)
	if td.UserID != userID {
		svc.cache.Invalidate([]string{td.UserID}, core.CacheTodos)
	}
	return nil
}

func (svc *Service) setCompletion(ctx context.Context, todoID, userID string, completed bool, at time.Time) error {
	if completed {
		c := Completion{TodoID: todoID, UserID: userID, Completed: true, CompletedAt: at}
		return errors.Wrap(svc.repo.UpsertCompletion(ctx, c), "recording completion")
	}
	return errors.Wrap(svc.repo.DeleteCompletion(ctx, todoID, userID), "removing completion")
}

// Delete deletes the todo and its completions.
func (svc *Service) Delete(ctx context.Context, id string) error {
	var td Todo
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if td, err = svc.repo.GetTodo(ctx, id); err != nil {
			return err
		}
		if err = svc.repo.DeleteCompletions(ctx, id); err != nil {
			return errors.Wrap(err, "deleting completions")
		}
		return svc.repo.DeleteTodo(ctx, id)
	})
	if err != nil {
		return err
	}
	svc.invalidate(ctx, td)
	return nil
}

// ListForUser returns the personal todos of userID and the todos of their groups, as userID sees them.
func (svc *Service) ListForUser(ctx context.Context, userID string) ([]Todo, error) {
	if cached, ok := svc.cache.Get(userID, core.CacheTodos); ok {
		if todos, ok := cached.([]Todo); ok {
			return todos, nil
		}
	}

	groupIDs, err := svc.groups.UserGroupIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying user groups")
	}
	todos, err := svc.repo.QueryTodos(ctx, userID, groupIDs)
	if err != nil {
		return nil, err
	}
	ptrs := make([]*Todo, 0, len(todos))
	for i := range todos {
		ptrs = append(ptrs, &todos[i])
	}
	if err = svc.loadCompletions(ctx, userID, ptrs); err != nil {
		return nil, err
	}
	for i := range todos {
		todos[i] = todos[i].ForUser(userID)
	}

	svc.cache.Set(userID, core.CacheTodos, todos)
	return todos, nil
}

// PruneCompletions deletes orphaned completions.
func (svc *Service) PruneCompletions(ctx context.Context) (int64, error) {
	n, err := svc.repo.PruneCompletions(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		svc.cache.InvalidateResource(core.CacheTodos)
	}
	return n, nil
}

// loadCompletions fetches userID's completions for the todos once and attaches them.
func (svc *Service) loadCompletions(ctx context.Context, userID string, todos []*Todo) error {
	if len(todos) == 0 {
		return nil
	}
	ids := make([]string, 0, len(todos))
	for _, td := range todos {
		ids = append(ids, td.ID)
	}
	completions, err := svc.repo.QueryCompletions(ctx, userID, ids...)
	if err != nil {
		return errors.Wrap(err, "querying completions")
	}
	byTodo := make(map[string]Completion, len(completions))
	for _, c := range completions {
		byTodo[c.TodoID] = c
	}
	for _, td := range todos {
		if c, ok := byTodo[td.ID]; ok {
			td.Completions = map[string]Completion{userID: c}
		}
	}
	return nil
}

// invalidate drops the cached todo lists of everyone who can see td.
func (svc *Service) invalidate(ctx context.Context, td Todo) {
	if !td.IsGroup() {
		svc.cache.Invalidate([]string{td.UserID}, core.CacheTodos)
		return
	}
	ids, err := svc.groups.MemberIDs(ctx, td.GroupID)
	if err != nil {
		svc.cache.InvalidateResource(core.CacheTodos)
		return
	}
	svc.cache.Invalidate(append(ids, td.UserID), core.CacheTodos)
}
