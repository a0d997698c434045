package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/studyhub/core/todo"
)

type todoRepository struct {
	db *DB
}

var _ todo.Repository = (*todoRepository)(nil) // interface compliance check

func NewTodoRepository(db *DB) todo.Repository {
	return &todoRepository{db: db}
}

func (repo *todoRepository) CreateTodo(ctx context.Context, td todo.Todo) (todo.Todo, error) {
	defer repo.db.lock(ctx)()
	td.Completions = nil
	repo.db.t.todos[td.ID] = td
	return td, nil
}

func (repo *todoRepository) GetTodo(ctx context.Context, id string) (todo.Todo, error) {
	defer repo.db.lock(ctx)()

	td, ok := repo.db.t.todos[id]
	if !ok {
		return todo.Todo{}, todo.ErrNotFound
	}
	return td, nil
}

func (repo *todoRepository) QueryTodos(ctx context.Context, userID string, groupIDs []string) ([]todo.Todo, error) {
	defer repo.db.lock(ctx)()

	in := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		in[id] = true
	}
	todos := make([]todo.Todo, 0)
	for _, td := range repo.db.t.todos {
		if (td.GroupID == "" && td.UserID == userID) || in[td.GroupID] {
			todos = append(todos, td)
		}
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].CreatedAt.After(todos[j].CreatedAt) })
	return todos, nil
}

func (repo *todoRepository) UpdateTodo(ctx context.Context, td todo.Todo) (todo.Todo, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.todos[td.ID]; !ok {
		return todo.Todo{}, todo.ErrNotFound
	}
	td.Completions = nil
	repo.db.t.todos[td.ID] = td
	return td, nil
}

func (repo *todoRepository) DeleteTodo(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.todos[id]; !ok {
		return todo.ErrNotFound
	}
	repo.db.t.deleteTodo(id)
	return nil
}

func (repo *todoRepository) UpsertCompletion(ctx context.Context, c todo.Completion) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.todos[c.TodoID]; !ok {
		return todo.ErrNotFound
	}
	repo.db.t.completions[completionKey{c.TodoID, c.UserID}] = c
	return nil
}

func (repo *todoRepository) DeleteCompletion(ctx context.Context, todoID, userID string) error {
	defer repo.db.lock(ctx)()
	delete(repo.db.t.completions, completionKey{todoID, userID})
	return nil
}

func (repo *todoRepository) DeleteCompletions(ctx context.Context, todoID string) error {
	defer repo.db.lock(ctx)()
	for k := range repo.db.t.completions {
		if k.todoID == todoID {
			delete(repo.db.t.completions, k)
		}
	}
	return nil
}

func (repo *todoRepository) QueryCompletions(ctx context.Context, userID string, todoIDs ...string) ([]todo.Completion, error) {
	defer repo.db.lock(ctx)()

	completions := make([]todo.Completion, 0, len(todoIDs))
	for _, id := range todoIDs {
		if c, ok := repo.db.t.completions[completionKey{id, userID}]; ok {
			completions = append(completions, c)
		}
	}
	return completions, nil
}

// TodoCompletions returns every stored completion of a todo.
func (db *DB) TodoCompletions(todoID string) []todo.Completion {
	db.mu.Lock()
	defer db.mu.Unlock()

	completions := make([]todo.Completion, 0)
	for k, c := range db.t.completions {
		if k.todoID == todoID {
			completions = append(completions, c)
		}
	}
	return completions
}

func (repo *todoRepository) PruneCompletions(ctx context.Context) (int64, error) {
	defer repo.db.lock(ctx)()

	var n int64
	for k := range repo.db.t.completions {
		td, ok := repo.db.t.todos[k.todoID]
		if !ok {
			delete(repo.db.t.completions, k)
			n++
			continue
		}
		if td.GroupID == "" {
			continue
		}
		if _, ok = repo.db.t.members[memberKey{td.GroupID, k.userID}]; !ok {
			delete(repo.db.t.completions, k)
			n++
		}
	}
	return n, nil
}

// InsertOrphanCompletion stores a completion without checking its todo exists.
// It reproduces rows left behind by older data, for reconciliation tests.
func (db *DB) InsertOrphanCompletion(c todo.Completion) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.t.completions[completionKey{c.TodoID, c.UserID}] = c
}
