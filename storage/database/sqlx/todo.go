package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studyhub/core/todo"
)

const todoColumns = "id, user_id, title, description, due_date, status, type, priority, group_id, created_at, updated_at"

type todoRow struct {
	ID          string      `db:"id"`
	UserID      string      `db:"user_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	DueDate     null.Time   `db:"due_date"`
	Status      string      `db:"status"`
	Type        string      `db:"type"`
	Priority    null.String `db:"priority"`
	GroupID     null.String `db:"group_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r todoRow) toTodo() todo.Todo {
	td := todo.Todo{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Type:        r.Type,
		Priority:    r.Priority.String,
		GroupID:     r.GroupID.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.DueDate.Valid {
		due := r.DueDate.Time.UTC()
		td.DueDate = &due
	}
	return td
}

func nullTimePtr(t *time.Time) null.Time {
	return null.TimeFromPtr(t)
}

type completionRow struct {
	TodoID      string    `db:"todo_id"`
	UserID      string    `db:"user_id"`
	Completed   bool      `db:"completed"`
	CompletedAt time.Time `db:"completed_at"`
}

type todoRepository struct {
	db *sqlx.DB
}

var _ todo.Repository = (*todoRepository)(nil) // interface compliance check

func NewTodoRepository(db *sqlx.DB) todo.Repository {
	return &todoRepository{db: db}
}

func (repo *todoRepository) CreateTodo(ctx context.Context, td todo.Todo) (todo.Todo, error) {
	qb := psql.Insert("todo").
		Columns("id", "user_id", "title", "description", "due_date", "status", "type", "priority", "group_id",
			"created_at", "updated_at").
		Values(td.ID, td.UserID, td.Title, td.Description, nullTimePtr(td.DueDate), td.Status, td.Type,
			nullString(td.Priority), nullString(td.GroupID), td.CreatedAt, td.UpdatedAt)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		return todo.Todo{}, err
	}
	td.Completions = nil
	return td, nil
}

func (repo *todoRepository) GetTodo(ctx context.Context, id string) (todo.Todo, error) {
	var row todoRow
	if err := get(ctx, repo.db, &row, psql.Select(todoColumns).From("todo").Where(sq.Eq{"id": id})); err != nil {
		return todo.Todo{}, notFound(err, todo.ErrNotFound)
	}
	return row.toTodo(), nil
}

func (repo *todoRepository) QueryTodos(ctx context.Context, userID string, groupIDs []string) ([]todo.Todo, error) {
	where := sq.Or{sq.And{sq.Eq{"user_id": userID}, sq.Eq{"group_id": nil}}}
	if len(groupIDs) > 0 {
		where = append(where, sq.Eq{"group_id": groupIDs})
	}
	var rows []todoRow
	qb := psql.Select(todoColumns).From("todo").Where(where).OrderBy("created_at DESC")
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	todos := make([]todo.Todo, 0, len(rows))
	for _, r := range rows {
		todos = append(todos, r.toTodo())
	}
	return todos, nil
}

func (repo *todoRepository) UpdateTodo(ctx context.Context, td todo.Todo) (todo.Todo, error) {
	qb := psql.Update("todo").
		SetMap(map[string]interface{}{
			"title":       td.Title,
			"description": td.Description,
			"due_date":    nullTimePtr(td.DueDate),
			"status":      td.Status,
			"type":        td.Type,
			"priority":    nullString(td.Priority),
			"group_id":    nullString(td.GroupID),
			"updated_at":  td.UpdatedAt,
		}).
		Where(sq.Eq{"id": td.ID})
	n, err := exec(ctx, repo.db, qb)
	if err != nil {
		return todo.Todo{}, err
	}
	if n == 0 {
		return todo.Todo{}, todo.ErrNotFound
	}
	td.Completions = nil
	return td, nil
}

func (repo *todoRepository) DeleteTodo(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("todo").Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return todo.ErrNotFound
	}
	return nil
}

func (repo *todoRepository) UpsertCompletion(ctx context.Context, c todo.Completion) error {
	qb := psql.Insert("todo_completion").
		Columns("todo_id", "user_id", "completed", "completed_at").
		Values(c.TodoID, c.UserID, c.Completed, c.CompletedAt).
		Suffix("ON CONFLICT (todo_id, user_id) DO UPDATE SET completed = EXCLUDED.completed, completed_at = EXCLUDED.completed_at")
	_, err := exec(ctx, repo.db, qb)
	return err
}

func (repo *todoRepository) DeleteCompletion(ctx context.Context, todoID, userID string) error {
	_, err := exec(ctx, repo.db, psql.Delete("todo_completion").Where(sq.Eq{"todo_id": todoID, "user_id": userID}))
	return err
}

func (repo *todoRepository) DeleteCompletions(ctx context.Context, todoID string) error {
	_, err := exec(ctx, repo.db, psql.Delete("todo_completion").Where(sq.Eq{"todo_id": todoID}))
	return err
}

func (repo *todoRepository) QueryCompletions(ctx context.Context, userID string, todoIDs ...string) ([]todo.Completion, error) {
	if len(todoIDs) == 0 {
		return []todo.Completion{}, nil
	}
	var rows []completionRow
	qb := psql.Select("todo_id", "user_id", "completed", "completed_at").
		From("todo_completion").
		Where(sq.Eq{"user_id": userID, "todo_id": todoIDs})
	if err := selectRows(ctx, repo.db, &rows, qb); err != nil {
		return nil, err
	}
	completions := make([]todo.Completion, 0, len(rows))
	for _, r := range rows {
		completions = append(completions, todo.Completion{
			TodoID:      r.TodoID,
			UserID:      r.UserID,
			Completed:   r.Completed,
			CompletedAt: r.CompletedAt.UTC(),
		})
	}
	return completions, nil
}

func (repo *todoRepository) PruneCompletions(ctx context.Context) (int64, error) {
	qb := psql.Delete("todo_completion c").Where(sq.Or{
		sq.Expr("NOT EXISTS (SELECT 1 FROM todo t WHERE t.id = c.todo_id)"),
		sq.Expr(`EXISTS (
			SELECT 1 FROM todo t
			WHERE t.id = c.todo_id AND t.group_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM group_member m WHERE m.group_id = t.group_id AND m.user_id = c.user_id)
		)`),
	})
	return exec(ctx, repo.db, qb)
}
