package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studyhub/core/todo"
	"github.com/trezcool/studyhub/tests"
)

func createTodo(t *testing.T, token string, body string) todo.Todo {
	rec := serve(http.MethodPost, "/api/todos", token, []byte(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var td todo.Todo
	unmarshal(t, rec, &td)
	return td
}

func listTodos(t *testing.T, token, query string) []todo.Todo {
	rec := serve(http.MethodGet, "/api/todos"+query, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var todos []todo.Todo
	unmarshal(t, rec, &todos)
	return todos
}

func todoStatuses(todos []todo.Todo) map[string]string {
	statuses := make(map[string]string, len(todos))
	for _, td := range todos {
		statuses[td.Title] = td.Status
	}
	return statuses
}

func Test_todoApi_groupCompletions(t *testing.T) {
	resetDB()

	owner := testutil.CreateStudent(t, usrRepo, "owner01")
	alice := testutil.CreateStudent(t, usrRepo, "alice01")
	grp := testutil.CreateGroup(t, env.Groups, owner.ID, "Chemistry", alice.ID)
	ownerTkn, aliceTkn := getToken(t, owner), getToken(t, alice)

	td := createTodo(t, ownerTkn, `{"title": "Read chapter 3", "group_id": "`+grp.ID+`"}`)
	assert.Equal(t, todo.TypeGroup, td.Type)
	assert.Equal(t, todo.StatusPending, td.Status)

	stored := func() todo.Todo {
		row, err := env.Stores.Todos.GetTodo(context.Background(), td.ID)
		require.NoError(t, err)
		return row
	}

	t.Run("update records the caller's completion only", func(t *testing.T) {
		rec := serve(http.MethodPut, "/api/todos/"+td.ID, aliceTkn, []byte(`{"status": "completed"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated todo.Todo
		unmarshal(t, rec, &updated)
		assert.Equal(t, todo.StatusCompleted, updated.Status)

		assert.Equal(t, todo.StatusCompleted, todoStatuses(listTodos(t, aliceTkn, ""))["Read chapter 3"])
		assert.Equal(t, todo.StatusPending, todoStatuses(listTodos(t, ownerTkn, ""))["Read chapter 3"])
		assert.Equal(t, todo.StatusPending, stored().Status, "stored status untouched")

		completions := env.DB.TodoCompletions(td.ID)
		require.Len(t, completions, 1)
		assert.Equal(t, alice.ID, completions[0].UserID)
	})

	t.Run("toggle records the completion against the creator", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/todos/"+td.ID+"/toggle", aliceTkn, []byte(`{"status": "completed"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.Equal(t, todo.StatusCompleted, todoStatuses(listTodos(t, ownerTkn, ""))["Read chapter 3"])
		assert.Len(t, env.DB.TodoCompletions(td.ID), 2)
		assert.Equal(t, todo.StatusPending, stored().Status)
	})

	t.Run("reopening removes the completion", func(t *testing.T) {
		rec := serve(http.MethodPut, "/api/todos/"+td.ID, aliceTkn, []byte(`{"status": "pending"}`))
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, todo.StatusPending, todoStatuses(listTodos(t, aliceTkn, ""))["Read chapter 3"])
		assert.Equal(t, todo.StatusCompleted, todoStatuses(listTodos(t, ownerTkn, ""))["Read chapter 3"])
		completions := env.DB.TodoCompletions(td.ID)
		require.Len(t, completions, 1)
		assert.Equal(t, owner.ID, completions[0].UserID)
	})

	t.Run("non status fields are written to the row", func(t *testing.T) {
		rec := serve(http.MethodPut, "/api/todos/"+td.ID, aliceTkn, []byte(`{"title": "Read chapter 4", "priority": "high"}`))
		require.Equal(t, http.StatusOK, rec.Code)
		row := stored()
		assert.Equal(t, "Read chapter 4", row.Title)
		assert.Equal(t, todo.PriorityHigh, row.Priority)
		assert.Equal(t, todo.StatusPending, row.Status)
	})

	t.Run("deleting cascades to completions", func(t *testing.T) {
		rec := serve(http.MethodDelete, "/api/todos/"+td.ID, ownerTkn)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, 0, env.DB.Count("todo"))
		assert.Equal(t, 0, env.DB.Count("todo_completion"))
	})
}

func Test_todoApi_personalCompletions(t *testing.T) {
	resetDB()

	alice := testutil.CreateStudent(t, usrRepo, "alice01")
	aliceTkn := getToken(t, alice)
	td := createTodo(t, aliceTkn, `{"title": "Laundry", "priority": "low"}`)
	assert.Equal(t, todo.TypePersonal, td.Type)

	rec := serve(http.MethodPut, "/api/todos/"+td.ID, aliceTkn, []byte(`{"status": "completed"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = serve(http.MethodPost, "/api/todos/"+td.ID+"/toggle", aliceTkn, []byte(`{"status": "completed"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = serve(http.MethodPut, "/api/todos/"+td.ID, aliceTkn, []byte(`{"status": "completed"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, todo.StatusCompleted, todoStatuses(listTodos(t, aliceTkn, ""))["Laundry"])
	row, err := env.Stores.Todos.GetTodo(context.Background(), td.ID)
	require.NoError(t, err)
	assert.Equal(t, todo.StatusCompleted, row.Status)
	assert.Len(t, env.DB.TodoCompletions(td.ID), 1, "completing twice keeps one completion")

	rec = serve(http.MethodPost, "/api/todos/"+td.ID+"/toggle", aliceTkn, []byte(`{"status": "in_progress"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, todo.StatusInProgress, todoStatuses(listTodos(t, aliceTkn, ""))["Laundry"])
	assert.Len(t, env.DB.TodoCompletions(td.ID), 1, "history is kept")
}

func Test_todoApi_filters(t *testing.T) {
	resetDB()

	owner := testutil.CreateStudent(t, usrRepo, "owner01")
	alice := testutil.CreateStudent(t, usrRepo, "alice01")
	grp := testutil.CreateGroup(t, env.Groups, owner.ID, "Biology", alice.ID)
	other := testutil.CreateGroup(t, env.Groups, owner.ID, "History")
	ownerTkn, aliceTkn := getToken(t, owner), getToken(t, alice)

	createTodo(t, aliceTkn, `{"title": "Essay", "due_date": "2030-03-10T12:00:00Z", "priority": "high"}`)
	createTodo(t, aliceTkn, `{"title": "Groceries", "status": "completed"}`)
	createTodo(t, ownerTkn, `{"title": "Lab report", "group_id": "`+grp.ID+`", "due_date": "2030-03-12T09:00:00Z"}`)
	createTodo(t, ownerTkn, `{"title": "Timeline", "group_id": "`+other.ID+`"}`)
	createTodo(t, ownerTkn, `{"title": "Owner chores"}`)

	titles := func(todos []todo.Todo) []string {
		ts := make([]string, 0, len(todos))
		for _, td := range todos {
			ts = append(ts, td.Title)
		}
		return ts
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "all visible", query: "", want: []string{"Lab report", "Groceries", "Essay"}},
		{name: "status", query: "?status=completed", want: []string{"Groceries"}},
		{name: "type", query: "?type=group", want: []string{"Lab report"}},
		{name: "priority", query: "?priority=high", want: []string{"Essay"}},
		{name: "group", query: "?group_id=" + grp.ID, want: []string{"Lab report"}},
		{name: "due range", query: "?due_from=2030-03-01&due_to=2030-03-10", want: []string{"Essay"}},
		{name: "due from", query: "?due_from=2030-03-11", want: []string{"Lab report"}},
		{name: "due rfc3339", query: "?due_to=2030-03-10T11:00:00Z", want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ElementsMatch(t, tc.want, titles(listTodos(t, aliceTkn, tc.query)))
		})
	}

	t.Run("invalid date", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/todos?due_from=tomorrow", aliceTkn)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"due_from": "invalid date"}),
		}, rec)
	})
}

func Test_todoApi_permissions(t *testing.T) {
	resetDB()

	owner := testutil.CreateStudent(t, usrRepo, "owner01")
	alice := testutil.CreateStudent(t, usrRepo, "alice01")
	bob := testutil.CreateStudent(t, usrRepo, "bob0001")
	grp := testutil.CreateGroup(t, env.Groups, owner.ID, "Biology", alice.ID)
	ownerTkn, aliceTkn, bobTkn := getToken(t, owner), getToken(t, alice), getToken(t, bob)

	personal := createTodo(t, aliceTkn, `{"title": "Private"}`)
	shared := createTodo(t, aliceTkn, `{"title": "Shared", "group_id": "`+grp.ID+`"}`)
	byOwner := createTodo(t, ownerTkn, `{"title": "Owner's", "group_id": "`+grp.ID+`"}`)

	tests := []httpTest{
		{
			name: "create: validation", method: http.MethodPost, path: "/api/todos", token: aliceTkn,
			body: []byte(`{"priority": "urgent"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "create: non member group", method: http.MethodPost, path: "/api/todos", token: bobTkn,
			body:     []byte(`{"title": "Sneaky", "group_id": "` + grp.ID + `"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errNotMember),
		},
		{
			name: "retrieve: someone else's personal todo", method: http.MethodGet, path: "/api/todos/" + personal.ID, token: ownerTkn,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "todo not found"}),
		},
		{
			name: "retrieve: group todo by non member", method: http.MethodGet, path: "/api/todos/" + shared.ID, token: bobTkn,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errNotMember),
		},
		{name: "retrieve: group todo by member", method: http.MethodGet, path: "/api/todos/" + byOwner.ID, token: aliceTkn},
		{
			name: "toggle: missing status", method: http.MethodPost, path: "/api/todos/" + personal.ID + "/toggle", token: aliceTkn,
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "toggle: invalid status", method: http.MethodPost, path: "/api/todos/" + personal.ID + "/toggle", token: aliceTkn,
			body: []byte(`{"status": "done"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "update: move to a group the caller is not in", method: http.MethodPut, path: "/api/todos/" + personal.ID, token: aliceTkn,
			body: []byte(`{"group_id": "` + testutil.CreateGroup(t, env.Groups, owner.ID, "Secret").ID + `"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "delete: member deletes owner's group todo", method: http.MethodDelete, path: "/api/todos/" + byOwner.ID, token: aliceTkn,
			wantCode: http.StatusForbidden,
		},
		{
			name: "delete: owner deletes member's group todo", method: http.MethodDelete, path: "/api/todos/" + shared.ID, token: ownerTkn,
			wantCode: http.StatusNoContent,
		},
		{
			name: "delete: creator deletes personal todo", method: http.MethodDelete, path: "/api/todos/" + personal.ID, token: aliceTkn,
			wantCode: http.StatusNoContent,
		},
	}
	runTests(t, tests)

	assert.Equal(t, 1, env.DB.Count("todo"))
}
