package dummydb

import (
	"context"
	"sync"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/group"
	"github.com/trezcool/studyhub/core/material"
	"github.com/trezcool/studyhub/core/quiz"
	"github.com/trezcool/studyhub/core/session"
	"github.com/trezcool/studyhub/core/todo"
	"github.com/trezcool/studyhub/core/user"
)

type (
	// DB is an in-memory database. Every operation, and every transaction as a whole, runs under one lock;
	// a failed transaction restores the snapshot taken when it began.
	DB struct {
		mu sync.Mutex
		t  *tables
	}

	memberKey struct {
		groupID string
		userID  string
	}

	completionKey struct {
		todoID string
		userID string
	}

	tables struct {
		users       map[string]user.User
		groups      map[string]group.Group
		members     map[memberKey]group.Member
		requests    map[string]session.Request
		sessions    map[string]session.Session
		todos       map[string]todo.Todo
		completions map[completionKey]todo.Completion
		materials   map[string]material.Material
		quizzes     map[string]quiz.Quiz
		questions   map[string]quiz.Question
		submissions map[string]quiz.Submission
	}

	txKey struct{}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	return &DB{t: newTables()}, nil
}

func newTables() *tables {
	return &tables{
		users:       make(map[string]user.User),
		groups:      make(map[string]group.Group),
		members:     make(map[memberKey]group.Member),
		requests:    make(map[string]session.Request),
		sessions:    make(map[string]session.Session),
		todos:       make(map[string]todo.Todo),
		completions: make(map[completionKey]todo.Completion),
		materials:   make(map[string]material.Material),
		quizzes:     make(map[string]quiz.Quiz),
		questions:   make(map[string]quiz.Question),
		submissions: make(map[string]quiz.Submission),
	}
}

// clone copies every table. Rows are values and repositories never mutate a stored slice in place.
func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.groups {
		c.groups[k] = v
	}
	for k, v := range t.members {
		c.members[k] = v
	}
	for k, v := range t.requests {
		c.requests[k] = v
	}
	for k, v := range t.sessions {
		c.sessions[k] = v
	}
	for k, v := range t.todos {
		c.todos[k] = v
	}
	for k, v := range t.completions {
		c.completions[k] = v
	}
	for k, v := range t.materials {
		c.materials[k] = v
	}
	for k, v := range t.quizzes {
		c.quizzes[k] = v
	}
	for k, v := range t.questions {
		c.questions[k] = v
	}
	for k, v := range t.submissions {
		c.submissions[k] = v
	}
	return c
}

// Flush empties every table.
func (db *DB) Flush() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.t = newTables()
}

func (db *DB) inTx(ctx context.Context) bool {
	d, ok := ctx.Value(txKey{}).(*DB)
	return ok && d == db
}

// lock acquires the database for one operation, unless ctx is inside one of its transactions.
func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	ctx, hooks, owner := core.WithTxHooks(ctx)
	committed := false
	func() {
		db.mu.Lock()
		defer db.mu.Unlock()

		snapshot := db.t.clone()
		defer func() {
			if !committed {
				db.t = snapshot
			}
		}()
		if err = fn(context.WithValue(ctx, txKey{}, db)); err == nil {
			committed = true
		}
	}()

	if committed && owner {
		hooks.Run()
	}
	return err
}

// cascades

func (t *tables) deleteGroup(id string) {
	delete(t.groups, id)
	for k := range t.members {
		if k.groupID == id {
			delete(t.members, k)
		}
	}
	for k, r := range t.requests {
		if r.GroupID == id {
			delete(t.requests, k)
		}
	}
	for k, s := range t.sessions {
		if s.GroupID == id {
			delete(t.sessions, k)
		}
	}
	for k, td := range t.todos {
		if td.GroupID == id {
			t.deleteTodo(k)
		}
	}
	for k, m := range t.materials {
		if m.GroupID == id {
			t.deleteMaterial(k)
		}
	}
	for k, q := range t.quizzes {
		if q.GroupID == id {
			t.deleteQuiz(k)
		}
	}
}

func (t *tables) deleteUser(id string) {
	delete(t.users, id)
	for k, g := range t.groups {
		if g.OwnerID == id {
			t.deleteGroup(k)
		}
	}
	for k := range t.members {
		if k.userID == id {
			delete(t.members, k)
		}
	}
	for k, r := range t.requests {
		if r.RequestedBy == id {
			t.deleteRequest(k)
		}
	}
	for k, s := range t.sessions {
		if s.CreatedBy == id {
			t.deleteSession(k)
		}
	}
	for k, td := range t.todos {
		if td.UserID == id {
			t.deleteTodo(k)
		}
	}
	for k := range t.completions {
		if k.userID == id {
			delete(t.completions, k)
		}
	}
	for k, m := range t.materials {
		if m.UserID == id {
			t.deleteMaterial(k)
		}
	}
	for k, q := range t.quizzes {
		if q.CreatedBy == id {
			t.deleteQuiz(k)
		}
	}
	for k, s := range t.submissions {
		if s.UserID == id {
			delete(t.submissions, k)
		}
	}
}

func (t *tables) deleteRequest(id string) {
	delete(t.requests, id)
	for k, s := range t.sessions {
		if s.RequestID == id {
			s.RequestID = ""
			t.sessions[k] = s
		}
	}
}

func (t *tables) deleteSession(id string) {
	delete(t.sessions, id)
	for k, r := range t.requests {
		if r.SessionID == id {
			r.SessionID = ""
			t.requests[k] = r
		}
	}
}

func (t *tables) deleteTodo(id string) {
	delete(t.todos, id)
	for k := range t.completions {
		if k.todoID == id {
			delete(t.completions, k)
		}
	}
	for k, q := range t.quizzes {
		if q.TodoID == id {
			q.TodoID = ""
			t.quizzes[k] = q
		}
	}
}

func (t *tables) deleteMaterial(id string) {
	delete(t.materials, id)
	for k, q := range t.quizzes {
		if q.MaterialID == id {
			q.MaterialID = ""
			t.quizzes[k] = q
		}
	}
}

func (t *tables) deleteQuiz(id string) {
	delete(t.quizzes, id)
	for k, q := range t.questions {
		if q.QuizID == id {
			delete(t.questions, k)
		}
	}
	for k, s := range t.submissions {
		if s.QuizID == id {
			delete(t.submissions, k)
		}
	}
}

func (t *tables) memberCount(groupID string) int {
	n := 0
	for k := range t.members {
		if k.groupID == groupID {
			n++
		}
	}
	return n
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	c := make([]string, len(ss))
	copy(c, ss)
	return c
}

// Count returns the number of rows in a table, named as in the SQL schema.
func (db *DB) Count(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch table {
	case "user":
		return len(db.t.users)
	case "study_group":
		return len(db.t.groups)
	case "group_member":
		return len(db.t.members)
	case "session_request":
		return len(db.t.requests)
	case "study_session":
		return len(db.t.sessions)
	case "todo":
		return len(db.t.todos)
	case "todo_completion":
		return len(db.t.completions)
	case "material":
		return len(db.t.materials)
	case "quiz":
		return len(db.t.quizzes)
	case "quiz_question":
		return len(db.t.questions)
	case "quiz_submission":
		return len(db.t.submissions)
	}
	return 0
}
