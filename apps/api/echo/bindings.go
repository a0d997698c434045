package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/todo"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindTodoFilter reads a todo.Filter from the query string.
// due_from and due_to accept RFC 3339 timestamps or YYYY-MM-DD dates (due_to is then inclusive).
func bindTodoFilter(ctx echo.Context) (todo.Filter, error) {
	var filter todo.Filter
	if err := ctx.Bind(&filter); err != nil {
		return todo.Filter{}, err
	}

	var flds []core.FieldError
	if val := ctx.QueryParam("due_from"); val != "" {
		if t, ok := parseQueryTime(val, false); ok {
			filter.DueFrom = &t
		} else {
			flds = append(flds, core.FieldError{Field: "due_from", Error: "invalid date"})
		}
	}
	if val := ctx.QueryParam("due_to"); val != "" {
		if t, ok := parseQueryTime(val, true); ok {
			filter.DueTo = &t
		} else {
			flds = append(flds, core.FieldError{Field: "due_to", Error: "invalid date"})
		}
	}
	if flds != nil {
		return todo.Filter{}, core.NewValidationError(nil, flds...)
	}
	return filter, nil
}

func parseQueryTime(val string, endOfDay bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t, true
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}
