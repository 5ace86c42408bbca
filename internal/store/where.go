package store

import (
	"strconv"
	"strings"

	"github.com/justestif/go-record-collection/internal/models"
)

// Placeholder renders the n-th (1-based) bind parameter of a SQL dialect.
type Placeholder func(n int) string

var (
	// Dollar renders PostgreSQL placeholders: $1, $2, ...
	Dollar Placeholder = func(n int) string { return "$" + strconv.Itoa(n) }

	// Question renders SQLite placeholders.
	Question Placeholder = func(int) string { return "?" }
)

type predicate struct {
	column string
	op     string
	args   []any
}

// Where accumulates parameterized predicates joined with AND. Column names
// must be code constants; values are always bound, never written into the
// query text.
type Where struct {
	preds []predicate
}

// Eq adds column = value.
func (w *Where) Eq(column string, value any) *Where {
	w.preds = append(w.preds, predicate{column: column, op: "=", args: []any{value}})
	return w
}

// In adds column IN (values...). With no values the predicate matches
// nothing.
func (w *Where) In(column string, values ...any) *Where {
	w.preds = append(w.preds, predicate{column: column, op: "IN", args: values})
	return w
}

// Build renders the predicates and their arguments. offset is the number of
// bind parameters already used earlier in the statement.
func (w *Where) Build(ph Placeholder, offset int) (string, []any) {
	if len(w.preds) == 0 {
		return "TRUE", nil
	}

	var (
		sb   strings.Builder
		args []any
		n    = offset
	)

	for i, p := range w.preds {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		switch p.op {
		case "IN":
			if len(p.args) == 0 {
				sb.WriteString("1 = 0")
				continue
			}
			sb.WriteString(p.column)
			sb.WriteString(" IN (")
			for j := range p.args {
				if j > 0 {
					sb.WriteString(", ")
				}
				n++
				sb.WriteString(ph(n))
			}
			sb.WriteString(")")
		default:
			n++
			sb.WriteString(p.column)
			sb.WriteString(" = ")
			sb.WriteString(ph(n))
		}
		args = append(args, p.args...)
	}

	return sb.String(), args
}

// RecordPredicates scopes a record query to userID and applies the optional
// owned and wanted filters on top.
func RecordPredicates(userID int64, filter models.RecordFilter) *Where {
	w := new(Where).Eq("user_id", userID)
	if filter.Owned != nil {
		w.Eq("owned", *filter.Owned)
	}
	if filter.Wanted != nil {
		w.Eq("wanted", *filter.Wanted)
	}
	return w
}
