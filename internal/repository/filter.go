package repository

import (
	"fmt"
	"strings"
)

// Page describes an offset page. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// whereClause accumulates SQL conditions with positional arguments.
type whereClause struct {
	conds []string
	args  []any
}

// add appends a condition. Each "?" in cond is replaced by the next
// positional parameter, bound in order to args.
func (w *whereClause) add(cond string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

// next returns the placeholder for an argument appended after the conditions.
func (w *whereClause) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// likePattern builds a case-insensitive contains pattern for ILIKE,
// escaping the wildcard characters in term.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
