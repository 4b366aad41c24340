package repository

import (
	"fmt"
	"strings"
)

// args tracks positional parameters for a statement being built, so that
// placeholders ($1, $2, ...) always match the order of the values passed to pgx.
type args struct {
	values []interface{}
}

// add appends v and returns its placeholder
func (a *args) add(v interface{}) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

func (a *args) list() []interface{} {
	return a.values
}

// where collects AND-combined conditions that share one args list
type where struct {
	args  *args
	conds []string
}

func newWhere(a *args) *where {
	return &where{args: a}
}

// eq adds "column = $n"
func (w *where) eq(column string, v interface{}) {
	w.conds = append(w.conds, fmt.Sprintf("%s = %s", column, w.args.add(v)))
}

// cond adds a condition built around a single placeholder. format must contain
// one %s per use of the placeholder; the value is bound once.
func (w *where) cond(format string, v interface{}) {
	ph := w.args.add(v)
	n := strings.Count(format, "%s")
	phs := make([]interface{}, n)
	for i := range phs {
		phs[i] = ph
	}
	w.conds = append(w.conds, fmt.Sprintf(format, phs...))
}

func (w *where) raw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// set collects "column = $n" assignments for an UPDATE in the order they are added
type set struct {
	args    *args
	assigns []string
}

func newSet(a *args) *set {
	return &set{args: a}
}

func (s *set) add(column string, v interface{}) {
	s.assigns = append(s.assigns, fmt.Sprintf("%s = %s", column, s.args.add(v)))
}

func (s *set) raw(assign string) {
	s.assigns = append(s.assigns, assign)
}

func (s *set) empty() bool {
	return len(s.assigns) == 0
}

func (s *set) String() string {
	return strings.Join(s.assigns, ", ")
}
