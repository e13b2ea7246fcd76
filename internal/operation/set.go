package operation

import (
	"github.com/tessera-db/tessera/pkg/types"
)

// Set holds the ordered column operations of one prepared statement,
// split into regular and static groups. Built once per statement,
// immutable thereafter.
type Set struct {
	regular []Operation
	static  []Operation
}

// NewSet splits the operations by the kind of column they touch.
func NewSet(ops ...Operation) *Set {
	s := &Set{}
	for _, op := range ops {
		if op.Column.Kind == types.KindStatic {
			s.static = append(s.static, op)
		} else {
			s.regular = append(s.regular, op)
		}
	}
	return s
}

// Regular returns the operations on regular columns, in statement order.
func (s *Set) Regular() []Operation { return s.regular }

// Static returns the operations on static columns, in statement order.
func (s *Set) Static() []Operation { return s.static }

// All iterates regular then static operations.
func (s *Set) All() []Operation {
	all := make([]Operation, 0, len(s.regular)+len(s.static))
	all = append(all, s.regular...)
	all = append(all, s.static...)
	return all
}

// Len returns the total operation count.
func (s *Set) Len() int { return len(s.regular) + len(s.static) }

// RequiresRead reports whether any operation in the set needs the
// column's prior value.
func (s *Set) RequiresRead() bool {
	for _, op := range s.All() {
		if op.RequiresRead() {
			return true
		}
	}
	return false
}

// ReadColumns returns the names of the columns whose prior values must be
// fetched before the set can be applied.
func (s *Set) ReadColumns() []string {
	var cols []string
	seen := make(map[string]bool)
	for _, op := range s.All() {
		if op.RequiresRead() && !seen[op.Column.Name] {
			seen[op.Column.Name] = true
			cols = append(cols, op.Column.Name)
		}
	}
	return cols
}

// UpdatedColumns returns the distinct names of all columns the set writes.
func (s *Set) UpdatedColumns() []string {
	var cols []string
	seen := make(map[string]bool)
	for _, op := range s.All() {
		if !seen[op.Column.Name] {
			seen[op.Column.Name] = true
			cols = append(cols, op.Column.Name)
		}
	}
	return cols
}

// AppliesToRegularColumns reports whether any operation touches a
// regular column.
func (s *Set) AppliesToRegularColumns() bool { return len(s.regular) > 0 }

// AppliesToStaticColumns reports whether any operation touches a static
// column.
func (s *Set) AppliesToStaticColumns() bool { return len(s.static) > 0 }
