package mapping

import (
	"github.com/syssam/csmap"
	"github.com/syssam/csmap/metadata"
)

// ColumnRenameMapping resolves the result column of one member for any
// structural type of a polymorphic function import result.
type ColumnRenameMapping struct {
	// DefaultName is returned when no rename applies.
	DefaultName string

	exact    []renameColumn
	isOf     []renameColumn
	resolved *csmap.Memo[metadata.EdmType, renameColumn]
}

type renameColumn struct {
	column   string
	typ      metadata.EdmType
	isTypeOf bool
	location *SourceLocation
}

// NewColumnRenameMapping returns a resolver with the given default name.
func NewColumnRenameMapping(defaultName string) *ColumnRenameMapping {
	m := &ColumnRenameMapping{DefaultName: defaultName}
	m.resolved = csmap.NewMemo(func(t metadata.EdmType) (renameColumn, error) {
		return m.resolve(t), nil
	})
	return m
}

// AddRename registers a rename for t, or for t and its subtypes when
// isTypeOf is set. Renames must be registered before the first lookup.
func (m *ColumnRenameMapping) AddRename(column string, t metadata.EdmType, isTypeOf bool, location *SourceLocation) {
	r := renameColumn{column: column, typ: t, isTypeOf: isTypeOf, location: location}
	if isTypeOf {
		m.isOf = append(m.isOf, r)
	} else {
		m.exact = append(m.exact, r)
	}
}

// GetRename returns the column name for t.
func (m *ColumnRenameMapping) GetRename(t metadata.EdmType) string {
	name, _ := m.GetRenameWithLocation(t)
	return name
}

// GetRenameWithLocation returns the column name for t and the location of
// the rename that produced it; the location is nil for the default name.
func (m *ColumnRenameMapping) GetRenameWithLocation(t metadata.EdmType) (string, *SourceLocation) {
	r, _ := m.resolved.Get(t)
	return r.column, r.location
}

// resolve applies, in order: the first exact rename of t; the last is-of
// rename of exactly t; the is-of rename of the most derived ancestor of t;
// the default name.
func (m *ColumnRenameMapping) resolve(t metadata.EdmType) renameColumn {
	for _, r := range m.exact {
		if r.typ == t {
			return r
		}
	}
	for i := len(m.isOf) - 1; i >= 0; i-- {
		if m.isOf[i].typ == t {
			return m.isOf[i]
		}
	}
	var lowest *renameColumn
	for i := range m.isOf {
		r := &m.isOf[i]
		if !metadata.IsAssignableFrom(r.typ, t) {
			continue
		}
		if lowest == nil || metadata.IsAssignableFrom(lowest.typ, r.typ) {
			lowest = r
		}
	}
	if lowest == nil {
		return renameColumn{column: m.DefaultName, typ: t}
	}
	return *lowest
}
