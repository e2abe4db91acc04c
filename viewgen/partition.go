package viewgen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/csmap/metadata"
)

// ForeignConstraint is a referential constraint between two store tables.
type ForeignConstraint struct {
	// Name is the storage association set declaring the constraint.
	Name          string
	ParentTable   *metadata.EntitySet
	ChildTable    *metadata.EntitySet
	ParentColumns []string
	ChildColumns  []string
}

// String returns "child(cols) -> parent(cols)".
func (fk *ForeignConstraint) String() string {
	return fmt.Sprintf("%s(%s) -> %s(%s)",
		extentName(fk.ChildTable), strings.Join(fk.ChildColumns, ", "),
		extentName(fk.ParentTable), strings.Join(fk.ParentColumns, ", "))
}

// ForeignConstraints returns every referential constraint of every
// association set of the storage container, in declaration order.
// Constraints whose roles are not bound to entity sets are skipped.
func ForeignConstraints(storage *metadata.EntityContainer) []*ForeignConstraint {
	if storage == nil {
		return nil
	}
	var fks []*ForeignConstraint
	for _, set := range storage.AssociationSets() {
		if set.AssociationType == nil {
			continue
		}
		for _, c := range set.AssociationType.Constraints {
			parent, child := set.End(c.FromRole), set.End(c.ToRole)
			if parent == nil || child == nil || parent.EntitySet == nil || child.EntitySet == nil {
				continue
			}
			fks = append(fks, &ForeignConstraint{
				Name:          set.Name,
				ParentTable:   parent.EntitySet,
				ChildTable:    child.EntitySet,
				ParentColumns: memberNames(c.FromProperties),
				ChildColumns:  memberNames(c.ToProperties),
			})
		}
	}
	return fks
}

func memberNames(props []*metadata.EdmProperty) []string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name
	}
	return names
}

// CellGroup is a set of cells whose views must be generated together.
type CellGroup struct {
	// Cells are ordered by cell number.
	Cells []*Cell
	// Extents are the conceptual and store extents of the cells in first
	// appearance order.
	Extents []metadata.EntitySetBase
}

// Partition splits cells into groups of cells connected through a shared
// extent or a foreign constraint between their tables. Each cell connects
// its conceptual extent with its table; each foreign constraint connects its
// child table with its parent table. Groups are ordered by their smallest
// cell number.
func Partition(cells []*Cell, fks []*ForeignConstraint) []*CellGroup {
	cells = slices.Clone(cells)
	slices.SortStableFunc(cells, func(a, b *Cell) int { return a.Number - b.Number })

	var uf unionFind
	for _, c := range cells {
		uf.union(c.CQuery.Extent, c.SQuery.Extent)
	}
	for _, fk := range fks {
		uf.union(fk.ChildTable, fk.ParentTable)
	}

	var (
		groups []*CellGroup
		byRoot = make(map[int]*CellGroup)
	)
	for _, c := range cells {
		root := -c.Number
		switch {
		case !isNilExtent(c.SQuery.Extent):
			root = uf.find(uf.id(c.SQuery.Extent))
		case !isNilExtent(c.CQuery.Extent):
			root = uf.find(uf.id(c.CQuery.Extent))
		}
		g, ok := byRoot[root]
		if !ok {
			g = &CellGroup{}
			byRoot[root] = g
			groups = append(groups, g)
		}
		g.Cells = append(g.Cells, c)
		for _, e := range []metadata.EntitySetBase{c.CQuery.Extent, c.SQuery.Extent} {
			if !isNilExtent(e) && !slices.Contains(g.Extents, e) {
				g.Extents = append(g.Extents, e)
			}
		}
	}
	return groups
}

// unionFind is a disjoint set over extents with path halving and union by
// size.
type unionFind struct {
	ids    map[metadata.EntitySetBase]int
	parent []int
	size   []int
}

func (u *unionFind) id(e metadata.EntitySetBase) int {
	if u.ids == nil {
		u.ids = make(map[metadata.EntitySetBase]int)
	}
	if i, ok := u.ids[e]; ok {
		return i
	}
	i := len(u.parent)
	u.ids[e] = i
	u.parent = append(u.parent, i)
	u.size = append(u.size, 1)
	return i
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union joins a and b. A nil side only registers the other.
func (u *unionFind) union(a, b metadata.EntitySetBase) {
	switch {
	case isNilExtent(a) && isNilExtent(b):
		return
	case isNilExtent(a):
		u.id(b)
		return
	case isNilExtent(b):
		u.id(a)
		return
	}
	ra, rb := u.find(u.id(a)), u.find(u.id(b))
	if ra == rb {
		return
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
}

// isNilExtent reports whether e is nil or a typed nil pointer.
func isNilExtent(e metadata.EntitySetBase) bool {
	switch e := e.(type) {
	case nil:
		return true
	case *metadata.EntitySet:
		return e == nil
	case *metadata.AssociationSet:
		return e == nil
	}
	return false
}
