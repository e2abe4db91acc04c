package viewgen

import (
	"fmt"
	"strings"

	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
)

// Cell is one mapping fragment seen as a pair of queries over a conceptual
// extent and a store table. Slot i of CQuery maps to slot i of SQuery.
type Cell struct {
	// Number is the position of the cell in document order, from 1.
	Number int
	CQuery CellQuery
	SQuery CellQuery
	// Types and IsOfTypes are the types covered by the fragment's type
	// mapping. Association cells cover the association type.
	Types     []metadata.EdmType
	IsOfTypes []metadata.EdmType
	Fragment  *mapping.MappingFragment
}

// CellQuery is one side of a cell: the projected members of an extent and
// the conditions restricting it.
type CellQuery struct {
	Extent     metadata.EntitySetBase
	Slots      []string
	Conditions []*mapping.ConditionPropertyMapping
}

// String returns a short description of the cell.
func (c *Cell) String() string {
	names := make([]string, 0, len(c.Types)+len(c.IsOfTypes))
	for _, t := range c.Types {
		names = append(names, t.FullName())
	}
	for _, t := range c.IsOfTypes {
		names = append(names, "IsTypeOf("+t.FullName()+")")
	}
	return fmt.Sprintf("Cell#%d %s[%s] <-> %s", c.Number,
		extentName(c.CQuery.Extent), strings.Join(names, ", "), extentName(c.SQuery.Extent))
}

func extentName(s metadata.EntitySetBase) string {
	if s == nil {
		return "<nil>"
	}
	if es, ok := s.(*metadata.EntitySet); ok && es.Table != "" {
		return es.TableName()
	}
	return s.SetName()
}

// ExtractCells returns one cell per mapping fragment of every set mapping
// without a query view, numbered in document order. In update mode it
// returns no cells when update views are disabled by cfg or by the
// container mapping.
func ExtractCells(cm *mapping.ContainerMapping, cfg Config) []*Cell {
	if cm == nil {
		return nil
	}
	if cfg.Mode == ModeUpdateViews && (!cfg.GenerateUpdateViews || !cm.GenerateUpdateViews) {
		return nil
	}
	e := &extractor{}
	e.Walker = mapping.NewWalker(e)
	e.VisitContainerMapping(cm)
	return e.cells
}

// extractor walks set mappings down to fragments. Metadata is not visited.
type extractor struct {
	*mapping.Walker
	set       metadata.EntitySetBase
	types     []metadata.EdmType
	isOfTypes []metadata.EdmType
	cells     []*Cell
}

func (e *extractor) VisitEntitySetMapping(m *mapping.EntitySetMapping) {
	if m == nil || m.HasQueryView() {
		return
	}
	e.set = m.EntitySet
	e.Walker.VisitEntitySetMapping(m)
}

func (e *extractor) VisitAssociationSetMapping(m *mapping.AssociationSetMapping) {
	if m == nil || m.HasQueryView() {
		return
	}
	e.set = m.AssociationSet
	e.Walker.VisitAssociationSetMapping(m)
}

func (e *extractor) VisitEntityTypeMapping(m *mapping.EntityTypeMapping) {
	if m == nil {
		return
	}
	e.types, e.isOfTypes = nil, nil
	for _, t := range m.Types() {
		e.types = append(e.types, t)
	}
	for _, t := range m.IsOfTypes() {
		e.isOfTypes = append(e.isOfTypes, t)
	}
	e.Walker.VisitEntityTypeMapping(m)
}

func (e *extractor) VisitAssociationTypeMapping(m *mapping.AssociationTypeMapping) {
	if m == nil {
		return
	}
	e.types, e.isOfTypes = nil, nil
	if m.AssociationType != nil {
		e.types = []metadata.EdmType{m.AssociationType}
	}
	e.Walker.VisitAssociationTypeMapping(m)
}

// VisitMappingFragment records a cell and does not descend. A fragment
// belongs to exactly one type mapping, which the walker visits once.
func (e *extractor) VisitMappingFragment(f *mapping.MappingFragment) {
	if f == nil {
		return
	}
	cell := &Cell{
		Number:    len(e.cells) + 1,
		CQuery:    CellQuery{Extent: e.set},
		SQuery:    CellQuery{Extent: f.Table},
		Types:     e.types,
		IsOfTypes: e.isOfTypes,
		Fragment:  f,
	}
	for _, p := range f.Properties() {
		cell.addSlots("", p)
	}
	cell.addConditions(f.Conditions())
	e.cells = append(e.cells, cell)
}

func (*extractor) VisitEntityContainer(*metadata.EntityContainer)            {}
func (*extractor) VisitEntitySetBase(metadata.EntitySetBase)                 {}
func (*extractor) VisitEdmType(metadata.EdmType)                             {}
func (*extractor) VisitRelationshipType(metadata.RelationshipType)           {}
func (*extractor) VisitFunctionImportMapping(*mapping.FunctionImportMapping) {}

func (c *Cell) addSlots(prefix string, p mapping.PropertyMapping) {
	switch p := p.(type) {
	case *mapping.ScalarPropertyMapping:
		var member, column string
		if p.Property != nil {
			member = p.Property.Name
		}
		if p.Column != nil {
			column = p.Column.Name
		}
		c.CQuery.Slots = append(c.CQuery.Slots, prefix+member)
		c.SQuery.Slots = append(c.SQuery.Slots, column)
	case *mapping.ComplexPropertyMapping:
		path := prefix
		if p.Property != nil {
			path += p.Property.Name + "."
		}
		for _, tm := range p.TypeMappings() {
			for _, pp := range tm.Properties() {
				c.addSlots(path, pp)
			}
			c.addConditions(tm.Conditions())
		}
	case *mapping.EndPropertyMapping:
		path := prefix
		if p.End != nil {
			path += p.End.Name + "."
		}
		for _, pp := range p.Properties() {
			c.addSlots(path, pp)
		}
	}
}

func (c *Cell) addConditions(conds []*mapping.ConditionPropertyMapping) {
	for _, cond := range conds {
		if cond.Property != nil {
			c.CQuery.Conditions = append(c.CQuery.Conditions, cond)
		} else {
			c.SQuery.Conditions = append(c.SQuery.Conditions, cond)
		}
	}
}
