package mapping

import "github.com/syssam/csmap/metadata"

// freezer marks every mapping node frozen and indexes the fragments that
// map each storage column.
type freezer struct {
	*Walker
	fragment *MappingFragment
	columns  map[*metadata.EdmProperty][]*MappingFragment
}

func (f *freezer) VisitContainerMapping(cm *ContainerMapping) {
	cm.frozen = true
	f.Walker.VisitContainerMapping(cm)
}

func (f *freezer) VisitEntitySetMapping(m *EntitySetMapping) {
	m.frozen = true
	f.Walker.VisitEntitySetMapping(m)
}

func (f *freezer) VisitAssociationSetMapping(m *AssociationSetMapping) {
	m.frozen = true
	f.Walker.VisitAssociationSetMapping(m)
}

func (f *freezer) VisitEntityTypeMapping(m *EntityTypeMapping) {
	m.frozen = true
	f.Walker.VisitEntityTypeMapping(m)
}

func (f *freezer) VisitAssociationTypeMapping(m *AssociationTypeMapping) {
	m.frozen = true
	f.Walker.VisitAssociationTypeMapping(m)
}

func (f *freezer) VisitMappingFragment(m *MappingFragment) {
	m.frozen = true
	f.fragment = m
	f.Walker.VisitMappingFragment(m)
	f.fragment = nil
}

func (f *freezer) VisitScalarPropertyMapping(m *ScalarPropertyMapping) {
	m.frozen = true
	if f.fragment != nil && m.Column != nil {
		f.columns[m.Column] = appendDistinct(f.columns[m.Column], f.fragment)
	}
	f.Walker.VisitScalarPropertyMapping(m)
}

func (f *freezer) VisitComplexPropertyMapping(m *ComplexPropertyMapping) {
	m.frozen = true
	f.Walker.VisitComplexPropertyMapping(m)
}

func (f *freezer) VisitConditionPropertyMapping(m *ConditionPropertyMapping) {
	m.frozen = true
	if f.fragment != nil && m.Column != nil {
		f.columns[m.Column] = appendDistinct(f.columns[m.Column], f.fragment)
	}
	f.Walker.VisitConditionPropertyMapping(m)
}

func (f *freezer) VisitEndPropertyMapping(m *EndPropertyMapping) {
	m.frozen = true
	f.Walker.VisitEndPropertyMapping(m)
}

func (f *freezer) VisitComplexTypeMapping(m *ComplexTypeMapping) {
	m.frozen = true
	f.Walker.VisitComplexTypeMapping(m)
}

func (f *freezer) VisitFunctionImportMapping(m *FunctionImportMapping) {
	m.frozen = true
	f.Walker.VisitFunctionImportMapping(m)
}

func (f *freezer) VisitFunctionImportEntityTypeMapping(m *FunctionImportEntityTypeMapping) {
	m.frozen = true
	f.Walker.VisitFunctionImportEntityTypeMapping(m)
}

func (f *freezer) VisitFunctionImportComplexTypeMapping(m *FunctionImportComplexTypeMapping) {
	m.frozen = true
	f.Walker.VisitFunctionImportComplexTypeMapping(m)
}

// Metadata is shared and read-only; the freezer does not descend into it.
func (*freezer) VisitEntityContainer(*metadata.EntityContainer)  {}
func (*freezer) VisitEdmType(metadata.EdmType)                   {}
func (*freezer) VisitEdmMember(metadata.EdmMember)               {}
func (*freezer) VisitEntitySetBase(metadata.EntitySetBase)       {}
func (*freezer) VisitRelationshipType(metadata.RelationshipType) {}
func (*freezer) VisitEdmFunction(*metadata.EdmFunction)          {}
