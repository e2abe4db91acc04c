package mapping

import (
	"github.com/syssam/csmap"
	"github.com/syssam/csmap/metadata"
)

// Visitor has one Visit method per mapping and metadata node kind.
//
// The switching methods (VisitSetMapping, VisitTypeMapping,
// VisitPropertyMapping, VisitFunctionImportStructuralTypeMapping,
// VisitEdmType, VisitEdmMember, VisitEntitySetBase, VisitRelationshipType)
// accept an abstract node and route it to the method of its concrete kind.
type Visitor interface {
	VisitContainerMapping(*ContainerMapping)
	VisitSetMapping(SetMapping)
	VisitEntitySetMapping(*EntitySetMapping)
	VisitAssociationSetMapping(*AssociationSetMapping)
	VisitTypeMapping(TypeMapping)
	VisitEntityTypeMapping(*EntityTypeMapping)
	VisitAssociationTypeMapping(*AssociationTypeMapping)
	VisitMappingFragment(*MappingFragment)
	VisitPropertyMapping(PropertyMapping)
	VisitScalarPropertyMapping(*ScalarPropertyMapping)
	VisitComplexPropertyMapping(*ComplexPropertyMapping)
	VisitConditionPropertyMapping(*ConditionPropertyMapping)
	VisitEndPropertyMapping(*EndPropertyMapping)
	VisitComplexTypeMapping(*ComplexTypeMapping)
	VisitFunctionImportMapping(*FunctionImportMapping)
	VisitFunctionImportStructuralTypeMapping(FunctionImportStructuralTypeMapping)
	VisitFunctionImportEntityTypeMapping(*FunctionImportEntityTypeMapping)
	VisitFunctionImportComplexTypeMapping(*FunctionImportComplexTypeMapping)

	VisitEntityContainer(*metadata.EntityContainer)
	VisitEntitySetBase(metadata.EntitySetBase)
	VisitEntitySet(*metadata.EntitySet)
	VisitAssociationSet(*metadata.AssociationSet)
	VisitAssociationSetEnd(*metadata.AssociationSetEnd)
	VisitEdmType(metadata.EdmType)
	VisitEntityType(*metadata.EntityType)
	VisitComplexType(*metadata.ComplexType)
	VisitRelationshipType(metadata.RelationshipType)
	VisitAssociationType(*metadata.AssociationType)
	VisitPrimitiveType(*metadata.PrimitiveType)
	VisitEnumType(*metadata.EnumType)
	VisitEnumMember(*metadata.EnumMember)
	VisitCollectionType(*metadata.CollectionType)
	VisitRowType(*metadata.RowType)
	VisitRefType(*metadata.RefType)
	VisitEdmMember(metadata.EdmMember)
	VisitEdmProperty(*metadata.EdmProperty)
	VisitNavigationProperty(*metadata.NavigationProperty)
	VisitAssociationEndMember(*metadata.AssociationEndMember)
	VisitReferentialConstraint(*metadata.ReferentialConstraint)
	VisitEdmFunction(*metadata.EdmFunction)
	VisitFunctionParameter(*metadata.FunctionParameter)
	VisitTypeUsage(*metadata.TypeUsage)
	VisitFacet(*metadata.Facet)
}

// Walker is the default Visitor. It visits a node, then its single
// children in declared order, then its child collections in their own
// order, and visits each node at most once.
//
// Recursion goes through Self, so a type embedding *Walker and overriding
// some Visit methods keeps the default traversal for the rest:
//
//	type counter struct {
//		*mapping.Walker
//		fragments int
//	}
//
//	func (c *counter) VisitMappingFragment(f *mapping.MappingFragment) {
//		c.fragments++
//		c.Walker.VisitMappingFragment(f)
//	}
//
//	c := &counter{}
//	c.Walker = mapping.NewWalker(c)
//	c.VisitContainerMapping(cm)
type Walker struct {
	Self Visitor
	seen map[any]struct{}
}

// NewWalker returns a Walker recursing through self. A nil self recurses
// through the Walker itself.
func NewWalker(self Visitor) *Walker {
	w := &Walker{Self: self, seen: make(map[any]struct{})}
	if self == nil {
		w.Self = w
	}
	return w
}

// Seen reports whether n was already visited.
func (w *Walker) Seen(n any) bool {
	_, ok := w.seen[n]
	return ok
}

// enter marks n visited and reports whether it was new.
func (w *Walker) enter(n any) bool {
	if w.seen == nil {
		w.seen = make(map[any]struct{})
	}
	if _, ok := w.seen[n]; ok {
		return false
	}
	w.seen[n] = struct{}{}
	return true
}

// VisitContainerMapping visits both containers, the set mappings and the
// function import mappings.
func (w *Walker) VisitContainerMapping(cm *ContainerMapping) {
	if cm == nil || !w.enter(cm) {
		return
	}
	w.Self.VisitEntityContainer(cm.Conceptual)
	w.Self.VisitEntityContainer(cm.Storage)
	for _, sm := range cm.setMappings {
		w.Self.VisitSetMapping(sm)
	}
	for _, fm := range cm.functionImports {
		w.Self.VisitFunctionImportMapping(fm)
	}
}

// VisitSetMapping routes to the concrete set mapping kind.
func (w *Walker) VisitSetMapping(sm SetMapping) {
	if sm == nil {
		return
	}
	sm.Accept(w.Self)
}

// VisitEntitySetMapping visits the set and the type mappings.
func (w *Walker) VisitEntitySetMapping(m *EntitySetMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	w.Self.VisitEntitySetBase(m.EntitySet)
	for _, tm := range m.typeMappings {
		w.Self.VisitTypeMapping(tm)
	}
}

// VisitAssociationSetMapping visits the set, the store table and the type
// mappings.
func (w *Walker) VisitAssociationSetMapping(m *AssociationSetMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	w.Self.VisitEntitySetBase(m.AssociationSet)
	w.Self.VisitEntitySetBase(m.StoreEntitySet)
	for _, tm := range m.typeMappings {
		w.Self.VisitTypeMapping(tm)
	}
}

// VisitTypeMapping routes to the concrete type mapping kind.
func (w *Walker) VisitTypeMapping(tm TypeMapping) {
	if tm == nil {
		return
	}
	tm.Accept(w.Self)
}

// VisitEntityTypeMapping visits the exact types, the is-of types and the
// fragments.
func (w *Walker) VisitEntityTypeMapping(m *EntityTypeMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	for _, t := range m.types {
		w.Self.VisitEdmType(t)
	}
	for _, t := range m.isOfTypes {
		w.Self.VisitEdmType(t)
	}
	for _, f := range m.fragments {
		w.Self.VisitMappingFragment(f)
	}
}

// VisitAssociationTypeMapping visits the association type and the fragments.
func (w *Walker) VisitAssociationTypeMapping(m *AssociationTypeMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	w.Self.VisitRelationshipType(m.AssociationType)
	for _, f := range m.fragments {
		w.Self.VisitMappingFragment(f)
	}
}

// VisitMappingFragment visits the table, the property mappings and the
// condition mappings.
func (w *Walker) VisitMappingFragment(f *MappingFragment) {
	if f == nil || !w.enter(f) {
		return
	}
	w.Self.VisitEntitySetBase(f.Table)
	for _, p := range f.properties {
		w.Self.VisitPropertyMapping(p)
	}
	for _, c := range f.conditions.list {
		w.Self.VisitPropertyMapping(c)
	}
}

// VisitPropertyMapping routes to the concrete property mapping kind.
func (w *Walker) VisitPropertyMapping(p PropertyMapping) {
	if p == nil {
		return
	}
	p.Accept(w.Self)
}

// VisitScalarPropertyMapping visits the property and the column.
func (w *Walker) VisitScalarPropertyMapping(m *ScalarPropertyMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	w.Self.VisitEdmMember(m.Property)
	w.Self.VisitEdmMember(m.Column)
}

// VisitComplexPropertyMapping visits the property and the complex type mappings.
func (w *Walker) VisitComplexPropertyMapping(m *ComplexPropertyMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	w.Self.VisitEdmMember(m.Property)
	for _, tm := range m.typeMappings {
		w.Self.VisitComplexTypeMapping(tm)
	}
}

// VisitConditionPropertyMapping visits the property and the column, either
// of which may be absent.
func (w *Walker) VisitConditionPropertyMapping(m *ConditionPropertyMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	if m.Property != nil {
		w.Self.VisitEdmMember(m.Property)
	}
	if m.Column != nil {
		w.Self.VisitEdmMember(m.Column)
	}
}

// VisitEndPropertyMapping visits the end and the key property mappings.
func (w *Walker) VisitEndPropertyMapping(m *EndPropertyMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	w.Self.VisitEdmMember(m.End)
	for _, p := range m.properties {
		w.Self.VisitPropertyMapping(p)
	}
}

// VisitComplexTypeMapping visits the types, the property mappings and the
// condition mappings.
func (w *Walker) VisitComplexTypeMapping(m *ComplexTypeMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	for _, t := range m.types {
		w.Self.VisitEdmType(t)
	}
	for _, t := range m.isOfTypes {
		w.Self.VisitEdmType(t)
	}
	for _, p := range m.properties {
		w.Self.VisitPropertyMapping(p)
	}
	for _, c := range m.conditions.list {
		w.Self.VisitPropertyMapping(c)
	}
}

// VisitFunctionImportMapping visits both functions and the structural type
// mappings of every result set.
func (w *Walker) VisitFunctionImportMapping(m *FunctionImportMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	w.Self.VisitEdmFunction(m.FunctionImport)
	w.Self.VisitEdmFunction(m.TargetFunction)
	for _, rm := range m.resultMappings {
		for _, tm := range rm {
			w.Self.VisitFunctionImportStructuralTypeMapping(tm)
		}
	}
}

// VisitFunctionImportStructuralTypeMapping routes to the concrete kind.
func (w *Walker) VisitFunctionImportStructuralTypeMapping(m FunctionImportStructuralTypeMapping) {
	if m == nil {
		return
	}
	m.Accept(w.Self)
}

// VisitFunctionImportEntityTypeMapping visits the exact and is-of types.
func (w *Walker) VisitFunctionImportEntityTypeMapping(m *FunctionImportEntityTypeMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	for _, t := range m.EntityTypes {
		w.Self.VisitEdmType(t)
	}
	for _, t := range m.IsOfTypes {
		w.Self.VisitEdmType(t)
	}
}

// VisitFunctionImportComplexTypeMapping visits the complex type.
func (w *Walker) VisitFunctionImportComplexTypeMapping(m *FunctionImportComplexTypeMapping) {
	if m == nil || !w.enter(m) {
		return
	}
	w.Self.VisitEdmType(m.ComplexType)
}

// VisitEntityContainer visits the sets and the function imports.
func (w *Walker) VisitEntityContainer(c *metadata.EntityContainer) {
	if c == nil || !w.enter(c) {
		return
	}
	for _, s := range c.Sets {
		w.Self.VisitEntitySetBase(s)
	}
	for _, f := range c.FunctionImports {
		w.Self.VisitEdmFunction(f)
	}
}

// VisitEntitySetBase routes on the set kind.
func (w *Walker) VisitEntitySetBase(s metadata.EntitySetBase) {
	if s == nil {
		return
	}
	switch s.Kind() {
	case metadata.KindEntitySet:
		w.Self.VisitEntitySet(as[*metadata.EntitySet]("EntitySetBase", s))
	case metadata.KindAssociationSet:
		w.Self.VisitAssociationSet(as[*metadata.AssociationSet]("EntitySetBase", s))
	default:
		panic(csmap.NewKindFault("EntitySetBase", s.Kind(), s))
	}
}

// VisitEntitySet visits the element type.
func (w *Walker) VisitEntitySet(s *metadata.EntitySet) {
	if s == nil || !w.enter(s) {
		return
	}
	w.Self.VisitEdmType(s.EntityType)
}

// VisitAssociationSet visits the association type and the ends.
func (w *Walker) VisitAssociationSet(s *metadata.AssociationSet) {
	if s == nil || !w.enter(s) {
		return
	}
	w.Self.VisitRelationshipType(s.AssociationType)
	for _, e := range s.Ends {
		w.Self.VisitAssociationSetEnd(e)
	}
}

// VisitAssociationSetEnd visits the role and the entity set.
func (w *Walker) VisitAssociationSetEnd(e *metadata.AssociationSetEnd) {
	if e == nil || !w.enter(e) {
		return
	}
	w.Self.VisitEdmMember(e.Role)
	w.Self.VisitEntitySetBase(e.EntitySet)
}

// VisitEdmType routes on the type kind.
func (w *Walker) VisitEdmType(t metadata.EdmType) {
	if t == nil {
		return
	}
	switch t.Kind() {
	case metadata.KindEntityType:
		w.Self.VisitEntityType(as[*metadata.EntityType]("EdmType", t))
	case metadata.KindComplexType:
		w.Self.VisitComplexType(as[*metadata.ComplexType]("EdmType", t))
	case metadata.KindAssociationType:
		w.Self.VisitRelationshipType(as[metadata.RelationshipType]("EdmType", t))
	case metadata.KindPrimitiveType:
		w.Self.VisitPrimitiveType(as[*metadata.PrimitiveType]("EdmType", t))
	case metadata.KindEnumType:
		w.Self.VisitEnumType(as[*metadata.EnumType]("EdmType", t))
	case metadata.KindCollectionType:
		w.Self.VisitCollectionType(as[*metadata.CollectionType]("EdmType", t))
	case metadata.KindRowType:
		w.Self.VisitRowType(as[*metadata.RowType]("EdmType", t))
	case metadata.KindRefType:
		w.Self.VisitRefType(as[*metadata.RefType]("EdmType", t))
	default:
		panic(csmap.NewKindFault("EdmType", t.Kind(), t))
	}
}

// VisitEntityType visits the base type, the properties and the navigation
// properties.
func (w *Walker) VisitEntityType(t *metadata.EntityType) {
	if t == nil || !w.enter(t) {
		return
	}
	w.Self.VisitEdmType(t.BaseType())
	for _, p := range t.Properties {
		w.Self.VisitEdmMember(p)
	}
	for _, n := range t.NavigationProperties {
		w.Self.VisitEdmMember(n)
	}
}

// VisitComplexType visits the base type and the properties.
func (w *Walker) VisitComplexType(t *metadata.ComplexType) {
	if t == nil || !w.enter(t) {
		return
	}
	w.Self.VisitEdmType(t.BaseType())
	for _, p := range t.Properties {
		w.Self.VisitEdmMember(p)
	}
}

// VisitRelationshipType routes on the relationship kind.
func (w *Walker) VisitRelationshipType(t metadata.RelationshipType) {
	if t == nil {
		return
	}
	switch t.Kind() {
	case metadata.KindAssociationType:
		w.Self.VisitAssociationType(as[*metadata.AssociationType]("RelationshipType", t))
	default:
		panic(csmap.NewKindFault("RelationshipType", t.Kind(), t))
	}
}

// VisitAssociationType visits the ends and the referential constraints.
func (w *Walker) VisitAssociationType(t *metadata.AssociationType) {
	if t == nil || !w.enter(t) {
		return
	}
	for _, e := range t.Ends {
		w.Self.VisitEdmMember(e)
	}
	for _, c := range t.Constraints {
		w.Self.VisitReferentialConstraint(c)
	}
}

// VisitPrimitiveType has no children.
func (w *Walker) VisitPrimitiveType(t *metadata.PrimitiveType) {
	if t == nil {
		return
	}
	w.enter(t)
}

// VisitEnumType visits the underlying type and the members.
func (w *Walker) VisitEnumType(t *metadata.EnumType) {
	if t == nil || !w.enter(t) {
		return
	}
	if t.Underlying != nil {
		w.Self.VisitEdmType(t.Underlying)
	}
	for _, m := range t.Members {
		w.Self.VisitEnumMember(m)
	}
}

// VisitEnumMember has no children.
func (w *Walker) VisitEnumMember(m *metadata.EnumMember) {
	if m == nil {
		return
	}
	w.enter(m)
}

// VisitCollectionType visits the element type usage.
func (w *Walker) VisitCollectionType(t *metadata.CollectionType) {
	if t == nil || !w.enter(t) {
		return
	}
	w.Self.VisitTypeUsage(t.Element)
}

// VisitRowType visits the properties.
func (w *Walker) VisitRowType(t *metadata.RowType) {
	if t == nil || !w.enter(t) {
		return
	}
	for _, p := range t.Properties {
		w.Self.VisitEdmMember(p)
	}
}

// VisitRefType visits the referenced entity type.
func (w *Walker) VisitRefType(t *metadata.RefType) {
	if t == nil || !w.enter(t) {
		return
	}
	if t.Element != nil {
		w.Self.VisitEdmType(t.Element)
	}
}

// VisitEdmMember routes on the member kind.
func (w *Walker) VisitEdmMember(m metadata.EdmMember) {
	if m == nil {
		return
	}
	switch m.Kind() {
	case metadata.KindEdmProperty:
		w.Self.VisitEdmProperty(as[*metadata.EdmProperty]("EdmMember", m))
	case metadata.KindNavigationProperty:
		w.Self.VisitNavigationProperty(as[*metadata.NavigationProperty]("EdmMember", m))
	case metadata.KindAssociationEndMember:
		w.Self.VisitAssociationEndMember(as[*metadata.AssociationEndMember]("EdmMember", m))
	default:
		panic(csmap.NewKindFault("EdmMember", m.Kind(), m))
	}
}

// VisitEdmProperty visits the type usage.
func (w *Walker) VisitEdmProperty(p *metadata.EdmProperty) {
	if p == nil || !w.enter(p) {
		return
	}
	w.Self.VisitTypeUsage(p.TypeUsage)
}

// VisitNavigationProperty visits the relationship and both ends.
func (w *Walker) VisitNavigationProperty(n *metadata.NavigationProperty) {
	if n == nil || !w.enter(n) {
		return
	}
	if n.Relationship != nil {
		w.Self.VisitRelationshipType(n.Relationship)
	}
	if n.FromEnd != nil {
		w.Self.VisitEdmMember(n.FromEnd)
	}
	if n.ToEnd != nil {
		w.Self.VisitEdmMember(n.ToEnd)
	}
}

// VisitAssociationEndMember visits the end's entity type.
func (w *Walker) VisitAssociationEndMember(e *metadata.AssociationEndMember) {
	if e == nil || !w.enter(e) {
		return
	}
	if e.EntityType != nil {
		w.Self.VisitEdmType(e.EntityType)
	}
}

// VisitReferentialConstraint visits both roles and both property lists.
func (w *Walker) VisitReferentialConstraint(c *metadata.ReferentialConstraint) {
	if c == nil || !w.enter(c) {
		return
	}
	if c.FromRole != nil {
		w.Self.VisitEdmMember(c.FromRole)
	}
	if c.ToRole != nil {
		w.Self.VisitEdmMember(c.ToRole)
	}
	for _, p := range c.FromProperties {
		w.Self.VisitEdmMember(p)
	}
	for _, p := range c.ToProperties {
		w.Self.VisitEdmMember(p)
	}
}

// VisitEdmFunction visits the parameters, the return parameters and the
// result entity sets.
func (w *Walker) VisitEdmFunction(f *metadata.EdmFunction) {
	if f == nil || !w.enter(f) {
		return
	}
	for _, p := range f.Parameters {
		w.Self.VisitFunctionParameter(p)
	}
	for _, p := range f.ReturnParameters {
		w.Self.VisitFunctionParameter(p)
	}
	for _, s := range f.EntitySets {
		w.Self.VisitEntitySetBase(s)
	}
}

// VisitFunctionParameter visits the type usage.
func (w *Walker) VisitFunctionParameter(p *metadata.FunctionParameter) {
	if p == nil || !w.enter(p) {
		return
	}
	w.Self.VisitTypeUsage(p.TypeUsage)
}

// VisitTypeUsage visits the type and the facets.
func (w *Walker) VisitTypeUsage(u *metadata.TypeUsage) {
	if u == nil || !w.enter(u) {
		return
	}
	w.Self.VisitEdmType(u.Type)
	for _, f := range u.Facets {
		w.Self.VisitFacet(f)
	}
}

// VisitFacet has no children.
func (w *Walker) VisitFacet(f *metadata.Facet) {
	if f == nil {
		return
	}
	w.enter(f)
}

// as asserts the concrete type behind a kind tag. A mismatch means Kind()
// lies about the node and is a programming defect.
func as[T any](site string, item metadata.Item) T {
	n, ok := item.(T)
	if !ok {
		panic(csmap.NewKindFault(site, item.Kind(), item))
	}
	return n
}
