package signature

import (
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
)

// encoder writes every node as a msgpack record (tag, then fields) before
// its children. A node met again is written as "#n", n being the order in
// which it was first written. Collection lengths are part of the parent
// record so sibling boundaries are unambiguous.
type encoder struct {
	*mapping.Walker
	enc *msgpack.Encoder
	ids map[any]int
	err error
}

func (e *encoder) write(v any) {
	if e.err != nil {
		return
	}
	e.err = e.enc.Encode(v)
}

// node reports whether n is new, writing its record or its back reference.
func (e *encoder) node(n any, tag string, fields ...any) bool {
	if i, ok := e.ids[n]; ok {
		e.write("#" + strconv.Itoa(i))
		return false
	}
	e.ids[n] = len(e.ids)
	e.write(tag)
	for _, f := range fields {
		e.write(f)
	}
	return true
}

func (e *encoder) VisitContainerMapping(cm *mapping.ContainerMapping) {
	if cm == nil {
		e.write(nil)
		return
	}
	if e.node(cm, "ContainerMapping", cm.Validate, cm.GenerateUpdateViews,
		len(cm.SetMappings()), len(cm.FunctionImportMappings())) {
		e.Walker.VisitContainerMapping(cm)
	}
}

func (e *encoder) setMapping(sm mapping.SetMapping) {
	e.write(sm.QueryView())
	keys := sm.TypeQueryViewKeys()
	e.write(len(keys))
	for _, k := range keys {
		view, _ := sm.TypeQueryView(k)
		e.write(k.Set.Name)
		e.write(k.Type.FullName())
		e.write(k.IncludeSubtypes)
		e.write(view)
	}
}

func (e *encoder) VisitEntitySetMapping(m *mapping.EntitySetMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "EntitySetMapping", len(m.TypeMappings())) {
		e.setMapping(m)
		e.Walker.VisitEntitySetMapping(m)
	}
}

func (e *encoder) VisitAssociationSetMapping(m *mapping.AssociationSetMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "AssociationSetMapping", len(m.TypeMappings())) {
		e.setMapping(m)
		e.Walker.VisitAssociationSetMapping(m)
	}
}

func (e *encoder) VisitEntityTypeMapping(m *mapping.EntityTypeMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "EntityTypeMapping", len(m.Types()), len(m.IsOfTypes()), len(m.Fragments())) {
		e.Walker.VisitEntityTypeMapping(m)
	}
}

func (e *encoder) VisitAssociationTypeMapping(m *mapping.AssociationTypeMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "AssociationTypeMapping", len(m.Fragments())) {
		e.Walker.VisitAssociationTypeMapping(m)
	}
}

func (e *encoder) VisitMappingFragment(f *mapping.MappingFragment) {
	if f == nil {
		e.write(nil)
		return
	}
	if e.node(f, "MappingFragment", f.IsSQueryDistinct, len(f.Properties()), len(f.Conditions())) {
		e.Walker.VisitMappingFragment(f)
	}
}

func (e *encoder) VisitScalarPropertyMapping(m *mapping.ScalarPropertyMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "ScalarPropertyMapping") {
		e.Walker.VisitScalarPropertyMapping(m)
	}
}

func (e *encoder) VisitComplexPropertyMapping(m *mapping.ComplexPropertyMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "ComplexPropertyMapping", len(m.TypeMappings())) {
		e.Walker.VisitComplexPropertyMapping(m)
	}
}

func (e *encoder) VisitConditionPropertyMapping(m *mapping.ConditionPropertyMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "ConditionPropertyMapping", m.Property != nil, m.Column != nil, m.Value, m.IsNull) {
		e.Walker.VisitConditionPropertyMapping(m)
	}
}

func (e *encoder) VisitEndPropertyMapping(m *mapping.EndPropertyMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "EndPropertyMapping", len(m.Properties())) {
		e.Walker.VisitEndPropertyMapping(m)
	}
}

func (e *encoder) VisitComplexTypeMapping(m *mapping.ComplexTypeMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "ComplexTypeMapping", len(m.Types()), len(m.IsOfTypes()), len(m.Properties()), len(m.Conditions())) {
		e.Walker.VisitComplexTypeMapping(m)
	}
}

func (e *encoder) VisitFunctionImportMapping(m *mapping.FunctionImportMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	counts := make([]int, m.ResultSets())
	for i := range counts {
		rm, _ := m.ResultMapping(i)
		counts[i] = len(rm)
	}
	if e.node(m, "FunctionImportMapping", counts) {
		e.Walker.VisitFunctionImportMapping(m)
	}
}

func (e *encoder) renames(renames []mapping.ColumnRename) {
	e.write(len(renames))
	for _, r := range renames {
		e.write(r.Member)
		e.write(r.Column)
	}
}

func (e *encoder) VisitFunctionImportEntityTypeMapping(m *mapping.FunctionImportEntityTypeMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	conds := make([]string, len(m.Conditions()))
	for i, c := range m.Conditions() {
		conds[i] = c.String()
	}
	if e.node(m, "FunctionImportEntityTypeMapping", len(m.EntityTypes), len(m.IsOfTypes), conds) {
		e.renames(m.Renames)
		e.Walker.VisitFunctionImportEntityTypeMapping(m)
	}
}

func (e *encoder) VisitFunctionImportComplexTypeMapping(m *mapping.FunctionImportComplexTypeMapping) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "FunctionImportComplexTypeMapping") {
		e.renames(m.Renames)
		e.Walker.VisitFunctionImportComplexTypeMapping(m)
	}
}

func (e *encoder) VisitEntityContainer(c *metadata.EntityContainer) {
	if c == nil {
		e.write(nil)
		return
	}
	if e.node(c, "EntityContainer", c.Name, len(c.Sets), len(c.FunctionImports)) {
		e.Walker.VisitEntityContainer(c)
	}
}

func (e *encoder) VisitEntitySet(s *metadata.EntitySet) {
	if s == nil {
		e.write(nil)
		return
	}
	if e.node(s, "EntitySet", s.Name, s.Schema, s.Table) {
		e.Walker.VisitEntitySet(s)
	}
}

func (e *encoder) VisitAssociationSet(s *metadata.AssociationSet) {
	if s == nil {
		e.write(nil)
		return
	}
	if e.node(s, "AssociationSet", s.Name, len(s.Ends)) {
		e.Walker.VisitAssociationSet(s)
	}
}

func (e *encoder) VisitAssociationSetEnd(end *metadata.AssociationSetEnd) {
	if end == nil {
		e.write(nil)
		return
	}
	if e.node(end, "AssociationSetEnd") {
		e.Walker.VisitAssociationSetEnd(end)
	}
}

func (e *encoder) VisitEntityType(t *metadata.EntityType) {
	if t == nil {
		e.write(nil)
		return
	}
	if e.node(t, "EntityType", t.FullName(), t.Abstract, t.KeyMembers,
		len(t.Properties), len(t.NavigationProperties)) {
		e.Walker.VisitEntityType(t)
	}
}

func (e *encoder) VisitComplexType(t *metadata.ComplexType) {
	if t == nil {
		e.write(nil)
		return
	}
	if e.node(t, "ComplexType", t.FullName(), len(t.Properties)) {
		e.Walker.VisitComplexType(t)
	}
}

func (e *encoder) VisitAssociationType(t *metadata.AssociationType) {
	if t == nil {
		e.write(nil)
		return
	}
	if e.node(t, "AssociationType", t.FullName(), len(t.Ends), len(t.Constraints)) {
		e.Walker.VisitAssociationType(t)
	}
}

func (e *encoder) VisitPrimitiveType(t *metadata.PrimitiveType) {
	if t == nil {
		e.write(nil)
		return
	}
	if e.node(t, "PrimitiveType", t.FullName(), uint8(t.PrimitiveKind)) {
		e.Walker.VisitPrimitiveType(t)
	}
}

func (e *encoder) VisitEnumType(t *metadata.EnumType) {
	if t == nil {
		e.write(nil)
		return
	}
	if e.node(t, "EnumType", t.FullName(), t.Flags, len(t.Members)) {
		e.Walker.VisitEnumType(t)
	}
}

func (e *encoder) VisitEnumMember(m *metadata.EnumMember) {
	if m == nil {
		e.write(nil)
		return
	}
	if e.node(m, "EnumMember", m.Name, m.Value) {
		e.Walker.VisitEnumMember(m)
	}
}

func (e *encoder) VisitCollectionType(t *metadata.CollectionType) {
	if t == nil {
		e.write(nil)
		return
	}
	if e.node(t, "CollectionType") {
		e.Walker.VisitCollectionType(t)
	}
}

func (e *encoder) VisitRowType(t *metadata.RowType) {
	if t == nil {
		e.write(nil)
		return
	}
	if e.node(t, "RowType", len(t.Properties)) {
		e.Walker.VisitRowType(t)
	}
}

func (e *encoder) VisitRefType(t *metadata.RefType) {
	if t == nil {
		e.write(nil)
		return
	}
	if e.node(t, "RefType") {
		e.Walker.VisitRefType(t)
	}
}

func (e *encoder) VisitEdmProperty(p *metadata.EdmProperty) {
	if p == nil {
		e.write(nil)
		return
	}
	if e.node(p, "EdmProperty", p.Name, p.Nullable) {
		e.Walker.VisitEdmProperty(p)
	}
}

func (e *encoder) VisitNavigationProperty(n *metadata.NavigationProperty) {
	if n == nil {
		e.write(nil)
		return
	}
	if e.node(n, "NavigationProperty", n.Name) {
		e.Walker.VisitNavigationProperty(n)
	}
}

func (e *encoder) VisitAssociationEndMember(end *metadata.AssociationEndMember) {
	if end == nil {
		e.write(nil)
		return
	}
	if e.node(end, "AssociationEndMember", end.Name, uint8(end.Multiplicity)) {
		e.Walker.VisitAssociationEndMember(end)
	}
}

func (e *encoder) VisitReferentialConstraint(c *metadata.ReferentialConstraint) {
	if c == nil {
		e.write(nil)
		return
	}
	if e.node(c, "ReferentialConstraint", len(c.FromProperties), len(c.ToProperties)) {
		e.Walker.VisitReferentialConstraint(c)
	}
}

func (e *encoder) VisitEdmFunction(f *metadata.EdmFunction) {
	if f == nil {
		e.write(nil)
		return
	}
	if e.node(f, "EdmFunction", f.FullName(), f.Composable,
		len(f.Parameters), len(f.ReturnParameters), len(f.EntitySets)) {
		e.Walker.VisitEdmFunction(f)
	}
}

func (e *encoder) VisitFunctionParameter(p *metadata.FunctionParameter) {
	if p == nil {
		e.write(nil)
		return
	}
	if e.node(p, "FunctionParameter", p.Name, uint8(p.Mode)) {
		e.Walker.VisitFunctionParameter(p)
	}
}

func (e *encoder) VisitTypeUsage(u *metadata.TypeUsage) {
	if u == nil {
		e.write(nil)
		return
	}
	if e.node(u, "TypeUsage", len(u.Facets)) {
		e.Walker.VisitTypeUsage(u)
	}
}

func (e *encoder) VisitFacet(f *metadata.Facet) {
	if f == nil {
		e.write(nil)
		return
	}
	if e.node(f, "Facet", f.Name, f.Value) {
		e.Walker.VisitFacet(f)
	}
}
