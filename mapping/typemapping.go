package mapping

import (
	"github.com/syssam/csmap"
	"github.com/syssam/csmap/metadata"
)

// TypeMapping is implemented by EntityTypeMapping and AssociationTypeMapping.
type TypeMapping interface {
	Node
	// Parent returns the owning set mapping.
	Parent() SetMapping
	Fragments() []*MappingFragment
	setParent(SetMapping)
}

type typeMapping struct {
	state
	Location SourceLocation

	parent    SetMapping
	fragments []*MappingFragment
}

func (t *typeMapping) addFragment(self TypeMapping, f *MappingFragment) error {
	if err := t.mutable(); err != nil {
		return err
	}
	f.parent = self
	t.fragments = append(t.fragments, f)
	return nil
}

// Parent returns the owning set mapping.
func (t *typeMapping) Parent() SetMapping { return t.parent }

// Fragments returns the fragments in document order.
func (t *typeMapping) Fragments() []*MappingFragment { return t.fragments }

func (t *typeMapping) setParent(sm SetMapping) { t.parent = sm }

// EntityTypeMapping maps exact entity types and type hierarchies (is-of
// types) onto one or more fragments.
type EntityTypeMapping struct {
	typeMapping
	types     []*metadata.EntityType
	isOfTypes []*metadata.EntityType
}

// NewEntityTypeMapping returns an empty entity type mapping.
func NewEntityTypeMapping() *EntityTypeMapping {
	return &EntityTypeMapping{}
}

// AddType adds an exact type. Adding a type twice is a no-op.
func (m *EntityTypeMapping) AddType(t *metadata.EntityType) error {
	if err := m.mutable(); err != nil {
		return err
	}
	m.types = appendDistinct(m.types, t)
	return nil
}

// AddIsOfType adds a type together with its subtypes. Adding a type twice
// is a no-op.
func (m *EntityTypeMapping) AddIsOfType(t *metadata.EntityType) error {
	if err := m.mutable(); err != nil {
		return err
	}
	m.isOfTypes = appendDistinct(m.isOfTypes, t)
	return nil
}

// Types returns the exact types in insertion order.
func (m *EntityTypeMapping) Types() []*metadata.EntityType { return m.types }

// IsOfTypes returns the hierarchy types in insertion order.
func (m *EntityTypeMapping) IsOfTypes() []*metadata.EntityType { return m.isOfTypes }

// AddFragment appends a fragment.
func (m *EntityTypeMapping) AddFragment(f *MappingFragment) error {
	return m.addFragment(m, f)
}

// Accept implements Node.
func (m *EntityTypeMapping) Accept(v Visitor) { v.VisitEntityTypeMapping(m) }

func (*EntityTypeMapping) node() {}

// AssociationTypeMapping maps an association type onto fragments.
type AssociationTypeMapping struct {
	typeMapping
	AssociationType *metadata.AssociationType
}

// NewAssociationTypeMapping returns an empty mapping of t.
func NewAssociationTypeMapping(t *metadata.AssociationType) *AssociationTypeMapping {
	return &AssociationTypeMapping{AssociationType: t}
}

// AddFragment appends a fragment.
func (m *AssociationTypeMapping) AddFragment(f *MappingFragment) error {
	return m.addFragment(m, f)
}

// Accept implements Node.
func (m *AssociationTypeMapping) Accept(v Visitor) { v.VisitAssociationTypeMapping(m) }

func (*AssociationTypeMapping) node() {}

// DuplicateConditionFunc is called when a condition is added for a member
// that already has one. The duplicate is dropped.
type DuplicateConditionFunc func(member metadata.EdmMember)

// conditions holds condition mappings keyed by member, one per member.
type conditions struct {
	list     []*ConditionPropertyMapping
	byMember map[metadata.EdmMember]*ConditionPropertyMapping
}

func (c *conditions) add(owner string, cond *ConditionPropertyMapping, onDuplicate DuplicateConditionFunc) (bool, error) {
	member := cond.Member()
	if c.byMember == nil {
		c.byMember = make(map[metadata.EdmMember]*ConditionPropertyMapping)
	}
	if _, ok := c.byMember[member]; ok {
		if onDuplicate != nil {
			onDuplicate(member)
			return false, nil
		}
		return false, csmap.NewDuplicateConditionError(member.MemberName(), owner)
	}
	c.byMember[member] = cond
	c.list = append(c.list, cond)
	return true, nil
}

// condition returns the condition on member, or nil.
func (c *conditions) condition(member metadata.EdmMember) *ConditionPropertyMapping {
	return c.byMember[member]
}

// MappingFragment maps members of a type onto columns of one table.
type MappingFragment struct {
	state
	Table *metadata.EntitySet
	// IsSQueryDistinct makes the storage side query distinct.
	IsSQueryDistinct bool
	Location         SourceLocation

	parent     TypeMapping
	properties []PropertyMapping
	conditions conditions
}

// NewMappingFragment returns an empty fragment over table.
func NewMappingFragment(table *metadata.EntitySet) *MappingFragment {
	return &MappingFragment{Table: table}
}

// Parent returns the owning type mapping.
func (f *MappingFragment) Parent() TypeMapping { return f.parent }

// AddProperty appends a property mapping. Condition mappings are routed
// through AddConditionProperty without a duplicate callback.
func (f *MappingFragment) AddProperty(p PropertyMapping) error {
	if c, ok := p.(*ConditionPropertyMapping); ok {
		return f.AddConditionProperty(c, nil)
	}
	if err := f.mutable(); err != nil {
		return err
	}
	p.setParent(f)
	f.properties = append(f.properties, p)
	return nil
}

// AddConditionProperty adds a condition mapping. A second condition for
// the same member is reported to onDuplicate, or returned as
// *csmap.DuplicateConditionError when onDuplicate is nil.
func (f *MappingFragment) AddConditionProperty(c *ConditionPropertyMapping, onDuplicate DuplicateConditionFunc) error {
	if err := f.mutable(); err != nil {
		return err
	}
	added, err := f.conditions.add(f.Table.TableName(), c, onDuplicate)
	if added {
		c.parent = f
	}
	return err
}

// Condition returns the condition mapped on member, or nil.
func (f *MappingFragment) Condition(member metadata.EdmMember) *ConditionPropertyMapping {
	return f.conditions.condition(member)
}

// Properties returns the non-condition property mappings in document order.
func (f *MappingFragment) Properties() []PropertyMapping { return f.properties }

// Conditions returns the condition mappings in document order.
func (f *MappingFragment) Conditions() []*ConditionPropertyMapping { return f.conditions.list }

// AllProperties returns property mappings followed by condition mappings.
func (f *MappingFragment) AllProperties() []PropertyMapping {
	all := make([]PropertyMapping, 0, len(f.properties)+len(f.conditions.list))
	all = append(all, f.properties...)
	for _, c := range f.conditions.list {
		all = append(all, c)
	}
	return all
}

// Accept implements Node.
func (f *MappingFragment) Accept(v Visitor) { v.VisitMappingFragment(f) }

func (*MappingFragment) node() {}

func appendDistinct[T comparable](s []T, v T) []T {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}
