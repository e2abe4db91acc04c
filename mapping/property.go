package mapping

import (
	"fmt"

	"github.com/syssam/csmap/metadata"
)

// PropertyMapping is implemented by ScalarPropertyMapping,
// ComplexPropertyMapping, ConditionPropertyMapping and EndPropertyMapping.
type PropertyMapping interface {
	Node
	// Parent returns the owning fragment, complex type mapping or end mapping.
	Parent() Node
	setParent(Node)
}

type propertyMapping struct {
	state
	parent Node
}

// Parent returns the owning node.
func (p *propertyMapping) Parent() Node { return p.parent }

func (p *propertyMapping) setParent(n Node) { p.parent = n }

// ScalarPropertyMapping maps a conceptual property onto a column.
type ScalarPropertyMapping struct {
	propertyMapping
	Property *metadata.EdmProperty
	Column   *metadata.EdmProperty
}

// NewScalarPropertyMapping returns a mapping of property onto column.
func NewScalarPropertyMapping(property, column *metadata.EdmProperty) *ScalarPropertyMapping {
	return &ScalarPropertyMapping{Property: property, Column: column}
}

// Accept implements Node.
func (m *ScalarPropertyMapping) Accept(v Visitor) { v.VisitScalarPropertyMapping(m) }

func (*ScalarPropertyMapping) node() {}

// ComplexPropertyMapping maps a complex valued property through nested
// complex type mappings.
type ComplexPropertyMapping struct {
	propertyMapping
	Property *metadata.EdmProperty

	typeMappings []*ComplexTypeMapping
}

// NewComplexPropertyMapping returns an empty mapping of property.
func NewComplexPropertyMapping(property *metadata.EdmProperty) *ComplexPropertyMapping {
	return &ComplexPropertyMapping{Property: property}
}

// AddTypeMapping appends a complex type mapping.
func (m *ComplexPropertyMapping) AddTypeMapping(tm *ComplexTypeMapping) error {
	if err := m.mutable(); err != nil {
		return err
	}
	tm.parent = m
	m.typeMappings = append(m.typeMappings, tm)
	return nil
}

// TypeMappings returns the complex type mappings in document order.
func (m *ComplexPropertyMapping) TypeMappings() []*ComplexTypeMapping { return m.typeMappings }

// Accept implements Node.
func (m *ComplexPropertyMapping) Accept(v Visitor) { v.VisitComplexPropertyMapping(m) }

func (*ComplexPropertyMapping) node() {}

// ConditionPropertyMapping restricts a fragment to rows where a member has
// a constant value or is (not) null. The member is a conceptual property or
// a storage column.
type ConditionPropertyMapping struct {
	propertyMapping
	Property *metadata.EdmProperty
	Column   *metadata.EdmProperty
	// Value is the expected value of a value condition.
	Value any
	// IsNull is the expected nullness of an is-null condition, nil for a
	// value condition.
	IsNull   *bool
	Location SourceLocation
}

// NewValueCondition returns a condition member = value. Exactly one of
// property and column is expected to be set.
func NewValueCondition(property, column *metadata.EdmProperty, value any) *ConditionPropertyMapping {
	return &ConditionPropertyMapping{Property: property, Column: column, Value: value}
}

// NewIsNullCondition returns a condition member IS [NOT] NULL.
func NewIsNullCondition(property, column *metadata.EdmProperty, isNull bool) *ConditionPropertyMapping {
	return &ConditionPropertyMapping{Property: property, Column: column, IsNull: &isNull}
}

// Member returns the conditioned member: the property if set, else the column.
func (m *ConditionPropertyMapping) Member() metadata.EdmMember {
	if m.Property != nil {
		return m.Property
	}
	if m.Column != nil {
		return m.Column
	}
	return nil
}

// IsNullCondition reports whether this is an is-null condition.
func (m *ConditionPropertyMapping) IsNullCondition() bool { return m.IsNull != nil }

// String returns the condition in query notation.
func (m *ConditionPropertyMapping) String() string {
	name := "<nil>"
	if member := m.Member(); member != nil {
		name = member.MemberName()
	}
	switch {
	case m.IsNull == nil:
		return fmt.Sprintf("%s = %v", name, m.Value)
	case *m.IsNull:
		return name + " IS NULL"
	default:
		return name + " IS NOT NULL"
	}
}

// Accept implements Node.
func (m *ConditionPropertyMapping) Accept(v Visitor) { v.VisitConditionPropertyMapping(m) }

func (*ConditionPropertyMapping) node() {}

// EndPropertyMapping maps the key of an association end onto columns.
type EndPropertyMapping struct {
	propertyMapping
	End *metadata.AssociationEndMember

	properties []*ScalarPropertyMapping
}

// NewEndPropertyMapping returns an empty mapping of end.
func NewEndPropertyMapping(end *metadata.AssociationEndMember) *EndPropertyMapping {
	return &EndPropertyMapping{End: end}
}

// AddProperty appends a key property mapping.
func (m *EndPropertyMapping) AddProperty(p *ScalarPropertyMapping) error {
	if err := m.mutable(); err != nil {
		return err
	}
	p.parent = m
	m.properties = append(m.properties, p)
	return nil
}

// Properties returns the key property mappings in document order.
func (m *EndPropertyMapping) Properties() []*ScalarPropertyMapping { return m.properties }

// Accept implements Node.
func (m *EndPropertyMapping) Accept(v Visitor) { v.VisitEndPropertyMapping(m) }

func (*EndPropertyMapping) node() {}

// ComplexTypeMapping maps exact and hierarchy complex types within a
// complex property mapping.
type ComplexTypeMapping struct {
	state
	Location SourceLocation

	parent     *ComplexPropertyMapping
	types      []*metadata.ComplexType
	isOfTypes  []*metadata.ComplexType
	properties []PropertyMapping
	conditions conditions
}

// NewComplexTypeMapping returns an empty complex type mapping.
func NewComplexTypeMapping() *ComplexTypeMapping {
	return &ComplexTypeMapping{}
}

// Parent returns the owning complex property mapping.
func (m *ComplexTypeMapping) Parent() *ComplexPropertyMapping { return m.parent }

// AddType adds an exact type.
func (m *ComplexTypeMapping) AddType(t *metadata.ComplexType) error {
	if err := m.mutable(); err != nil {
		return err
	}
	m.types = appendDistinct(m.types, t)
	return nil
}

// AddIsOfType adds a type together with its subtypes.
func (m *ComplexTypeMapping) AddIsOfType(t *metadata.ComplexType) error {
	if err := m.mutable(); err != nil {
		return err
	}
	m.isOfTypes = appendDistinct(m.isOfTypes, t)
	return nil
}

// Types returns the exact types.
func (m *ComplexTypeMapping) Types() []*metadata.ComplexType { return m.types }

// IsOfTypes returns the hierarchy types.
func (m *ComplexTypeMapping) IsOfTypes() []*metadata.ComplexType { return m.isOfTypes }

// AddProperty appends a property mapping. Condition mappings are routed
// through AddConditionProperty without a duplicate callback.
func (m *ComplexTypeMapping) AddProperty(p PropertyMapping) error {
	if c, ok := p.(*ConditionPropertyMapping); ok {
		return m.AddConditionProperty(c, nil)
	}
	if err := m.mutable(); err != nil {
		return err
	}
	p.setParent(m)
	m.properties = append(m.properties, p)
	return nil
}

// AddConditionProperty adds a condition mapping; duplicates are handled as
// in MappingFragment.AddConditionProperty.
func (m *ComplexTypeMapping) AddConditionProperty(c *ConditionPropertyMapping, onDuplicate DuplicateConditionFunc) error {
	if err := m.mutable(); err != nil {
		return err
	}
	owner := "complex type mapping"
	if len(m.types) > 0 {
		owner = m.types[0].FullName()
	} else if len(m.isOfTypes) > 0 {
		owner = m.isOfTypes[0].FullName()
	}
	added, err := m.conditions.add(owner, c, onDuplicate)
	if added {
		c.parent = m
	}
	return err
}

// Properties returns the non-condition property mappings.
func (m *ComplexTypeMapping) Properties() []PropertyMapping { return m.properties }

// Conditions returns the condition mappings.
func (m *ComplexTypeMapping) Conditions() []*ConditionPropertyMapping { return m.conditions.list }

// Accept implements Node.
func (m *ComplexTypeMapping) Accept(v Visitor) { v.VisitComplexTypeMapping(m) }

func (*ComplexTypeMapping) node() {}
