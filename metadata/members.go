package metadata

// EdmMember is implemented by members of structural and relationship types.
// It is a switching node: consumers route on Kind().
type EdmMember interface {
	Item
	MemberName() string
}

// EdmProperty is a scalar, complex, or enum valued member.
type EdmProperty struct {
	Name      string
	TypeUsage *TypeUsage
	Nullable  bool
}

// Kind implements Item.
func (*EdmProperty) Kind() Kind { return KindEdmProperty }

// MemberName implements EdmMember.
func (p *EdmProperty) MemberName() string { return p.Name }

// Type returns the property type, or nil.
func (p *EdmProperty) Type() EdmType {
	if p.TypeUsage == nil {
		return nil
	}
	return p.TypeUsage.Type
}

// NewProperty returns a property of the given type.
func NewProperty(name string, t EdmType, nullable bool) *EdmProperty {
	return &EdmProperty{Name: name, TypeUsage: Usage(t), Nullable: nullable}
}

// NavigationProperty navigates an association from one end to the other.
type NavigationProperty struct {
	Name         string
	Relationship *AssociationType
	FromEnd      *AssociationEndMember
	ToEnd        *AssociationEndMember
}

// Kind implements Item.
func (*NavigationProperty) Kind() Kind { return KindNavigationProperty }

// MemberName implements EdmMember.
func (n *NavigationProperty) MemberName() string { return n.Name }

// Multiplicity of an association end.
type Multiplicity uint8

// Association end multiplicities.
const (
	One Multiplicity = iota
	ZeroOrOne
	Many
)

// String returns the multiplicity in mapping notation.
func (m Multiplicity) String() string {
	switch m {
	case One:
		return "1"
	case ZeroOrOne:
		return "0..1"
	default:
		return "*"
	}
}

// AssociationEndMember is one role of an association type.
type AssociationEndMember struct {
	Name         string
	EntityType   *EntityType
	Multiplicity Multiplicity
}

// Kind implements Item.
func (*AssociationEndMember) Kind() Kind { return KindAssociationEndMember }

// MemberName implements EdmMember.
func (e *AssociationEndMember) MemberName() string { return e.Name }

// ReferentialConstraint states that ToProperties of the dependent (child)
// end reference FromProperties of the principal (parent) end.
type ReferentialConstraint struct {
	FromRole       *AssociationEndMember
	ToRole         *AssociationEndMember
	FromProperties []*EdmProperty
	ToProperties   []*EdmProperty
}

// Kind implements Item.
func (*ReferentialConstraint) Kind() Kind { return KindReferentialConstraint }
