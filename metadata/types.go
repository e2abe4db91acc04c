package metadata

// EdmType is implemented by every type in the type system. It is a
// switching node: consumers route on Kind().
type EdmType interface {
	Item
	TypeName() string
	NamespaceName() string
	FullName() string
	// BaseType returns the direct base type, or nil for a root type.
	BaseType() EdmType
}

// StructuralType is a type with members.
type StructuralType interface {
	EdmType
	// Members returns inherited members first, then declared ones.
	Members() []EdmMember
}

// RelationshipType is a type that relates entity types through ends.
type RelationshipType interface {
	EdmType
	RelationshipEnds() []*AssociationEndMember
}

func fullName(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "." + name
}

// EntityType describes an entity with identity.
type EntityType struct {
	Name                 string
	Namespace            string
	Base                 *EntityType
	Abstract             bool
	KeyMembers           []string
	Properties           []*EdmProperty
	NavigationProperties []*NavigationProperty
}

// Kind implements Item.
func (*EntityType) Kind() Kind { return KindEntityType }

// TypeName implements EdmType.
func (t *EntityType) TypeName() string { return t.Name }

// NamespaceName implements EdmType.
func (t *EntityType) NamespaceName() string { return t.Namespace }

// FullName implements EdmType.
func (t *EntityType) FullName() string { return fullName(t.Namespace, t.Name) }

// BaseType implements EdmType.
func (t *EntityType) BaseType() EdmType {
	if t.Base == nil {
		return nil
	}
	return t.Base
}

// Members implements StructuralType.
func (t *EntityType) Members() []EdmMember {
	var members []EdmMember
	if t.Base != nil {
		members = t.Base.Members()
	}
	for _, p := range t.Properties {
		members = append(members, p)
	}
	for _, n := range t.NavigationProperties {
		members = append(members, n)
	}
	return members
}

// Property returns the property with the given name, including inherited
// ones, or nil.
func (t *EntityType) Property(name string) *EdmProperty {
	for c := t; c != nil; c = c.Base {
		for _, p := range c.Properties {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// ComplexType describes a structured value without identity.
type ComplexType struct {
	Name       string
	Namespace  string
	Base       *ComplexType
	Properties []*EdmProperty
}

// Kind implements Item.
func (*ComplexType) Kind() Kind { return KindComplexType }

// TypeName implements EdmType.
func (t *ComplexType) TypeName() string { return t.Name }

// NamespaceName implements EdmType.
func (t *ComplexType) NamespaceName() string { return t.Namespace }

// FullName implements EdmType.
func (t *ComplexType) FullName() string { return fullName(t.Namespace, t.Name) }

// BaseType implements EdmType.
func (t *ComplexType) BaseType() EdmType {
	if t.Base == nil {
		return nil
	}
	return t.Base
}

// Members implements StructuralType.
func (t *ComplexType) Members() []EdmMember {
	var members []EdmMember
	if t.Base != nil {
		members = t.Base.Members()
	}
	for _, p := range t.Properties {
		members = append(members, p)
	}
	return members
}

// AssociationType relates two entity types. Storage foreign keys are
// association types carrying a referential constraint.
type AssociationType struct {
	Name        string
	Namespace   string
	Ends        []*AssociationEndMember
	Constraints []*ReferentialConstraint
}

// Kind implements Item.
func (*AssociationType) Kind() Kind { return KindAssociationType }

// TypeName implements EdmType.
func (t *AssociationType) TypeName() string { return t.Name }

// NamespaceName implements EdmType.
func (t *AssociationType) NamespaceName() string { return t.Namespace }

// FullName implements EdmType.
func (t *AssociationType) FullName() string { return fullName(t.Namespace, t.Name) }

// BaseType implements EdmType.
func (*AssociationType) BaseType() EdmType { return nil }

// RelationshipEnds implements RelationshipType.
func (t *AssociationType) RelationshipEnds() []*AssociationEndMember { return t.Ends }

// End returns the end with the given role name, or nil.
func (t *AssociationType) End(name string) *AssociationEndMember {
	for _, e := range t.Ends {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// PrimitiveType is a scalar type.
type PrimitiveType struct {
	Name          string
	Namespace     string
	PrimitiveKind PrimitiveKind
}

// Kind implements Item.
func (*PrimitiveType) Kind() Kind { return KindPrimitiveType }

// TypeName implements EdmType.
func (t *PrimitiveType) TypeName() string { return t.Name }

// NamespaceName implements EdmType.
func (t *PrimitiveType) NamespaceName() string { return t.Namespace }

// FullName implements EdmType.
func (t *PrimitiveType) FullName() string { return fullName(t.Namespace, t.Name) }

// BaseType implements EdmType.
func (*PrimitiveType) BaseType() EdmType { return nil }

var primitives = func() []*PrimitiveType {
	ps := make([]*PrimitiveType, len(primitiveNames))
	for i, name := range primitiveNames {
		ps[i] = &PrimitiveType{Name: name, Namespace: "Edm", PrimitiveKind: PrimitiveKind(i)}
	}
	return ps
}()

// Primitive returns the shared primitive type of the given kind.
func Primitive(k PrimitiveKind) *PrimitiveType {
	if int(k) < len(primitives) {
		return primitives[k]
	}
	return nil
}

// PrimitiveByName returns the shared primitive type with the given name
// ("Int32", "Edm.Int32"), or nil.
func PrimitiveByName(name string) *PrimitiveType {
	for _, p := range primitives {
		if p.Name == name || p.FullName() == name {
			return p
		}
	}
	return nil
}

// EnumType is a named set of integral constants.
type EnumType struct {
	Name       string
	Namespace  string
	Underlying *PrimitiveType
	Flags      bool
	Members    []*EnumMember
}

// Kind implements Item.
func (*EnumType) Kind() Kind { return KindEnumType }

// TypeName implements EdmType.
func (t *EnumType) TypeName() string { return t.Name }

// NamespaceName implements EdmType.
func (t *EnumType) NamespaceName() string { return t.Namespace }

// FullName implements EdmType.
func (t *EnumType) FullName() string { return fullName(t.Namespace, t.Name) }

// BaseType implements EdmType.
func (*EnumType) BaseType() EdmType { return nil }

// EnumMember is a named enum constant.
type EnumMember struct {
	Name  string
	Value int64
}

// Kind implements Item.
func (*EnumMember) Kind() Kind { return KindEnumMember }

// CollectionType is a multiset of elements.
type CollectionType struct {
	Element *TypeUsage
}

// Kind implements Item.
func (*CollectionType) Kind() Kind { return KindCollectionType }

// TypeName implements EdmType.
func (t *CollectionType) TypeName() string {
	if t.Element == nil || t.Element.Type == nil {
		return "Collection()"
	}
	return "Collection(" + t.Element.Type.FullName() + ")"
}

// NamespaceName implements EdmType.
func (*CollectionType) NamespaceName() string { return "" }

// FullName implements EdmType.
func (t *CollectionType) FullName() string { return t.TypeName() }

// BaseType implements EdmType.
func (*CollectionType) BaseType() EdmType { return nil }

// RowType is an anonymous structural type.
type RowType struct {
	Properties []*EdmProperty
}

// Kind implements Item.
func (*RowType) Kind() Kind { return KindRowType }

// TypeName implements EdmType.
func (*RowType) TypeName() string { return "Row" }

// NamespaceName implements EdmType.
func (*RowType) NamespaceName() string { return "" }

// FullName implements EdmType.
func (t *RowType) FullName() string { return t.TypeName() }

// BaseType implements EdmType.
func (*RowType) BaseType() EdmType { return nil }

// Members implements StructuralType.
func (t *RowType) Members() []EdmMember {
	members := make([]EdmMember, 0, len(t.Properties))
	for _, p := range t.Properties {
		members = append(members, p)
	}
	return members
}

// RefType is a reference to an entity.
type RefType struct {
	Element *EntityType
}

// Kind implements Item.
func (*RefType) Kind() Kind { return KindRefType }

// TypeName implements EdmType.
func (t *RefType) TypeName() string {
	if t.Element == nil {
		return "Ref()"
	}
	return "Ref(" + t.Element.FullName() + ")"
}

// NamespaceName implements EdmType.
func (*RefType) NamespaceName() string { return "" }

// FullName implements EdmType.
func (t *RefType) FullName() string { return t.TypeName() }

// BaseType implements EdmType.
func (*RefType) BaseType() EdmType { return nil }

// TypeUsage is a type together with its facets.
type TypeUsage struct {
	Type   EdmType
	Facets []*Facet
}

// Kind implements Item.
func (*TypeUsage) Kind() Kind { return KindTypeUsage }

// Facet returns the facet with the given name, or nil.
func (u *TypeUsage) Facet(name string) *Facet {
	for _, f := range u.Facets {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Usage returns a TypeUsage of t with the given facets.
func Usage(t EdmType, facets ...*Facet) *TypeUsage {
	return &TypeUsage{Type: t, Facets: facets}
}

// Facet is a named type refinement such as MaxLength or Nullable.
type Facet struct {
	Name  string
	Value any
}

// Kind implements Item.
func (*Facet) Kind() Kind { return KindFacet }

// IsAssignableFrom reports whether t is base or derives from it.
// Base chains are acyclic by contract.
func IsAssignableFrom(base, t EdmType) bool {
	if base == nil {
		return false
	}
	for c := t; c != nil; c = c.BaseType() {
		if c == base {
			return true
		}
	}
	return false
}
