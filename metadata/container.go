package metadata

import "github.com/syssam/csmap"

// EntitySetBase is implemented by entity and association sets. It is a
// switching node: consumers route on Kind().
type EntitySetBase interface {
	Item
	SetName() string
	ElementType() EdmType
}

// EntitySet is a set of entities. In a storage container it is a table.
type EntitySet struct {
	Name       string
	EntityType *EntityType
	Schema     string
	Table      string
}

// Kind implements Item.
func (*EntitySet) Kind() Kind { return KindEntitySet }

// SetName implements EntitySetBase.
func (s *EntitySet) SetName() string { return s.Name }

// ElementType implements EntitySetBase.
func (s *EntitySet) ElementType() EdmType {
	if s.EntityType == nil {
		return nil
	}
	return s.EntityType
}

// TableName returns the storage table name, defaulting to the set name.
func (s *EntitySet) TableName() string {
	if s.Table != "" {
		return s.Table
	}
	return s.Name
}

// AssociationSet is a set of association instances. In a storage container
// it is a foreign key.
type AssociationSet struct {
	Name            string
	AssociationType *AssociationType
	Ends            []*AssociationSetEnd
}

// Kind implements Item.
func (*AssociationSet) Kind() Kind { return KindAssociationSet }

// SetName implements EntitySetBase.
func (s *AssociationSet) SetName() string { return s.Name }

// ElementType implements EntitySetBase.
func (s *AssociationSet) ElementType() EdmType {
	if s.AssociationType == nil {
		return nil
	}
	return s.AssociationType
}

// End returns the set end playing the given role, or nil.
func (s *AssociationSet) End(role *AssociationEndMember) *AssociationSetEnd {
	for _, e := range s.Ends {
		if e.Role == role {
			return e
		}
	}
	return nil
}

// AssociationSetEnd binds an association role to an entity set.
type AssociationSetEnd struct {
	Role      *AssociationEndMember
	EntitySet *EntitySet
}

// Kind implements Item.
func (*AssociationSetEnd) Kind() Kind { return KindAssociationSetEnd }

// EntityContainer is a named collection of sets and function imports.
type EntityContainer struct {
	Name            string
	Sets            []EntitySetBase
	FunctionImports []*EdmFunction

	byName map[string]EntitySetBase
}

// NewEntityContainer returns an empty container.
func NewEntityContainer(name string) *EntityContainer {
	return &EntityContainer{Name: name, byName: make(map[string]EntitySetBase)}
}

// Kind implements Item.
func (*EntityContainer) Kind() Kind { return KindEntityContainer }

// AddSet appends a set. Set names are unique within a container.
func (c *EntityContainer) AddSet(s EntitySetBase) error {
	if c.byName == nil {
		c.byName = make(map[string]EntitySetBase)
	}
	if _, ok := c.byName[s.SetName()]; ok {
		return csmap.NewDuplicateMappingError("set", s.SetName())
	}
	c.byName[s.SetName()] = s
	c.Sets = append(c.Sets, s)
	return nil
}

// AddFunctionImport appends a function import.
func (c *EntityContainer) AddFunctionImport(f *EdmFunction) {
	c.FunctionImports = append(c.FunctionImports, f)
}

// Set returns the set with the given name, or nil.
func (c *EntityContainer) Set(name string) EntitySetBase {
	return c.byName[name]
}

// EntitySet returns the entity set with the given name, or nil.
func (c *EntityContainer) EntitySet(name string) *EntitySet {
	s, _ := c.byName[name].(*EntitySet)
	return s
}

// FunctionImport returns the function import with the given name, or nil.
func (c *EntityContainer) FunctionImport(name string) *EdmFunction {
	for _, f := range c.FunctionImports {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// EntitySets returns the entity sets in declaration order.
func (c *EntityContainer) EntitySets() []*EntitySet {
	var sets []*EntitySet
	for _, s := range c.Sets {
		if es, ok := s.(*EntitySet); ok {
			sets = append(sets, es)
		}
	}
	return sets
}

// AssociationSets returns the association sets in declaration order.
func (c *EntityContainer) AssociationSets() []*AssociationSet {
	var sets []*AssociationSet
	for _, s := range c.Sets {
		if as, ok := s.(*AssociationSet); ok {
			sets = append(sets, as)
		}
	}
	return sets
}

// ParameterMode is the direction of a function parameter.
type ParameterMode uint8

// Parameter modes.
const (
	In ParameterMode = iota
	Out
	InOut
	ReturnValue
)

// FunctionParameter is a parameter or return value of a function.
type FunctionParameter struct {
	Name      string
	TypeUsage *TypeUsage
	Mode      ParameterMode
}

// Kind implements Item.
func (*FunctionParameter) Kind() Kind { return KindFunctionParameter }

// EdmFunction is a conceptual function import or a storage function.
// A function import has one return parameter and one entity set per
// result set.
type EdmFunction struct {
	Name             string
	Namespace        string
	Parameters       []*FunctionParameter
	ReturnParameters []*FunctionParameter
	EntitySets       []*EntitySet
	Composable       bool
}

// Kind implements Item.
func (*EdmFunction) Kind() Kind { return KindEdmFunction }

// FullName returns the namespace qualified name.
func (f *EdmFunction) FullName() string { return fullName(f.Namespace, f.Name) }

// ResultSets returns the number of result sets.
func (f *EdmFunction) ResultSets() int { return len(f.ReturnParameters) }

// ReturnType returns the element type of result set i, unwrapping a
// collection, or nil.
func (f *EdmFunction) ReturnType(i int) EdmType {
	if i < 0 || i >= len(f.ReturnParameters) {
		return nil
	}
	u := f.ReturnParameters[i].TypeUsage
	if u == nil {
		return nil
	}
	if c, ok := u.Type.(*CollectionType); ok && c.Element != nil {
		return c.Element.Type
	}
	return u.Type
}

// EntitySetAt returns the entity set of result set i, or nil.
func (f *EdmFunction) EntitySetAt(i int) *EntitySet {
	if i < 0 || i >= len(f.EntitySets) {
		return nil
	}
	return f.EntitySets[i]
}
