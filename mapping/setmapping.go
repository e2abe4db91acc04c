package mapping

import (
	"github.com/syssam/csmap"
	"github.com/syssam/csmap/metadata"
)

// SetMapping is implemented by EntitySetMapping and AssociationSetMapping.
type SetMapping interface {
	Node
	// Set returns the mapped conceptual set.
	Set() metadata.EntitySetBase
	// Parent returns the owning container mapping.
	Parent() *ContainerMapping
	TypeMappings() []TypeMapping
	QueryView() string
	HasQueryView() bool
	TypeQueryView(TypeQueryViewKey) (string, bool)
	TypeQueryViewKeys() []TypeQueryViewKey
	setParent(*ContainerMapping)
}

// TypeQueryViewKey identifies a type-specific query view.
type TypeQueryViewKey struct {
	Set             *metadata.EntitySet
	Type            *metadata.EntityType
	IncludeSubtypes bool
}

type setMapping struct {
	state
	Location SourceLocation

	parent       *ContainerMapping
	typeMappings []TypeMapping
	queryView    string
	typeViews    map[TypeQueryViewKey]string
	typeViewKeys []TypeQueryViewKey
}

func (s *setMapping) addTypeMapping(self SetMapping, tm TypeMapping) error {
	if err := s.mutable(); err != nil {
		return err
	}
	tm.setParent(self)
	s.typeMappings = append(s.typeMappings, tm)
	return nil
}

// Parent returns the owning container mapping.
func (s *setMapping) Parent() *ContainerMapping { return s.parent }

// TypeMappings returns the type mappings in document order.
func (s *setMapping) TypeMappings() []TypeMapping { return s.typeMappings }

// QueryView returns the hand-authored query view, if any.
func (s *setMapping) QueryView() string { return s.queryView }

// HasQueryView reports whether a hand-authored query view is present.
func (s *setMapping) HasQueryView() bool { return s.queryView != "" }

// SetQueryView sets the hand-authored query view.
func (s *setMapping) SetQueryView(view string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.queryView = view
	return nil
}

// AddTypeQueryView registers a type-specific query view. A key can be
// registered once.
func (s *setMapping) AddTypeQueryView(key TypeQueryViewKey, view string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.typeViews == nil {
		s.typeViews = make(map[TypeQueryViewKey]string)
	}
	if _, ok := s.typeViews[key]; ok {
		name := ""
		if key.Type != nil {
			name = key.Type.FullName()
		}
		if key.IncludeSubtypes {
			name = "IsTypeOf(" + name + ")"
		}
		return csmap.NewDuplicateMappingError("type query view", name)
	}
	s.typeViews[key] = view
	s.typeViewKeys = append(s.typeViewKeys, key)
	return nil
}

// TypeQueryView returns the type-specific query view for key.
func (s *setMapping) TypeQueryView(key TypeQueryViewKey) (string, bool) {
	v, ok := s.typeViews[key]
	return v, ok
}

// TypeQueryViewKeys returns the type-specific query view keys in
// registration order.
func (s *setMapping) TypeQueryViewKeys() []TypeQueryViewKey { return s.typeViewKeys }

func (s *setMapping) setParent(cm *ContainerMapping) { s.parent = cm }

// EntitySetMapping maps a conceptual entity set.
type EntitySetMapping struct {
	setMapping
	EntitySet *metadata.EntitySet
}

// NewEntitySetMapping returns an empty mapping of set.
func NewEntitySetMapping(set *metadata.EntitySet) *EntitySetMapping {
	return &EntitySetMapping{EntitySet: set}
}

// Set implements SetMapping.
func (m *EntitySetMapping) Set() metadata.EntitySetBase { return m.EntitySet }

// AddTypeMapping appends an entity type mapping.
func (m *EntitySetMapping) AddTypeMapping(tm *EntityTypeMapping) error {
	return m.addTypeMapping(m, tm)
}

// EntityTypeMappings returns the entity type mappings in document order.
func (m *EntitySetMapping) EntityTypeMappings() []*EntityTypeMapping {
	out := make([]*EntityTypeMapping, 0, len(m.typeMappings))
	for _, tm := range m.typeMappings {
		out = append(out, tm.(*EntityTypeMapping))
	}
	return out
}

// Accept implements Node.
func (m *EntitySetMapping) Accept(v Visitor) { v.VisitEntitySetMapping(m) }

func (*EntitySetMapping) node() {}

// AssociationSetMapping maps a conceptual association set.
type AssociationSetMapping struct {
	setMapping
	AssociationSet *metadata.AssociationSet
	// StoreEntitySet is the table holding the association, if any.
	StoreEntitySet *metadata.EntitySet
}

// NewAssociationSetMapping returns an empty mapping of set stored in table.
func NewAssociationSetMapping(set *metadata.AssociationSet, table *metadata.EntitySet) *AssociationSetMapping {
	return &AssociationSetMapping{AssociationSet: set, StoreEntitySet: table}
}

// Set implements SetMapping.
func (m *AssociationSetMapping) Set() metadata.EntitySetBase { return m.AssociationSet }

// AddTypeMapping appends an association type mapping.
func (m *AssociationSetMapping) AddTypeMapping(tm *AssociationTypeMapping) error {
	return m.addTypeMapping(m, tm)
}

// Accept implements Node.
func (m *AssociationSetMapping) Accept(v Visitor) { v.VisitAssociationSetMapping(m) }

func (*AssociationSetMapping) node() {}
