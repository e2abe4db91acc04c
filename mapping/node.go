// Package mapping models C-S mapping metadata: how conceptual entity and
// association sets map onto storage tables and columns. A mapping is
// accumulated through the Add methods, frozen, and read concurrently after.
package mapping

import (
	"fmt"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/metadata"
)

// Node is implemented by every mapping node kind. The set of kinds is
// closed; every kind has a Visit method on Visitor.
type Node interface {
	Accept(Visitor)
	node()
}

// SourceLocation locates a node in the document it was loaded from.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// IsZero reports whether the location is unset.
func (l SourceLocation) IsZero() bool {
	return l == SourceLocation{}
}

// String returns file:line:column.
func (l SourceLocation) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// state is embedded in every node to end the build phase.
type state struct {
	frozen bool
}

func (s *state) mutable() error {
	if s.frozen {
		return csmap.ErrFrozen
	}
	return nil
}

// ContainerMapping maps one conceptual entity container onto one storage
// entity container. It is the root of a mapping document.
type ContainerMapping struct {
	state
	Conceptual *metadata.EntityContainer
	Storage    *metadata.EntityContainer
	// Items holds the conceptual types; used for hierarchy expansion.
	Items *metadata.ItemCollection
	// Validate enables validation of the loaded mapping.
	Validate bool
	// GenerateUpdateViews enables update view generation.
	GenerateUpdateViews bool
	Location            SourceLocation

	setMappings     []SetMapping
	setByName       map[string]SetMapping
	functionImports []*FunctionImportMapping
	columnFragments map[*metadata.EdmProperty][]*MappingFragment
}

// NewContainerMapping returns an empty container mapping.
func NewContainerMapping(conceptual, storage *metadata.EntityContainer, items *metadata.ItemCollection) *ContainerMapping {
	if items == nil {
		items = metadata.NewItemCollection()
	}
	return &ContainerMapping{
		Conceptual:          conceptual,
		Storage:             storage,
		Items:               items,
		Validate:            true,
		GenerateUpdateViews: true,
		setByName:           make(map[string]SetMapping),
	}
}

// Identity returns the mapped conceptual container name.
func (cm *ContainerMapping) Identity() string {
	if cm.Conceptual == nil {
		return ""
	}
	return cm.Conceptual.Name
}

// AddSetMapping appends a set mapping. One mapping per set.
func (cm *ContainerMapping) AddSetMapping(sm SetMapping) error {
	if err := cm.mutable(); err != nil {
		return err
	}
	name := sm.Set().SetName()
	if _, ok := cm.setByName[name]; ok {
		return csmap.NewDuplicateMappingError("set mapping", name)
	}
	sm.setParent(cm)
	cm.setByName[name] = sm
	cm.setMappings = append(cm.setMappings, sm)
	return nil
}

// AddFunctionImportMapping appends a function import mapping.
func (cm *ContainerMapping) AddFunctionImportMapping(m *FunctionImportMapping) error {
	if err := cm.mutable(); err != nil {
		return err
	}
	for _, fm := range cm.functionImports {
		if fm.FunctionImport == m.FunctionImport {
			return csmap.NewDuplicateMappingError("function import mapping", m.FunctionImport.FullName())
		}
	}
	m.parent = cm
	cm.functionImports = append(cm.functionImports, m)
	return nil
}

// SetMappings returns the set mappings in document order.
func (cm *ContainerMapping) SetMappings() []SetMapping { return cm.setMappings }

// EntitySetMappings returns the entity set mappings in document order.
func (cm *ContainerMapping) EntitySetMappings() []*EntitySetMapping {
	var out []*EntitySetMapping
	for _, sm := range cm.setMappings {
		if m, ok := sm.(*EntitySetMapping); ok {
			out = append(out, m)
		}
	}
	return out
}

// AssociationSetMappings returns the association set mappings in document order.
func (cm *ContainerMapping) AssociationSetMappings() []*AssociationSetMapping {
	var out []*AssociationSetMapping
	for _, sm := range cm.setMappings {
		if m, ok := sm.(*AssociationSetMapping); ok {
			out = append(out, m)
		}
	}
	return out
}

// SetMapping returns the mapping of the named set, or nil.
func (cm *ContainerMapping) SetMapping(name string) SetMapping {
	return cm.setByName[name]
}

// FunctionImportMappings returns the function import mappings in document order.
func (cm *ContainerMapping) FunctionImportMappings() []*FunctionImportMapping {
	return cm.functionImports
}

// FunctionImportMapping returns the mapping of the named function import, or nil.
func (cm *ContainerMapping) FunctionImportMapping(name string) *FunctionImportMapping {
	for _, m := range cm.functionImports {
		if m.FunctionImport.Name == name || m.FunctionImport.FullName() == name {
			return m
		}
	}
	return nil
}

// HasQueryViews reports whether any set mapping carries a query view.
func (cm *ContainerMapping) HasQueryViews() bool {
	for _, sm := range cm.setMappings {
		if sm.HasQueryView() {
			return true
		}
	}
	return false
}

// Frozen reports whether Freeze was called.
func (cm *ContainerMapping) Frozen() bool { return cm.frozen }

// Freeze ends the build phase. Every node reachable from cm rejects further
// mutation with csmap.ErrFrozen. Freeze is idempotent and must not run
// concurrently with the build phase.
func (cm *ContainerMapping) Freeze() {
	if cm.frozen {
		return
	}
	f := &freezer{columns: make(map[*metadata.EdmProperty][]*MappingFragment)}
	f.Walker = NewWalker(f)
	f.VisitContainerMapping(cm)
	cm.columnFragments = f.columns
}

// FragmentsOf returns the fragments mapping the given storage column, in
// document order. It is populated by Freeze.
func (cm *ContainerMapping) FragmentsOf(column *metadata.EdmProperty) []*MappingFragment {
	return cm.columnFragments[column]
}

// Accept implements Node.
func (cm *ContainerMapping) Accept(v Visitor) { v.VisitContainerMapping(cm) }

func (*ContainerMapping) node() {}
