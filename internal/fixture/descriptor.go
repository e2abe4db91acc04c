// Package fixture loads mapping descriptors: YAML documents declaring a
// conceptual model, a storage model and the mapping between them.
package fixture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syssam/csmap/mapping"
)

// Descriptor is the root of a mapping descriptor.
type Descriptor struct {
	// Name is the conceptual container name.
	Name string `yaml:"name"`
	// Namespace of the conceptual types. Defaults to Name.
	Namespace           string `yaml:"namespace"`
	GenerateUpdateViews *bool  `yaml:"generateUpdateViews"`
	// ColumnNaming selects the default result column of a function import
	// member: "member" (default) or "snake".
	ColumnNaming    string               `yaml:"columnNaming"`
	Types           []TypeDesc           `yaml:"types"`
	Sets            []SetDesc            `yaml:"sets"`
	Associations    []AssociationDesc    `yaml:"associations"`
	Storage         StorageDesc          `yaml:"storage"`
	Mappings        []SetMappingDesc     `yaml:"mappings"`
	FunctionImports []FunctionImportDesc `yaml:"functionImports"`
}

// TypeDesc declares an entity type, or a complex type when Complex is set.
type TypeDesc struct {
	Name       string         `yaml:"name"`
	Base       string         `yaml:"base"`
	Abstract   bool           `yaml:"abstract"`
	Complex    bool           `yaml:"complex"`
	Key        []string       `yaml:"key"`
	Properties []PropertyDesc `yaml:"properties"`
}

// PropertyDesc declares a property or a column. Type is a primitive name
// or, for conceptual properties, a complex type name.
type PropertyDesc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// SetDesc declares a conceptual entity set.
type SetDesc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// AssociationDesc declares a conceptual association type and its set.
type AssociationDesc struct {
	Name string    `yaml:"name"`
	Ends []EndDesc `yaml:"ends"`
}

// EndDesc declares an association end bound to an entity set.
type EndDesc struct {
	Role         string `yaml:"role"`
	Type         string `yaml:"type"`
	Set          string `yaml:"set"`
	Multiplicity string `yaml:"multiplicity"`
}

// StorageDesc declares the storage container.
type StorageDesc struct {
	Name      string      `yaml:"name"`
	Namespace string      `yaml:"namespace"`
	Tables    []TableDesc `yaml:"tables"`
}

// TableDesc declares a table.
type TableDesc struct {
	Name        string           `yaml:"name"`
	Schema      string           `yaml:"schema"`
	Key         []string         `yaml:"key"`
	Columns     []PropertyDesc   `yaml:"columns"`
	ForeignKeys []ForeignKeyDesc `yaml:"foreignKeys"`
}

// ForeignKeyDesc declares Columns of the enclosing table referencing
// RefColumns of table References.
type ForeignKeyDesc struct {
	Name       string   `yaml:"name"`
	Columns    []string `yaml:"columns"`
	References string   `yaml:"references"`
	RefColumns []string `yaml:"refColumns"`
}

// Pos is the position of a descriptor node in its document.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) location(file string) mapping.SourceLocation {
	return mapping.SourceLocation{File: file, Line: p.Line, Column: p.Column}
}

func decodeAt[T any](n *yaml.Node, v *T, pos *Pos) error {
	if err := n.Decode(v); err != nil {
		return err
	}
	*pos = Pos{Line: n.Line, Column: n.Column}
	return nil
}

// SetMappingDesc maps a conceptual set. Table names the store table of an
// association set.
type SetMappingDesc struct {
	Set          string            `yaml:"set"`
	Table        string            `yaml:"table"`
	QueryView    string            `yaml:"queryView"`
	TypeMappings []TypeMappingDesc `yaml:"typeMappings"`
	Pos          Pos               `yaml:"-"`
}

// UnmarshalYAML records the position of the node.
func (d *SetMappingDesc) UnmarshalYAML(n *yaml.Node) error {
	type plain SetMappingDesc
	return decodeAt(n, (*plain)(d), &d.Pos)
}

// TypeMappingDesc maps exact and hierarchy types through fragments.
type TypeMappingDesc struct {
	Types     []string       `yaml:"types"`
	IsOf      []string       `yaml:"isOf"`
	Fragments []FragmentDesc `yaml:"fragments"`
	Pos       Pos            `yaml:"-"`
}

// UnmarshalYAML records the position of the node.
func (d *TypeMappingDesc) UnmarshalYAML(n *yaml.Node) error {
	type plain TypeMappingDesc
	return decodeAt(n, (*plain)(d), &d.Pos)
}

// FragmentDesc maps members onto the columns of one table.
type FragmentDesc struct {
	Table      string                `yaml:"table"`
	Distinct   bool                  `yaml:"distinct"`
	Properties []PropertyMappingDesc `yaml:"properties"`
	Conditions []ConditionDesc       `yaml:"conditions"`
	Pos        Pos                   `yaml:"-"`
}

// UnmarshalYAML records the position of the node.
func (d *FragmentDesc) UnmarshalYAML(n *yaml.Node) error {
	type plain FragmentDesc
	return decodeAt(n, (*plain)(d), &d.Pos)
}

// PropertyMappingDesc is one of: a scalar mapping (Name, Column), a complex
// mapping (Name, Complex) or an end mapping (End, Properties).
type PropertyMappingDesc struct {
	Name       string                `yaml:"name"`
	Column     string                `yaml:"column"`
	Complex    []ComplexMappingDesc  `yaml:"complex"`
	End        string                `yaml:"end"`
	Properties []PropertyMappingDesc `yaml:"properties"`
}

// ComplexMappingDesc maps complex types within a complex property. Types
// default to the property type.
type ComplexMappingDesc struct {
	Types      []string              `yaml:"types"`
	IsOf       []string              `yaml:"isOf"`
	Properties []PropertyMappingDesc `yaml:"properties"`
	Conditions []ConditionDesc       `yaml:"conditions"`
	Pos        Pos                   `yaml:"-"`
}

// UnmarshalYAML records the position of the node.
func (d *ComplexMappingDesc) UnmarshalYAML(n *yaml.Node) error {
	type plain ComplexMappingDesc
	return decodeAt(n, (*plain)(d), &d.Pos)
}

// ConditionDesc is a value condition, or an is-null condition when IsNull
// is set. Exactly one of Property and Column names the member.
type ConditionDesc struct {
	Property string `yaml:"property"`
	Column   string `yaml:"column"`
	Value    any    `yaml:"value"`
	IsNull   *bool  `yaml:"isNull"`
	Pos      Pos    `yaml:"-"`
}

// UnmarshalYAML records the position of the node.
func (d *ConditionDesc) UnmarshalYAML(n *yaml.Node) error {
	type plain ConditionDesc
	return decodeAt(n, (*plain)(d), &d.Pos)
}

// FunctionImportDesc declares a function import and maps it onto the store
// function Target.
type FunctionImportDesc struct {
	Name    string       `yaml:"name"`
	Target  string       `yaml:"target"`
	Results []ResultDesc `yaml:"results"`
	Pos     Pos          `yaml:"-"`
}

// UnmarshalYAML records the position of the node.
func (d *FunctionImportDesc) UnmarshalYAML(n *yaml.Node) error {
	type plain FunctionImportDesc
	return decodeAt(n, (*plain)(d), &d.Pos)
}

// ResultDesc declares a result set returning a collection of Returns.
type ResultDesc struct {
	Returns  string              `yaml:"returns"`
	Set      string              `yaml:"set"`
	Mappings []ResultMappingDesc `yaml:"mappings"`
}

// ResultMappingDesc maps result rows onto entity types, or onto the complex
// type Complex.
type ResultMappingDesc struct {
	Types      []string        `yaml:"types"`
	IsOf       []string        `yaml:"isOf"`
	Complex    string          `yaml:"complex"`
	Conditions []ConditionDesc `yaml:"conditions"`
	Renames    []RenameDesc    `yaml:"renames"`
	Pos        Pos             `yaml:"-"`
}

// UnmarshalYAML records the position of the node.
func (d *ResultMappingDesc) UnmarshalYAML(n *yaml.Node) error {
	type plain ResultMappingDesc
	return decodeAt(n, (*plain)(d), &d.Pos)
}

// RenameDesc reads Member from Column.
type RenameDesc struct {
	Member string `yaml:"member"`
	Column string `yaml:"column"`
	Pos    Pos    `yaml:"-"`
}

// UnmarshalYAML records the position of the node.
func (d *RenameDesc) UnmarshalYAML(n *yaml.Node) error {
	type plain RenameDesc
	return decodeAt(n, (*plain)(d), &d.Pos)
}

// Load reads the descriptor at path and builds its container mapping.
func Load(path string) (*mapping.ContainerMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping descriptor %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes a descriptor and builds its container mapping. file is
// recorded in source locations.
func Parse(data []byte, file string) (*mapping.ContainerMapping, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse mapping descriptor %s: %w", file, err)
	}
	return Build(&d, file)
}
