package signature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
	"github.com/syssam/csmap/signature"
)

type options struct {
	kind      string
	location  mapping.SourceLocation
	queryView string
	nullable  bool
}

// build returns a fresh TPH mapping of Person and Employee over people.
func build(t *testing.T, o options) *mapping.ContainerMapping {
	t.Helper()
	person := &metadata.EntityType{
		Name:       "Person",
		Namespace:  "Model",
		KeyMembers: []string{"ID"},
		Properties: []*metadata.EdmProperty{
			metadata.NewProperty("ID", metadata.Primitive(metadata.Int32), false),
			metadata.NewProperty("Name", metadata.Primitive(metadata.String), o.nullable),
		},
	}
	employee := &metadata.EntityType{Name: "Employee", Namespace: "Model", Base: person}
	people := &metadata.EntitySet{Name: "People", EntityType: person}
	conceptual := metadata.NewEntityContainer("Model")
	require.NoError(t, conceptual.AddSet(people))

	idCol := metadata.NewProperty("id", metadata.Primitive(metadata.Int32), false)
	nameCol := metadata.NewProperty("name", metadata.Primitive(metadata.String), true)
	kindCol := metadata.NewProperty("kind", metadata.Primitive(metadata.String), false)
	table := &metadata.EntitySet{Name: "people", EntityType: &metadata.EntityType{
		Name: "people", Namespace: "Store", Properties: []*metadata.EdmProperty{idCol, nameCol, kindCol},
	}}
	storage := metadata.NewEntityContainer("Store")
	require.NoError(t, storage.AddSet(table))

	cm := mapping.NewContainerMapping(conceptual, storage, metadata.NewItemCollection(person, employee))
	cm.Location = o.location
	sm := mapping.NewEntitySetMapping(people)
	if o.queryView != "" {
		require.NoError(t, sm.SetQueryView(o.queryView))
	}
	for _, c := range []struct {
		typ  *metadata.EntityType
		kind string
	}{{person, "P"}, {employee, o.kind}} {
		tm := mapping.NewEntityTypeMapping()
		require.NoError(t, tm.AddType(c.typ))
		f := mapping.NewMappingFragment(table)
		f.Location = o.location
		require.NoError(t, f.AddProperty(mapping.NewScalarPropertyMapping(person.Properties[0], idCol)))
		require.NoError(t, f.AddProperty(mapping.NewScalarPropertyMapping(person.Properties[1], nameCol)))
		require.NoError(t, f.AddConditionProperty(mapping.NewValueCondition(nil, kindCol, c.kind), nil))
		require.NoError(t, tm.AddFragment(f))
		require.NoError(t, sm.AddTypeMapping(tm))
	}
	require.NoError(t, cm.AddSetMapping(sm))

	fn := &metadata.EdmFunction{Name: "GetPeople", Namespace: "Model", ReturnParameters: []*metadata.FunctionParameter{
		{TypeUsage: metadata.Usage(&metadata.CollectionType{Element: metadata.Usage(person)})},
	}}
	fim := mapping.NewFunctionImportMapping(fn, &metadata.EdmFunction{Name: "get_people", Namespace: "Store"})
	em := mapping.NewFunctionImportEntityTypeMapping([]*metadata.EntityType{employee}, nil,
		mapping.ColumnRename{Member: "Name", Column: "emp_name", Location: o.location})
	require.NoError(t, em.AddCondition(mapping.NewConditionValue("kind", o.kind), nil))
	require.NoError(t, fim.AddResultMapping(em))
	require.NoError(t, cm.AddFunctionImportMapping(fim))
	return cm
}

func TestCompute(t *testing.T) {
	base := options{kind: "E"}
	sig, err := signature.Compute(build(t, base))
	require.NoError(t, err)
	assert.False(t, sig.IsZero())

	t.Run("Stable", func(t *testing.T) {
		again, err := signature.Compute(build(t, base))
		require.NoError(t, err)
		assert.Equal(t, sig, again)
		assert.Equal(t, sig.Version(), again.Version())
	})

	t.Run("IgnoresLocations", func(t *testing.T) {
		moved := base
		moved.location = mapping.SourceLocation{File: "model.yaml", Line: 10, Column: 2}
		assert.Equal(t, sig, signature.MustCompute(build(t, moved)))
	})

	tests := []struct {
		name string
		opts options
	}{
		{"Condition", options{kind: "X"}},
		{"QueryView", options{kind: "E", queryView: "SELECT VALUE p FROM people AS p"}},
		{"Nullable", options{kind: "E", nullable: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other, err := signature.Compute(build(t, tt.opts))
			require.NoError(t, err)
			assert.NotEqual(t, sig, other)
			assert.NotEqual(t, sig.Version(), other.Version())
		})
	}
}

func TestSignatureText(t *testing.T) {
	sig := signature.MustCompute(build(t, options{kind: "E"}))
	assert.Len(t, sig.String(), 32)
	parsed, err := signature.Parse(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)

	_, err = signature.Parse("abc")
	assert.Error(t, err)
	_, err = signature.Parse("abcd")
	assert.Error(t, err)

	v := sig.Version()
	assert.Equal(t, 5, int(v.Version()))
}
