package fixture_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/internal/fixture"
	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
	"github.com/syssam/csmap/viewgen"
)

func TestLoad(t *testing.T) {
	cm, err := fixture.Load("testdata/people.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Model", cm.Identity())
	assert.Equal(t, "testdata/people.yaml", cm.Location.File)

	person := cm.Items.EntityType("Model.Person")
	employee := cm.Items.EntityType("Model.Employee")
	require.NotNil(t, person)
	require.NotNil(t, employee)
	assert.Same(t, person, employee.Base)
	home := person.Property("Home")
	require.NotNil(t, home)
	assert.IsType(t, &metadata.ComplexType{}, home.Type())

	people := cm.Storage.EntitySet("people")
	require.NotNil(t, people)
	assert.Equal(t, "dbo", people.Schema)
	assert.Equal(t, "Model.Store.people", people.EntityType.FullName())

	sm, ok := cm.SetMapping("People").(*mapping.EntitySetMapping)
	require.True(t, ok)
	require.Len(t, sm.EntityTypeMappings(), 3)
	f := sm.EntityTypeMappings()[0].Fragments()[0]
	assert.Same(t, people, f.Table)
	assert.Equal(t, 68, f.Location.Line)
	require.Len(t, f.Conditions(), 1)
	assert.Equal(t, "P", f.Conditions()[0].Value)
	assert.Equal(t, "kind = P", f.Conditions()[0].String())

	asm, ok := cm.SetMapping("PersonOrders").(*mapping.AssociationSetMapping)
	require.True(t, ok)
	assert.Equal(t, "orders", asm.StoreEntitySet.Name)

	assert.False(t, mapping.Validate(cm, mapping.ValidateAmbiguity()).HasErrors())
}

func TestLoadFunctionImports(t *testing.T) {
	cm, err := fixture.Load("testdata/people.yaml")
	require.NoError(t, err)
	cm.Freeze()

	fim := cm.FunctionImportMapping("GetPeople")
	require.NotNil(t, fim)
	assert.Equal(t, "get_people", fim.TargetFunction.Name)
	kb, err := fim.KB(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"kind"}, kb.DiscriminatorColumns)

	employee := cm.Items.EntityType("Model.Employee")
	got, err := fim.Discriminate([]any{"E"}, 0)
	require.NoError(t, err)
	assert.Same(t, employee, got)
	_, err = fim.Discriminate([]any{"Z"}, 0)
	assert.True(t, csmap.IsAmbiguousType(err))

	assert.Equal(t, "emp_name", kb.ColumnName(employee, "Name"))
	assert.Equal(t, "name", kb.ColumnName(cm.Items.EntityType("Model.Person"), "Name"))
	assert.Equal(t, "salary", kb.ColumnName(employee, "Salary"))

	addresses := cm.FunctionImportMapping("GetAddresses")
	require.NotNil(t, addresses)
	akb, err := addresses.KB(0)
	require.NoError(t, err)
	address := cm.Items.ComplexType("Model.Address")
	assert.Equal(t, "postal_code", akb.ColumnName(address, "Zip"))
	assert.Equal(t, "city", akb.ColumnName(address, "City"))
}

func TestLoadCellGroups(t *testing.T) {
	cm, err := fixture.Load("testdata/people.yaml")
	require.NoError(t, err)
	cm.Freeze()
	cfg, err := viewgen.NewConfig()
	require.NoError(t, err)
	out, err := viewgen.NewCache().GetCellgroups(cm, cfg)
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Len(t, out.ForeignKeyConstraints, 1)
	assert.Equal(t, "orders(owner_id) -> people(id)", out.ForeignKeyConstraints[0].String())
	// People and Orders are connected through the foreign key and through
	// PersonOrders, which is stored in orders.
	require.Len(t, out.CellGroups, 1)
	assert.Len(t, out.Cells, 5)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "Syntax",
			doc:  "name: [",
			want: "failed to parse mapping descriptor",
		},
		{
			name: "UnknownPropertyType",
			doc: `
name: M
types:
  - name: A
    properties:
      - {name: X, type: Widget}
`,
			want: `property A.X: unknown type "Widget"`,
		},
		{
			name: "UnknownSetType",
			doc: `
name: M
sets:
  - {name: As, type: A}
`,
			want: `entity set As: unknown entity type "A"`,
		},
		{
			name: "UnknownColumn",
			doc: `
name: M
types:
  - name: A
    properties:
      - {name: ID, type: Int32}
sets:
  - {name: As, type: A}
storage:
  tables:
    - name: a
      columns:
        - {name: id, type: Int32}
mappings:
  - set: As
    typeMappings:
      - types: [A]
        fragments:
          - table: a
            properties:
              - {name: ID, column: ident}
`,
			want: "doc.yaml:15:5: doc.yaml:19:13: unknown column a.ident",
		},
		{
			name: "DuplicateCondition",
			doc: `
name: M
types:
  - name: A
sets:
  - {name: As, type: A}
functionImports:
  - name: GetAs
    results:
      - returns: A
        mappings:
          - types: [A]
            conditions:
              - {column: k, value: 1}
              - {column: k, value: 2}
`,
			want: "duplicate condition",
		},
		{
			name: "ColumnNaming",
			doc: `
name: M
columnNaming: kebab
`,
			want: `unknown column naming "kebab"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fixture.Parse([]byte(tt.doc), "doc.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	_, err := fixture.Load("testdata/missing.yaml")
	assert.Error(t, err)
}
