package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
)

// peopleModel is a TPH mapping: Person, Employee:Person and
// Customer:Person stored in one People table discriminated by Kind.
type peopleModel struct {
	person, employee, customer *metadata.EntityType
	people                     *metadata.EntitySet

	table                     *metadata.EntityType
	peopleTable               *metadata.EntitySet
	idCol, nameCol, kindCol   *metadata.EdmProperty
	orderTable                *metadata.EntitySet
	orderIDCol, orderOwnerCol *metadata.EdmProperty

	conceptual, storage *metadata.EntityContainer
	items               *metadata.ItemCollection
}

func newPeopleModel(t *testing.T) *peopleModel {
	t.Helper()
	m := &peopleModel{}
	m.person = &metadata.EntityType{
		Name:       "Person",
		Namespace:  "Model",
		KeyMembers: []string{"ID"},
		Properties: []*metadata.EdmProperty{
			metadata.NewProperty("ID", metadata.Primitive(metadata.Int32), false),
			metadata.NewProperty("Name", metadata.Primitive(metadata.String), true),
		},
	}
	m.employee = &metadata.EntityType{Name: "Employee", Namespace: "Model", Base: m.person}
	m.customer = &metadata.EntityType{Name: "Customer", Namespace: "Model", Base: m.person}
	m.people = &metadata.EntitySet{Name: "People", EntityType: m.person}
	m.conceptual = metadata.NewEntityContainer("Model")
	require.NoError(t, m.conceptual.AddSet(m.people))
	m.items = metadata.NewItemCollection(m.person, m.employee, m.customer)

	m.idCol = metadata.NewProperty("id", metadata.Primitive(metadata.Int32), false)
	m.nameCol = metadata.NewProperty("name", metadata.Primitive(metadata.String), true)
	m.kindCol = metadata.NewProperty("kind", metadata.Primitive(metadata.String), false)
	m.table = &metadata.EntityType{
		Name:       "people",
		Namespace:  "Store",
		KeyMembers: []string{"id"},
		Properties: []*metadata.EdmProperty{m.idCol, m.nameCol, m.kindCol},
	}
	m.peopleTable = &metadata.EntitySet{Name: "people", EntityType: m.table, Schema: "dbo"}
	m.orderIDCol = metadata.NewProperty("id", metadata.Primitive(metadata.Int32), false)
	m.orderOwnerCol = metadata.NewProperty("owner_id", metadata.Primitive(metadata.Int32), false)
	orderType := &metadata.EntityType{
		Name:       "orders",
		Namespace:  "Store",
		KeyMembers: []string{"id"},
		Properties: []*metadata.EdmProperty{m.orderIDCol, m.orderOwnerCol},
	}
	m.orderTable = &metadata.EntitySet{Name: "orders", EntityType: orderType}
	m.storage = metadata.NewEntityContainer("Store")
	require.NoError(t, m.storage.AddSet(m.peopleTable))
	require.NoError(t, m.storage.AddSet(m.orderTable))
	return m
}

// build returns a container mapping with one entity type mapping per type,
// each a fragment over people conditioned on kind.
func (m *peopleModel) build(t *testing.T) *mapping.ContainerMapping {
	t.Helper()
	cm := mapping.NewContainerMapping(m.conceptual, m.storage, m.items)
	sm := mapping.NewEntitySetMapping(m.people)
	for _, c := range []struct {
		typ  *metadata.EntityType
		kind string
	}{
		{m.person, "P"},
		{m.employee, "E"},
		{m.customer, "C"},
	} {
		tm := mapping.NewEntityTypeMapping()
		require.NoError(t, tm.AddType(c.typ))
		f := mapping.NewMappingFragment(m.peopleTable)
		require.NoError(t, f.AddProperty(mapping.NewScalarPropertyMapping(m.person.Properties[0], m.idCol)))
		require.NoError(t, f.AddProperty(mapping.NewScalarPropertyMapping(m.person.Properties[1], m.nameCol)))
		require.NoError(t, f.AddConditionProperty(mapping.NewValueCondition(nil, m.kindCol, c.kind), nil))
		require.NoError(t, tm.AddFragment(f))
		require.NoError(t, sm.AddTypeMapping(tm))
	}
	require.NoError(t, cm.AddSetMapping(sm))
	return cm
}
