package viewgen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
)

// model maps conceptual sets to store tables one to one, one fragment each.
type model struct {
	conceptual, storage *metadata.EntityContainer
	sets                map[string]*metadata.EntitySet
	tables              map[string]*metadata.EntitySet
	cm                  *mapping.ContainerMapping
}

// newModel creates an entity set and a table per name. Table "x" has
// columns id and ref; entity set "X" maps ID to id and Ref to ref.
func newModel(t *testing.T, names ...string) *model {
	t.Helper()
	m := &model{
		conceptual: metadata.NewEntityContainer("Model"),
		storage:    metadata.NewEntityContainer("Store"),
		sets:       make(map[string]*metadata.EntitySet),
		tables:     make(map[string]*metadata.EntitySet),
	}
	var items []metadata.EdmType
	for _, name := range names {
		et := &metadata.EntityType{
			Name:       name,
			Namespace:  "Model",
			KeyMembers: []string{"ID"},
			Properties: []*metadata.EdmProperty{
				metadata.NewProperty("ID", metadata.Primitive(metadata.Int32), false),
				metadata.NewProperty("Ref", metadata.Primitive(metadata.Int32), true),
			},
		}
		items = append(items, et)
		set := &metadata.EntitySet{Name: name, EntityType: et}
		require.NoError(t, m.conceptual.AddSet(set))
		m.sets[name] = set

		lower := strings.ToLower(name)
		tt := &metadata.EntityType{
			Name:       lower,
			Namespace:  "Store",
			KeyMembers: []string{"id"},
			Properties: []*metadata.EdmProperty{
				metadata.NewProperty("id", metadata.Primitive(metadata.Int32), false),
				metadata.NewProperty("ref", metadata.Primitive(metadata.Int32), true),
			},
		}
		table := &metadata.EntitySet{Name: lower, EntityType: tt}
		require.NoError(t, m.storage.AddSet(table))
		m.tables[name] = table
	}
	m.cm = mapping.NewContainerMapping(m.conceptual, m.storage, metadata.NewItemCollection(items...))
	for _, name := range names {
		m.mapSet(t, name, name)
	}
	return m
}

// mapSet adds a set mapping of set to the table of table.
func (m *model) mapSet(t *testing.T, set, table string) *mapping.EntitySetMapping {
	t.Helper()
	es := m.sets[set]
	tbl := m.tables[table]
	sm, ok := m.cm.SetMapping(set).(*mapping.EntitySetMapping)
	if !ok {
		sm = mapping.NewEntitySetMapping(es)
		require.NoError(t, m.cm.AddSetMapping(sm))
	}
	tm := mapping.NewEntityTypeMapping()
	require.NoError(t, tm.AddType(es.EntityType))
	f := mapping.NewMappingFragment(tbl)
	for i, p := range es.EntityType.Properties {
		require.NoError(t, f.AddProperty(mapping.NewScalarPropertyMapping(p, tbl.EntityType.Properties[i])))
	}
	require.NoError(t, tm.AddFragment(f))
	require.NoError(t, sm.AddTypeMapping(tm))
	return sm
}

// foreignKey declares child.ref -> parent.id in the storage container.
func (m *model) foreignKey(t *testing.T, child, parent string) {
	t.Helper()
	c, p := m.tables[child], m.tables[parent]
	parentEnd := &metadata.AssociationEndMember{Name: p.Name, EntityType: p.EntityType, Multiplicity: metadata.ZeroOrOne}
	childEnd := &metadata.AssociationEndMember{Name: c.Name, EntityType: c.EntityType, Multiplicity: metadata.Many}
	at := &metadata.AssociationType{
		Name:      "fk_" + c.Name + "_" + p.Name,
		Namespace: "Store",
		Ends:      []*metadata.AssociationEndMember{parentEnd, childEnd},
		Constraints: []*metadata.ReferentialConstraint{{
			FromRole:       parentEnd,
			ToRole:         childEnd,
			FromProperties: []*metadata.EdmProperty{p.EntityType.Property("id")},
			ToProperties:   []*metadata.EdmProperty{c.EntityType.Property("ref")},
		}},
	}
	require.NoError(t, m.storage.AddSet(&metadata.AssociationSet{
		Name:            at.Name,
		AssociationType: at,
		Ends: []*metadata.AssociationSetEnd{
			{Role: parentEnd, EntitySet: p},
			{Role: childEnd, EntitySet: c},
		},
	}))
}
