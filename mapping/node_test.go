package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
)

func TestContainerMapping(t *testing.T) {
	m := newPeopleModel(t)
	cm := m.build(t)

	assert.Equal(t, "Model", cm.Identity())
	require.Len(t, cm.SetMappings(), 1)
	sm := cm.SetMapping("People")
	require.NotNil(t, sm)
	assert.Same(t, cm, sm.Parent())
	require.Len(t, sm.TypeMappings(), 3)
	for _, tm := range sm.TypeMappings() {
		assert.Equal(t, sm, tm.Parent())
		for _, f := range tm.Fragments() {
			assert.Equal(t, tm, f.Parent())
			for _, p := range f.AllProperties() {
				assert.Equal(t, mapping.Node(f), p.Parent())
			}
		}
	}
	assert.Len(t, cm.EntitySetMappings(), 1)
	assert.Empty(t, cm.AssociationSetMappings())
	assert.False(t, cm.HasQueryViews())

	err := cm.AddSetMapping(mapping.NewEntitySetMapping(m.people))
	assert.ErrorIs(t, err, csmap.ErrDuplicateMapping)
}

func TestFreeze(t *testing.T) {
	m := newPeopleModel(t)
	cm := m.build(t)
	sm := cm.SetMapping("People").(*mapping.EntitySetMapping)
	tm := sm.EntityTypeMappings()[0]
	f := tm.Fragments()[0]

	cm.Freeze()
	assert.True(t, cm.Frozen())
	cm.Freeze()

	assert.ErrorIs(t, cm.AddSetMapping(mapping.NewEntitySetMapping(&metadata.EntitySet{Name: "Other"})), csmap.ErrFrozen)
	assert.ErrorIs(t, sm.AddTypeMapping(mapping.NewEntityTypeMapping()), csmap.ErrFrozen)
	assert.ErrorIs(t, sm.SetQueryView("SELECT VALUE p FROM People AS p"), csmap.ErrFrozen)
	assert.ErrorIs(t, tm.AddType(m.employee), csmap.ErrFrozen)
	assert.ErrorIs(t, tm.AddFragment(mapping.NewMappingFragment(m.peopleTable)), csmap.ErrFrozen)
	assert.ErrorIs(t, f.AddProperty(mapping.NewScalarPropertyMapping(nil, m.nameCol)), csmap.ErrFrozen)
	assert.ErrorIs(t, f.AddConditionProperty(mapping.NewIsNullCondition(nil, m.nameCol, true), nil), csmap.ErrFrozen)

	t.Run("FragmentsOf", func(t *testing.T) {
		frags := cm.FragmentsOf(m.kindCol)
		require.Len(t, frags, 3)
		assert.Same(t, f, frags[0])
		assert.Len(t, cm.FragmentsOf(m.idCol), 3)
		assert.Empty(t, cm.FragmentsOf(m.orderOwnerCol))
	})
}

func TestDuplicateCondition(t *testing.T) {
	m := newPeopleModel(t)

	t.Run("ReturnsError", func(t *testing.T) {
		f := mapping.NewMappingFragment(m.peopleTable)
		require.NoError(t, f.AddConditionProperty(mapping.NewValueCondition(nil, m.kindCol, "E"), nil))
		err := f.AddConditionProperty(mapping.NewIsNullCondition(nil, m.kindCol, false), nil)
		require.Error(t, err)
		assert.True(t, csmap.IsDuplicateCondition(err))
		assert.Contains(t, err.Error(), `"kind"`)
		require.Len(t, f.Conditions(), 1)
		assert.Equal(t, "E", f.Conditions()[0].Value)
	})

	t.Run("Callback", func(t *testing.T) {
		f := mapping.NewMappingFragment(m.peopleTable)
		var reported []string
		report := func(member metadata.EdmMember) { reported = append(reported, member.MemberName()) }
		first := mapping.NewValueCondition(nil, m.kindCol, "E")
		require.NoError(t, f.AddConditionProperty(first, report))
		dup := mapping.NewValueCondition(nil, m.kindCol, "C")
		require.NoError(t, f.AddConditionProperty(dup, report))
		assert.Equal(t, []string{"kind"}, reported)
		assert.Equal(t, []*mapping.ConditionPropertyMapping{first}, f.Conditions())
		assert.Same(t, first, f.Condition(m.kindCol))
		assert.Nil(t, dup.Parent())
	})

	t.Run("PropertyAndColumnAreDistinctMembers", func(t *testing.T) {
		f := mapping.NewMappingFragment(m.peopleTable)
		require.NoError(t, f.AddConditionProperty(mapping.NewIsNullCondition(m.person.Properties[1], nil, false), nil))
		require.NoError(t, f.AddConditionProperty(mapping.NewIsNullCondition(nil, m.nameCol, false), nil))
		assert.Len(t, f.Conditions(), 2)
	})

	t.Run("ComplexTypeMapping", func(t *testing.T) {
		address := &metadata.ComplexType{Name: "Address", Namespace: "Model"}
		ctm := mapping.NewComplexTypeMapping()
		require.NoError(t, ctm.AddType(address))
		require.NoError(t, ctm.AddProperty(mapping.NewIsNullCondition(nil, m.nameCol, true)))
		err := ctm.AddProperty(mapping.NewIsNullCondition(nil, m.nameCol, false))
		assert.True(t, csmap.IsDuplicateCondition(err))
		assert.Contains(t, err.Error(), "Model.Address")
		assert.Len(t, ctm.Conditions(), 1)
	})
}

func TestTypeQueryViews(t *testing.T) {
	m := newPeopleModel(t)
	sm := mapping.NewEntitySetMapping(m.people)
	key := mapping.TypeQueryViewKey{Set: m.people, Type: m.employee, IncludeSubtypes: true}
	require.NoError(t, sm.AddTypeQueryView(key, "SELECT VALUE e FROM ..."))
	err := sm.AddTypeQueryView(key, "SELECT VALUE e2 FROM ...")
	assert.ErrorIs(t, err, csmap.ErrDuplicateMapping)
	assert.Contains(t, err.Error(), "IsTypeOf(Model.Employee)")

	other := mapping.TypeQueryViewKey{Set: m.people, Type: m.employee}
	require.NoError(t, sm.AddTypeQueryView(other, "SELECT VALUE e3 FROM ..."))
	view, ok := sm.TypeQueryView(key)
	assert.True(t, ok)
	assert.Equal(t, "SELECT VALUE e FROM ...", view)
	assert.Equal(t, []mapping.TypeQueryViewKey{key, other}, sm.TypeQueryViewKeys())
}

func TestEntityTypeMappingDistinct(t *testing.T) {
	m := newPeopleModel(t)
	tm := mapping.NewEntityTypeMapping()
	require.NoError(t, tm.AddType(m.person))
	require.NoError(t, tm.AddType(m.person))
	require.NoError(t, tm.AddIsOfType(m.employee))
	require.NoError(t, tm.AddIsOfType(m.employee))
	assert.Len(t, tm.Types(), 1)
	assert.Len(t, tm.IsOfTypes(), 1)
}

func TestConditionString(t *testing.T) {
	m := newPeopleModel(t)
	assert.Equal(t, "kind = E", mapping.NewValueCondition(nil, m.kindCol, "E").String())
	assert.Equal(t, "name IS NULL", mapping.NewIsNullCondition(nil, m.nameCol, true).String())
	assert.Equal(t, "Name IS NOT NULL", mapping.NewIsNullCondition(m.person.Properties[1], m.nameCol, false).String())
}

func TestSourceLocation(t *testing.T) {
	assert.True(t, mapping.SourceLocation{}.IsZero())
	assert.Equal(t, "model.yaml:3:7", mapping.SourceLocation{File: "model.yaml", Line: 3, Column: 7}.String())
	assert.Equal(t, "3:7", mapping.SourceLocation{Line: 3, Column: 7}.String())
}
