package mapping_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
)

func TestValidate(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		m := newPeopleModel(t)
		result := mapping.Validate(m.build(t))
		assert.False(t, result.HasErrors())
		assert.False(t, result.HasWarnings())
		assert.NoError(t, result.Err())
		assert.Equal(t, "No issues found", result.String())
	})

	t.Run("QueryViewClosure", func(t *testing.T) {
		m := newPeopleModel(t)
		cm := m.build(t)
		require.NoError(t, cm.SetMapping("People").(*mapping.EntitySetMapping).SetQueryView("SELECT VALUE p FROM people AS p"))
		assoc := &metadata.AssociationSet{
			Name: "PersonOrders",
			Ends: []*metadata.AssociationSetEnd{{EntitySet: m.people}},
		}
		asm := mapping.NewAssociationSetMapping(assoc, m.orderTable)
		asm.Location = mapping.SourceLocation{File: "model.yaml", Line: 30, Column: 3}
		require.NoError(t, cm.AddSetMapping(asm))

		result := mapping.Validate(cm)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "PersonOrders", result.Errors[0].Set)
		assert.Contains(t, result.Errors[0].Error(), "model.yaml:30:3: PersonOrders: entity set People has a query view")
		assert.Error(t, result.Err())

		require.NoError(t, asm.SetQueryView("SELECT VALUE o FROM orders AS o"))
		assert.False(t, mapping.Validate(cm).HasErrors())
	})

	t.Run("IsNullOnNonNullableColumn", func(t *testing.T) {
		m := newPeopleModel(t)
		cm := m.build(t)
		tm := mapping.NewEntityTypeMapping()
		require.NoError(t, tm.AddType(m.employee))
		f := mapping.NewMappingFragment(m.peopleTable)
		require.NoError(t, f.AddConditionProperty(mapping.NewIsNullCondition(nil, m.kindCol, true), nil))
		require.NoError(t, f.AddConditionProperty(mapping.NewIsNullCondition(nil, m.nameCol, true), nil))
		require.NoError(t, tm.AddFragment(f))
		require.NoError(t, cm.SetMapping("People").(*mapping.EntitySetMapping).AddTypeMapping(tm))

		result := mapping.Validate(cm)
		assert.False(t, result.HasErrors())
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "people", result.Warnings[0].Set)
		assert.Equal(t, "kind", result.Warnings[0].Member)
		assert.Contains(t, result.String(), "Warnings:\n  - people.kind: IS NULL condition")
	})

	t.Run("FunctionImportTypeConditions", func(t *testing.T) {
		m := newPeopleModel(t)
		cm := m.build(t)
		fn := &metadata.EdmFunction{
			Name:      "GetPeople",
			Namespace: "Model",
			ReturnParameters: []*metadata.FunctionParameter{
				{TypeUsage: metadata.Usage(&metadata.CollectionType{Element: metadata.Usage(m.person)})},
			},
		}
		fim := mapping.NewFunctionImportMapping(fn, &metadata.EdmFunction{Name: "get_people", Namespace: "Store"})
		// kind = E leaves Employee and Customer undistinguished.
		require.NoError(t, fim.AddResultMapping(
			entityMapping(t, []*metadata.EntityType{m.person}, nil, mapping.NewConditionValue("kind", "P")),
			entityMapping(t, []*metadata.EntityType{m.employee, m.customer}, nil, mapping.NewConditionValue("kind", "E")),
		))
		require.NoError(t, cm.AddFunctionImportMapping(fim))

		result := mapping.Validate(cm)
		assert.False(t, result.HasErrors())

		result = mapping.Validate(cm, mapping.ValidateAmbiguity())
		require.True(t, result.HasErrors())
		var (
			ambiguous   int
			unreachable []string
		)
		for _, e := range result.Errors {
			assert.Equal(t, "Model.GetPeople", e.Set)
			assert.ErrorIs(t, e, csmap.ErrInvalidTypeConditions)
			var tce *csmap.TypeConditionError
			require.True(t, errors.As(e, &tce))
			if tce.Ambiguous {
				ambiguous++
				continue
			}
			unreachable = append(unreachable, tce.Types...)
		}
		assert.Equal(t, 1, ambiguous)
		assert.Equal(t, []string{"Model.Employee", "Model.Customer"}, unreachable)
	})
}
