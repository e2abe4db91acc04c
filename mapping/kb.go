package mapping

import (
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/metadata"
)

// KBOption configures a StructuralTypeMappingKB.
type KBOption func(*kbConfig)

type kbConfig struct {
	function  string
	resultSet int
	namer     ColumnNamer
}

// WithColumnNamer sets how default column names are derived from members.
func WithColumnNamer(namer ColumnNamer) KBOption {
	return func(c *kbConfig) {
		c.namer = namer
	}
}

// WithResultSet names the function import and result set a knowledge base
// describes; both are reported in discrimination errors.
func WithResultSet(function string, index int) KBOption {
	return func(c *kbConfig) {
		c.function = function
		c.resultSet = index
	}
}

// StructuralTypeMappingKB is the precomputed, read-only view of the
// structural type mappings of one function import result set.
type StructuralTypeMappingKB struct {
	Function  string
	ResultSet int
	// ReturnType is the declared element type of the result set.
	ReturnType metadata.EdmType
	// MappedEntityTypes gives every candidate entity type a stable index.
	MappedEntityTypes []*metadata.EntityType
	// DiscriminatorColumns lists distinct condition columns in first
	// appearance order.
	DiscriminatorColumns         []string
	NormalizedEntityTypeMappings []*NormalizedEntityTypeMapping
	// ColumnRenames maps member names to rename resolvers.
	ColumnRenames map[string]*ColumnRenameMapping

	namer ColumnNamer
	index map[*metadata.EntityType]int
}

// NormalizedEntityTypeMapping is an entity type mapping with its conditions
// aligned to the discriminator columns of its knowledge base.
type NormalizedEntityTypeMapping struct {
	Mapping *FunctionImportEntityTypeMapping
	// ColumnConditions has one slot per discriminator column; nil slots
	// are unconstrained.
	ColumnConditions []FunctionImportCondition
	// ImpliedEntityTypes holds the types this mapping produces.
	ImpliedEntityTypes *bitset.BitSet
	// ComplementImpliedEntityTypes is the complement of ImpliedEntityTypes.
	ComplementImpliedEntityTypes *bitset.BitSet
}

// matches reports whether every aligned condition holds for values.
func (n *NormalizedEntityTypeMapping) matches(values []any) bool {
	for i, c := range n.ColumnConditions {
		if c != nil && !c.Matches(values[i]) {
			return false
		}
	}
	return true
}

// NewStructuralTypeMappingKB builds the knowledge base of one result set.
// items expands is-of types into their subtypes.
func NewStructuralTypeMappingKB(mappings []FunctionImportStructuralTypeMapping, items *metadata.ItemCollection, returnType metadata.EdmType, opts ...KBOption) *StructuralTypeMappingKB {
	cfg := &kbConfig{namer: MemberColumns}
	for _, opt := range opts {
		opt(cfg)
	}
	kb := &StructuralTypeMappingKB{
		Function:      cfg.function,
		ResultSet:     cfg.resultSet,
		ReturnType:    returnType,
		ColumnRenames: make(map[string]*ColumnRenameMapping),
		namer:         cfg.namer,
		index:         make(map[*metadata.EntityType]int),
	}
	var entityMappings []*FunctionImportEntityTypeMapping
	for _, m := range mappings {
		if em, ok := m.(*FunctionImportEntityTypeMapping); ok {
			entityMappings = append(entityMappings, em)
		}
	}
	columns := make(map[string]int)
	for _, em := range entityMappings {
		for _, t := range em.MappedEntityTypes(items) {
			if _, ok := kb.index[t]; !ok {
				kb.index[t] = len(kb.MappedEntityTypes)
				kb.MappedEntityTypes = append(kb.MappedEntityTypes, t)
			}
		}
		for _, c := range em.Conditions() {
			if _, ok := columns[c.ColumnName()]; !ok {
				columns[c.ColumnName()] = len(kb.DiscriminatorColumns)
				kb.DiscriminatorColumns = append(kb.DiscriminatorColumns, c.ColumnName())
			}
		}
	}
	n := uint(len(kb.MappedEntityTypes))
	for _, em := range entityMappings {
		implied := bitset.New(n)
		for _, t := range em.MappedEntityTypes(items) {
			implied.Set(uint(kb.index[t]))
		}
		aligned := make([]FunctionImportCondition, len(kb.DiscriminatorColumns))
		for _, c := range em.Conditions() {
			aligned[columns[c.ColumnName()]] = c
		}
		kb.NormalizedEntityTypeMappings = append(kb.NormalizedEntityTypeMappings, &NormalizedEntityTypeMapping{
			Mapping:                      em,
			ColumnConditions:             aligned,
			ImpliedEntityTypes:           implied,
			ComplementImpliedEntityTypes: implied.Complement(),
		})
	}
	for _, m := range mappings {
		for _, r := range m.ColumnRenames() {
			rm, ok := kb.ColumnRenames[r.Member]
			if !ok {
				rm = NewColumnRenameMapping(kb.namer(r.Member))
				kb.ColumnRenames[r.Member] = rm
			}
			var loc *SourceLocation
			if !r.Location.IsZero() {
				l := r.Location
				loc = &l
			}
			switch m := m.(type) {
			case *FunctionImportEntityTypeMapping:
				for _, t := range m.IsOfTypes {
					rm.AddRename(r.Column, t, true, loc)
				}
				for _, t := range m.EntityTypes {
					rm.AddRename(r.Column, t, false, loc)
				}
			case *FunctionImportComplexTypeMapping:
				rm.AddRename(r.Column, m.ComplexType, false, loc)
			}
		}
	}
	return kb
}

// Index returns the stable index of t, or -1.
func (kb *StructuralTypeMappingKB) Index(t *metadata.EntityType) int {
	if i, ok := kb.index[t]; ok {
		return i
	}
	return -1
}

// Discriminate returns the single entity type selected by the values of the
// discriminator columns, given in DiscriminatorColumns order. Zero or
// several remaining candidates yield *csmap.AmbiguousTypeError.
func (kb *StructuralTypeMappingKB) Discriminate(values []any) (*metadata.EntityType, error) {
	if len(values) < len(kb.DiscriminatorColumns) {
		return nil, csmap.NewAmbiguousTypeError(kb.Function, kb.ResultSet, kb.names(kb.all()))
	}
	candidates := kb.candidates(values)
	if candidates.Count() == 1 {
		i, _ := candidates.NextSet(0)
		return kb.MappedEntityTypes[i], nil
	}
	return nil, csmap.NewAmbiguousTypeError(kb.Function, kb.ResultSet, kb.names(candidates))
}

func (kb *StructuralTypeMappingKB) all() *bitset.BitSet {
	n := uint(len(kb.MappedEntityTypes))
	return bitset.New(n).Complement()
}

func (kb *StructuralTypeMappingKB) candidates(values []any) *bitset.BitSet {
	candidates := kb.all()
	for _, m := range kb.NormalizedEntityTypeMappings {
		if m.matches(values) {
			candidates.InPlaceIntersection(m.ImpliedEntityTypes)
		} else {
			candidates.InPlaceIntersection(m.ComplementImpliedEntityTypes)
		}
	}
	return candidates
}

func (kb *StructuralTypeMappingKB) names(set *bitset.BitSet) []string {
	var names []string
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		names = append(names, kb.MappedEntityTypes[i].FullName())
	}
	return names
}

// ColumnName returns the result column holding member for type t.
func (kb *StructuralTypeMappingKB) ColumnName(t metadata.EdmType, member string) string {
	if rm, ok := kb.ColumnRenames[member]; ok {
		return rm.GetRename(t)
	}
	return kb.namer(member)
}

// maxConditionCombinations bounds the enumeration of ValidateTypeConditions.
const maxConditionCombinations = 1 << 16

// otherValue stands for a non-null column value no condition expects.
type otherValue struct{}

// ValidateTypeConditions enumerates every combination of discriminator
// outcomes and reports each mapped type no combination produces. With
// validateAmbiguity set, a type counts as produced only when it is the sole
// candidate, and combinations leaving several candidates are reported too.
// It returns false if anything was reported. Mappings whose combination
// space exceeds an internal bound are not checked.
func (kb *StructuralTypeMappingKB) ValidateTypeConditions(validateAmbiguity bool, report func(error)) bool {
	if len(kb.MappedEntityTypes) == 0 {
		return true
	}
	domains := make([][]any, len(kb.DiscriminatorColumns))
	total := 1
	for i := range kb.DiscriminatorColumns {
		domain := []any{nil, otherValue{}}
		for _, m := range kb.NormalizedEntityTypeMappings {
			if c, ok := m.ColumnConditions[i].(*ConditionValue); ok {
				domain = appendDistinctValue(domain, c.Value)
			}
		}
		domains[i] = domain
		total *= len(domain)
		if total > maxConditionCombinations {
			return true
		}
	}
	var (
		valid     = true
		reachable = bitset.New(uint(len(kb.MappedEntityTypes)))
		ambiguous = make(map[string]bool)
		values    = make([]any, len(domains))
		odometer  = make([]int, len(domains))
	)
	for {
		for i, d := range odometer {
			values[i] = domains[i][d]
		}
		candidates := kb.candidates(values)
		switch n := candidates.Count(); {
		case n == 1 || (n > 1 && !validateAmbiguity):
			reachable.InPlaceUnion(candidates)
		case n > 1:
			names := kb.names(candidates)
			key := strings.Join(names, "\x00")
			if !ambiguous[key] {
				ambiguous[key] = true
				valid = false
				report(&csmap.TypeConditionError{Function: kb.Function, Types: names, Ambiguous: true})
			}
		}
		if !advance(odometer, domains) {
			break
		}
	}
	for i, t := range kb.MappedEntityTypes {
		if !reachable.Test(uint(i)) {
			valid = false
			report(&csmap.TypeConditionError{Function: kb.Function, Types: []string{t.FullName()}})
		}
	}
	return valid
}

func advance(odometer []int, domains [][]any) bool {
	for i := len(odometer) - 1; i >= 0; i-- {
		odometer[i]++
		if odometer[i] < len(domains[i]) {
			return true
		}
		odometer[i] = 0
	}
	return false
}

func appendDistinctValue(s []any, v any) []any {
	for _, e := range s {
		if e != nil && v != nil && valuesEqual(e, v) {
			return s
		}
	}
	return append(s, v)
}
