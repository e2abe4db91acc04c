package mapping

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/spf13/cast"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/metadata"
)

// FunctionImportMapping maps a conceptual function import onto a store
// function. Each result set of the import has its own list of structural
// type mappings.
type FunctionImportMapping struct {
	state
	FunctionImport *metadata.EdmFunction
	TargetFunction *metadata.EdmFunction
	Location       SourceLocation

	parent         *ContainerMapping
	resultMappings [][]FunctionImportStructuralTypeMapping
	opts           []KBOption
	kbs            *csmap.Memo[int, *StructuralTypeMappingKB]
}

// NewFunctionImportMapping returns a mapping of fn onto target. The options
// configure the knowledge bases built for its result sets.
func NewFunctionImportMapping(fn, target *metadata.EdmFunction, opts ...KBOption) *FunctionImportMapping {
	m := &FunctionImportMapping{FunctionImport: fn, TargetFunction: target, opts: opts}
	m.kbs = csmap.NewMemo(m.buildKB)
	return m
}

// Parent returns the owning container mapping.
func (m *FunctionImportMapping) Parent() *ContainerMapping { return m.parent }

// AddResultMapping appends the structural type mappings of the next result
// set. An empty list maps the declared return type implicitly.
func (m *FunctionImportMapping) AddResultMapping(mappings ...FunctionImportStructuralTypeMapping) error {
	if err := m.mutable(); err != nil {
		return err
	}
	m.resultMappings = append(m.resultMappings, mappings)
	return nil
}

// ResultSets returns the number of result sets.
func (m *FunctionImportMapping) ResultSets() int {
	n := len(m.resultMappings)
	if fn := m.FunctionImport.ResultSets(); fn > n {
		n = fn
	}
	return n
}

// ResultMapping returns the structural type mappings of result set i.
func (m *FunctionImportMapping) ResultMapping(i int) ([]FunctionImportStructuralTypeMapping, error) {
	if i < 0 || i >= m.ResultSets() {
		return nil, csmap.NewArgumentRangeError("resultSetIndex", i, m.ResultSets())
	}
	if i >= len(m.resultMappings) {
		return nil, nil
	}
	return m.resultMappings[i], nil
}

// KB returns the knowledge base of result set i, building it on first use.
func (m *FunctionImportMapping) KB(i int) (*StructuralTypeMappingKB, error) {
	if i < 0 || i >= m.ResultSets() {
		return nil, csmap.NewArgumentRangeError("resultSetIndex", i, m.ResultSets())
	}
	return m.kbs.Get(i)
}

func (m *FunctionImportMapping) buildKB(i int) (*StructuralTypeMappingKB, error) {
	mappings, err := m.ResultMapping(i)
	if err != nil {
		return nil, err
	}
	returnType := m.FunctionImport.ReturnType(i)
	if len(mappings) == 0 {
		if et, ok := returnType.(*metadata.EntityType); ok {
			mappings = []FunctionImportStructuralTypeMapping{NewFunctionImportEntityTypeMapping([]*metadata.EntityType{et}, nil)}
		}
	}
	var items *metadata.ItemCollection
	if m.parent != nil {
		items = m.parent.Items
	}
	opts := append([]KBOption{WithResultSet(m.FunctionImport.FullName(), i)}, m.opts...)
	return NewStructuralTypeMappingKB(mappings, items, returnType, opts...), nil
}

// Discriminate returns the entity type of a row of result set i, given the
// values of that result set's discriminator columns in order.
func (m *FunctionImportMapping) Discriminate(values []any, i int) (*metadata.EntityType, error) {
	kb, err := m.KB(i)
	if err != nil {
		return nil, err
	}
	return kb.Discriminate(values)
}

// Accept implements Node.
func (m *FunctionImportMapping) Accept(v Visitor) { v.VisitFunctionImportMapping(m) }

func (*FunctionImportMapping) node() {}

// FunctionImportStructuralTypeMapping is implemented by
// FunctionImportEntityTypeMapping and FunctionImportComplexTypeMapping.
type FunctionImportStructuralTypeMapping interface {
	Node
	ColumnRenames() []ColumnRename
	structural()
}

// ColumnRename maps a member of a function import result type onto a
// result column with a different name.
type ColumnRename struct {
	Member   string
	Column   string
	Location SourceLocation
}

// FunctionImportEntityTypeMapping maps result rows onto entity types,
// selected by conditions on discriminator columns.
type FunctionImportEntityTypeMapping struct {
	state
	IsOfTypes   []*metadata.EntityType
	EntityTypes []*metadata.EntityType
	Renames     []ColumnRename
	Location    SourceLocation

	conditions []FunctionImportCondition
}

// NewFunctionImportEntityTypeMapping returns a mapping of the given exact
// and hierarchy types.
func NewFunctionImportEntityTypeMapping(types, isOfTypes []*metadata.EntityType, renames ...ColumnRename) *FunctionImportEntityTypeMapping {
	return &FunctionImportEntityTypeMapping{EntityTypes: types, IsOfTypes: isOfTypes, Renames: renames}
}

// AddCondition adds a condition. One condition per column: a duplicate is
// reported to onDuplicate with the column name, or returned as
// *csmap.DuplicateConditionError when onDuplicate is nil.
func (m *FunctionImportEntityTypeMapping) AddCondition(c FunctionImportCondition, onDuplicate func(column string)) error {
	if err := m.mutable(); err != nil {
		return err
	}
	for _, e := range m.conditions {
		if e.ColumnName() == c.ColumnName() {
			if onDuplicate != nil {
				onDuplicate(c.ColumnName())
				return nil
			}
			return csmap.NewDuplicateConditionError(c.ColumnName(), "function import type mapping")
		}
	}
	m.conditions = append(m.conditions, c)
	return nil
}

// Conditions returns the conditions in document order.
func (m *FunctionImportEntityTypeMapping) Conditions() []FunctionImportCondition { return m.conditions }

// ColumnRenames implements FunctionImportStructuralTypeMapping.
func (m *FunctionImportEntityTypeMapping) ColumnRenames() []ColumnRename { return m.Renames }

// MappedEntityTypes returns the exact types followed by every non-abstract
// type of each hierarchy, without duplicates.
func (m *FunctionImportEntityTypeMapping) MappedEntityTypes(items *metadata.ItemCollection) []*metadata.EntityType {
	var out []*metadata.EntityType
	out = append(out, m.EntityTypes...)
	for _, t := range m.IsOfTypes {
		if items == nil {
			if !t.Abstract {
				out = appendDistinct(out, t)
			}
			continue
		}
		for _, d := range items.TypeAndSubtypes(t, false) {
			if et, ok := d.(*metadata.EntityType); ok {
				out = appendDistinct(out, et)
			}
		}
	}
	return out
}

// Accept implements Node.
func (m *FunctionImportEntityTypeMapping) Accept(v Visitor) { v.VisitFunctionImportEntityTypeMapping(m) }

func (*FunctionImportEntityTypeMapping) node()      {}
func (*FunctionImportEntityTypeMapping) structural() {}

// FunctionImportComplexTypeMapping maps result rows onto a complex type.
type FunctionImportComplexTypeMapping struct {
	state
	ComplexType *metadata.ComplexType
	Renames     []ColumnRename
	Location    SourceLocation
}

// NewFunctionImportComplexTypeMapping returns a mapping of t.
func NewFunctionImportComplexTypeMapping(t *metadata.ComplexType, renames ...ColumnRename) *FunctionImportComplexTypeMapping {
	return &FunctionImportComplexTypeMapping{ComplexType: t, Renames: renames}
}

// ColumnRenames implements FunctionImportStructuralTypeMapping.
func (m *FunctionImportComplexTypeMapping) ColumnRenames() []ColumnRename { return m.Renames }

// Accept implements Node.
func (m *FunctionImportComplexTypeMapping) Accept(v Visitor) {
	v.VisitFunctionImportComplexTypeMapping(m)
}

func (*FunctionImportComplexTypeMapping) node()      {}
func (*FunctionImportComplexTypeMapping) structural() {}

// FunctionImportCondition is a test on one discriminator column value.
type FunctionImportCondition interface {
	ColumnName() string
	// Matches reports whether a column value satisfies the condition.
	Matches(value any) bool
	fmt.Stringer
}

// ConditionIsNull matches a null or non-null column value.
type ConditionIsNull struct {
	Column string
	IsNull bool
}

// ColumnName implements FunctionImportCondition.
func (c ConditionIsNull) ColumnName() string { return c.Column }

// Matches implements FunctionImportCondition.
func (c ConditionIsNull) Matches(value any) bool {
	return (value == nil) == c.IsNull
}

// String implements fmt.Stringer.
func (c ConditionIsNull) String() string {
	if c.IsNull {
		return c.Column + " IS NULL"
	}
	return c.Column + " IS NOT NULL"
}

// ConditionValue matches a column value equal to a constant. The constant is
// converted to the type of the column value before comparison; conversions
// are cached per column value type.
type ConditionValue struct {
	Column string
	Value  any

	converted *csmap.Memo[reflect.Type, any]
}

// NewConditionValue returns a value condition on column.
func NewConditionValue(column string, value any) *ConditionValue {
	c := &ConditionValue{Column: column, Value: value}
	c.converted = csmap.NewMemo(c.convert)
	return c
}

// ColumnName implements FunctionImportCondition.
func (c *ConditionValue) ColumnName() string { return c.Column }

// Matches implements FunctionImportCondition. A null value never matches.
func (c *ConditionValue) Matches(value any) bool {
	if value == nil {
		return false
	}
	rt := reflect.TypeOf(value)
	var (
		want any
		err  error
	)
	if c.converted != nil {
		want, err = c.converted.Get(rt)
	} else {
		want, err = c.convert(rt)
	}
	if err != nil {
		return false
	}
	return valuesEqual(value, want)
}

// String implements fmt.Stringer.
func (c *ConditionValue) String() string {
	return fmt.Sprintf("%s = %v", c.Column, c.Value)
}

func (c *ConditionValue) convert(rt reflect.Type) (any, error) {
	if reflect.TypeOf(c.Value) == rt {
		return c.Value, nil
	}
	var (
		v   any
		err error
	)
	switch rt {
	case reflect.TypeOf(time.Time{}):
		v, err = cast.ToTimeE(c.Value)
		return v, err
	case reflect.TypeOf([]byte(nil)):
		s, err := cast.ToStringE(c.Value)
		return []byte(s), err
	}
	src := reflect.ValueOf(c.Value)
	if src.Kind() == reflect.String && isNumeric(rt.Kind()) {
		return parseNumber(src.String(), rt)
	}
	switch rt.Kind() {
	case reflect.String:
		v, err = cast.ToStringE(c.Value)
	case reflect.Bool:
		v, err = cast.ToBoolE(c.Value)
	case reflect.Int:
		v, err = cast.ToIntE(c.Value)
	case reflect.Int8:
		v, err = cast.ToInt8E(c.Value)
	case reflect.Int16:
		v, err = cast.ToInt16E(c.Value)
	case reflect.Int32:
		v, err = cast.ToInt32E(c.Value)
	case reflect.Int64:
		v, err = cast.ToInt64E(c.Value)
	case reflect.Uint:
		v, err = cast.ToUintE(c.Value)
	case reflect.Uint8:
		v, err = cast.ToUint8E(c.Value)
	case reflect.Uint16:
		v, err = cast.ToUint16E(c.Value)
	case reflect.Uint32:
		v, err = cast.ToUint32E(c.Value)
	case reflect.Uint64:
		v, err = cast.ToUint64E(c.Value)
	case reflect.Float32:
		v, err = cast.ToFloat32E(c.Value)
	case reflect.Float64:
		v, err = cast.ToFloat64E(c.Value)
	default:
		return nil, fmt.Errorf("mapping: condition value %v is not comparable with %s", c.Value, rt)
	}
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(v)
	if !preserved(src, rv) {
		return nil, fmt.Errorf("mapping: condition value %v is not representable as %s", c.Value, rt)
	}
	// Named types such as enums keep the column value's type.
	if rv.Type() != rt && rv.Type().ConvertibleTo(rt) {
		return rv.Convert(rt).Interface(), nil
	}
	return v, nil
}

// parseNumber parses a decimal string into a value of the numeric type rt.
func parseNumber(s string, rt reflect.Type) (any, error) {
	rv := reflect.New(rt).Elem()
	switch k := rt.Kind(); {
	case isInt(k):
		n, err := strconv.ParseInt(s, 10, rt.Bits())
		if err != nil {
			return nil, fmt.Errorf("mapping: condition value %q: %w", s, err)
		}
		rv.SetInt(n)
	case isUint(k):
		n, err := strconv.ParseUint(s, 10, rt.Bits())
		if err != nil {
			return nil, fmt.Errorf("mapping: condition value %q: %w", s, err)
		}
		rv.SetUint(n)
	default:
		f, err := strconv.ParseFloat(s, rt.Bits())
		if err != nil {
			return nil, fmt.Errorf("mapping: condition value %q: %w", s, err)
		}
		rv.SetFloat(f)
	}
	return rv.Interface(), nil
}

// preserved reports whether converting src to dst kept its value. Only
// conversions from numbers can lose information.
func preserved(src, dst reflect.Value) bool {
	a, ok := bigValue(src)
	if !ok {
		return true
	}
	if dst.Kind() == reflect.Bool {
		return a.Sign() == 0 || a.Cmp(big.NewFloat(1)) == 0
	}
	b, ok := bigValue(dst)
	if !ok {
		return true
	}
	return a.Cmp(b) == 0
}

func bigValue(v reflect.Value) (*big.Float, bool) {
	switch k := v.Kind(); {
	case isInt(k):
		return new(big.Float).SetInt64(v.Int()), true
	case isUint(k):
		return new(big.Float).SetUint64(v.Uint()), true
	case k == reflect.Float32 || k == reflect.Float64:
		if math.IsNaN(v.Float()) {
			return nil, false
		}
		return new(big.Float).SetFloat64(v.Float()), true
	}
	return nil, false
}

func isInt(k reflect.Kind) bool { return k >= reflect.Int && k <= reflect.Int64 }

func isUint(k reflect.Kind) bool { return k >= reflect.Uint && k <= reflect.Uint64 }

func isNumeric(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || k == reflect.Float32 || k == reflect.Float64
}

func valuesEqual(a, b any) bool {
	switch a := a.(type) {
	case []byte:
		bb, ok := b.([]byte)
		return ok && bytes.Equal(a, bb)
	case time.Time:
		bt, ok := b.(time.Time)
		return ok && a.Equal(bt)
	}
	return reflect.TypeOf(a).Comparable() && a == b
}
