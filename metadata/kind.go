// Package metadata holds the conceptual and storage type system that
// mapping metadata is expressed against. Items are built once by a loader
// and are read-only afterwards.
package metadata

import "strconv"

// Kind tags every metadata item with its concrete kind. The set is closed:
// dispatchers switch on it and fault on values they do not know.
type Kind uint8

// Metadata item kinds.
const (
	KindInvalid Kind = iota
	KindEntityType
	KindComplexType
	KindAssociationType
	KindPrimitiveType
	KindEnumType
	KindCollectionType
	KindRowType
	KindRefType
	KindEdmProperty
	KindNavigationProperty
	KindAssociationEndMember
	KindEntitySet
	KindAssociationSet
	KindAssociationSetEnd
	KindEntityContainer
	KindEdmFunction
	KindFunctionParameter
	KindFacet
	KindTypeUsage
	KindReferentialConstraint
	KindEnumMember

	kindEnd
)

var kindNames = [...]string{
	KindInvalid:               "Invalid",
	KindEntityType:            "EntityType",
	KindComplexType:           "ComplexType",
	KindAssociationType:       "AssociationType",
	KindPrimitiveType:         "PrimitiveType",
	KindEnumType:              "EnumType",
	KindCollectionType:        "CollectionType",
	KindRowType:               "RowType",
	KindRefType:               "RefType",
	KindEdmProperty:           "EdmProperty",
	KindNavigationProperty:    "NavigationProperty",
	KindAssociationEndMember:  "AssociationEndMember",
	KindEntitySet:             "EntitySet",
	KindAssociationSet:        "AssociationSet",
	KindAssociationSetEnd:     "AssociationSetEnd",
	KindEntityContainer:       "EntityContainer",
	KindEdmFunction:           "EdmFunction",
	KindFunctionParameter:     "FunctionParameter",
	KindFacet:                 "Facet",
	KindTypeUsage:             "TypeUsage",
	KindReferentialConstraint: "ReferentialConstraint",
	KindEnumMember:            "EnumMember",
}

// String returns the kind name.
func (k Kind) String() string {
	if k < kindEnd {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindEnd-1)
	for k := KindInvalid + 1; k < kindEnd; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Item is implemented by every metadata item.
type Item interface {
	Kind() Kind
}

// PrimitiveKind identifies a primitive type.
type PrimitiveKind uint8

// Primitive kinds.
const (
	String PrimitiveKind = iota
	Boolean
	Byte
	Int16
	Int32
	Int64
	Single
	Double
	Decimal
	DateTime
	Time
	Guid
	Binary
)

var primitiveNames = [...]string{
	String:   "String",
	Boolean:  "Boolean",
	Byte:     "Byte",
	Int16:    "Int16",
	Int32:    "Int32",
	Int64:    "Int64",
	Single:   "Single",
	Double:   "Double",
	Decimal:  "Decimal",
	DateTime: "DateTime",
	Time:     "Time",
	Guid:     "Guid",
	Binary:   "Binary",
}

// String returns the primitive kind name.
func (k PrimitiveKind) String() string {
	if int(k) < len(primitiveNames) {
		return primitiveNames[k]
	}
	return "PrimitiveKind(" + strconv.Itoa(int(k)) + ")"
}
