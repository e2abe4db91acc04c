package csmap

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for mapping metadata operations.
var (
	// ErrAmbiguousType is returned when discriminator values of a result row
	// do not narrow the candidate entity types to exactly one type.
	ErrAmbiguousType = errors.New("csmap: entity type cannot be determined")

	// ErrArgumentOutOfRange is returned when an index argument, such as a
	// function import result set index, is outside the valid range.
	ErrArgumentOutOfRange = errors.New("csmap: argument out of range")

	// ErrDuplicateCondition is returned when a second condition is added for
	// a member that already has one within the same fragment or complex type mapping.
	ErrDuplicateCondition = errors.New("csmap: duplicate condition member")

	// ErrDuplicateMapping is returned when a mapping is registered twice
	// under the same key.
	ErrDuplicateMapping = errors.New("csmap: duplicate mapping")

	// ErrFrozen is returned when a mapping node is modified after its
	// container mapping was frozen.
	ErrFrozen = errors.New("csmap: mapping is frozen")

	// ErrInvalidTypeConditions is returned when function import type
	// conditions leave a mapped type unreachable or ambiguous.
	ErrInvalidTypeConditions = errors.New("csmap: invalid type conditions")

	// ErrMissingColumn is returned when a function import result lacks a
	// column a member or discriminator is mapped to.
	ErrMissingColumn = errors.New("csmap: result column missing")

	// ErrStaleViews is returned when pre-generated views were produced from a
	// mapping that no longer matches the loaded one.
	ErrStaleViews = errors.New("csmap: pre-generated views are stale")
)

// AmbiguousTypeError is returned by the discriminator resolver when a row
// matches zero or more than one entity type.
type AmbiguousTypeError struct {
	Function   string   // Function import identity
	ResultSet  int      // Result set index
	Candidates []string // Types still possible after narrowing
}

// Error returns the error string.
func (e *AmbiguousTypeError) Error() string {
	var b strings.Builder
	b.WriteString("csmap: entity type cannot be determined")
	if e.Function != "" {
		fmt.Fprintf(&b, " for function import %s (result set %d)", e.Function, e.ResultSet)
	}
	if len(e.Candidates) == 0 {
		b.WriteString(": no type matches the discriminator values")
	} else {
		fmt.Fprintf(&b, ": candidates %s", strings.Join(e.Candidates, ", "))
	}
	return b.String()
}

// Is reports whether the target error matches AmbiguousTypeError.
func (e *AmbiguousTypeError) Is(err error) bool {
	return err == ErrAmbiguousType
}

// NewAmbiguousTypeError returns a new AmbiguousTypeError.
func NewAmbiguousTypeError(function string, resultSet int, candidates []string) *AmbiguousTypeError {
	return &AmbiguousTypeError{Function: function, ResultSet: resultSet, Candidates: candidates}
}

// IsAmbiguousType returns true if the error is an AmbiguousTypeError.
func IsAmbiguousType(err error) bool {
	if err == nil {
		return false
	}
	var e *AmbiguousTypeError
	return errors.As(err, &e) || errors.Is(err, ErrAmbiguousType)
}

// ArgumentRangeError represents an index argument outside [0, Count).
type ArgumentRangeError struct {
	Argument string
	Value    int
	Count    int
}

// Error returns the error string.
func (e *ArgumentRangeError) Error() string {
	return fmt.Sprintf("csmap: argument %s=%d out of range [0, %d)", e.Argument, e.Value, e.Count)
}

// Is reports whether the target error matches ArgumentRangeError.
func (e *ArgumentRangeError) Is(err error) bool {
	return err == ErrArgumentOutOfRange
}

// NewArgumentRangeError returns a new ArgumentRangeError.
func NewArgumentRangeError(argument string, value, count int) *ArgumentRangeError {
	return &ArgumentRangeError{Argument: argument, Value: value, Count: count}
}

// IsArgumentRange returns true if the error is an ArgumentRangeError.
func IsArgumentRange(err error) bool {
	if err == nil {
		return false
	}
	var e *ArgumentRangeError
	return errors.As(err, &e) || errors.Is(err, ErrArgumentOutOfRange)
}

// DuplicateConditionError reports a second condition on the same member.
type DuplicateConditionError struct {
	Member string // Member or column name
	Owner  string // Fragment table or complex type the condition was added to
}

// Error returns the error string.
func (e *DuplicateConditionError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("csmap: duplicate condition on member %q in %s", e.Member, e.Owner)
	}
	return fmt.Sprintf("csmap: duplicate condition on member %q", e.Member)
}

// Is reports whether the target error matches DuplicateConditionError.
func (e *DuplicateConditionError) Is(err error) bool {
	return err == ErrDuplicateCondition
}

// NewDuplicateConditionError returns a new DuplicateConditionError.
func NewDuplicateConditionError(member, owner string) *DuplicateConditionError {
	return &DuplicateConditionError{Member: member, Owner: owner}
}

// IsDuplicateCondition returns true if the error is a DuplicateConditionError.
func IsDuplicateCondition(err error) bool {
	if err == nil {
		return false
	}
	var e *DuplicateConditionError
	return errors.As(err, &e) || errors.Is(err, ErrDuplicateCondition)
}

// DuplicateMappingError reports a mapping registered twice under one key.
type DuplicateMappingError struct {
	Kind string // e.g. "set mapping", "query view"
	Name string
}

// Error returns the error string.
func (e *DuplicateMappingError) Error() string {
	return fmt.Sprintf("csmap: duplicate %s %q", e.Kind, e.Name)
}

// Is reports whether the target error matches DuplicateMappingError.
func (e *DuplicateMappingError) Is(err error) bool {
	return err == ErrDuplicateMapping
}

// NewDuplicateMappingError returns a new DuplicateMappingError.
func NewDuplicateMappingError(kind, name string) *DuplicateMappingError {
	return &DuplicateMappingError{Kind: kind, Name: name}
}

// MissingColumnError reports a result column that a member of Type, or a
// discriminator condition when Member is empty, is mapped to but the result
// set does not carry.
type MissingColumnError struct {
	Function string
	Type     string
	Member   string
	Column   string
}

// Error returns the error string.
func (e *MissingColumnError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("csmap: function import %s: result has no discriminator column %q", e.Function, e.Column)
	}
	return fmt.Sprintf("csmap: function import %s: result has no column %q for member %s.%s",
		e.Function, e.Column, e.Type, e.Member)
}

// Is reports whether the target error matches MissingColumnError.
func (e *MissingColumnError) Is(err error) bool {
	return err == ErrMissingColumn
}

// IsMissingColumn returns true if the error is a MissingColumnError.
func IsMissingColumn(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingColumnError
	return errors.As(err, &e) || errors.Is(err, ErrMissingColumn)
}

// TypeConditionError reports function import type conditions under which a
// mapped type can never be produced, or can be produced alongside others.
type TypeConditionError struct {
	Function  string
	Types     []string
	Ambiguous bool
}

// Error returns the error string.
func (e *TypeConditionError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("csmap: function import %s: conditions do not distinguish types %s",
			e.Function, strings.Join(e.Types, ", "))
	}
	return fmt.Sprintf("csmap: function import %s: type %s is unreachable under the mapped conditions",
		e.Function, strings.Join(e.Types, ", "))
}

// Is reports whether the target error matches TypeConditionError.
func (e *TypeConditionError) Is(err error) bool {
	return err == ErrInvalidTypeConditions
}

// StaleViewsError reports a signature mismatch between pre-generated views
// and the mapping they are applied to.
type StaleViewsError struct {
	Container string
	Expected  string
	Actual    string
}

// Error returns the error string.
func (e *StaleViewsError) Error() string {
	return fmt.Sprintf("csmap: pre-generated views for container %q were built from signature %s, mapping signature is %s",
		e.Container, e.Expected, e.Actual)
}

// Is reports whether the target error matches StaleViewsError.
func (e *StaleViewsError) Is(err error) bool {
	return err == ErrStaleViews
}

// KindFault is the panic value raised when a dispatcher meets a node kind it
// has no route for. It signals a programming defect, never bad input.
type KindFault struct {
	Site string // Dispatch point, e.g. "EdmType"
	Kind fmt.Stringer
	Node any
}

// Error returns the fault description.
func (f *KindFault) Error() string {
	return fmt.Sprintf("csmap: unhandled %s kind %v (%T)", f.Site, f.Kind, f.Node)
}

// NewKindFault returns a new KindFault.
func NewKindFault(site string, kind fmt.Stringer, node any) *KindFault {
	return &KindFault{Site: site, Kind: kind, Node: node}
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "csmap: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("csmap: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
