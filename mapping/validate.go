package mapping

import (
	"fmt"
	"strings"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/metadata"
)

// ValidationError represents a mapping validation finding.
type ValidationError struct {
	Set      string
	Member   string
	Message  string
	Location SourceLocation
	Err      error
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	if !e.Location.IsZero() {
		sb.WriteString(e.Location.String())
		sb.WriteString(": ")
	}
	sb.WriteString(e.Set)
	if e.Member != "" {
		sb.WriteString(".")
		sb.WriteString(e.Member)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	return sb.String()
}

// Unwrap returns the underlying error, if any.
func (e *ValidationError) Unwrap() error { return e.Err }

// ValidationResult holds the results of mapping validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the errors as one error, or nil.
func (r *ValidationResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return csmap.NewAggregateError(errs...)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures mapping validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	ambiguity bool
}

// ValidateAmbiguity also reports discriminator value combinations of
// function imports that leave more than one entity type.
func ValidateAmbiguity() ValidateOption {
	return func(c *validateConfig) {
		c.ambiguity = true
	}
}

// Validate checks a container mapping:
//
//   - an association set whose end entity set has a query view must have
//     a query view itself;
//   - every mapped entity type of a function import result set must be
//     producible by some discriminator value combination;
//   - an IS NULL condition on a non-nullable column is flagged as a warning.
//
// Example:
//
//	result := mapping.Validate(cm, mapping.ValidateAmbiguity())
//	if result.HasErrors() {
//	    return result.Err()
//	}
func Validate(cm *ContainerMapping, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	validateQueryViewsClosure(cm, result)
	v := &conditionValidator{result: result}
	v.Walker = NewWalker(v)
	v.VisitContainerMapping(cm)
	for _, fm := range cm.functionImports {
		validateFunctionImport(fm, cfg, result)
	}
	return result
}

func validateQueryViewsClosure(cm *ContainerMapping, result *ValidationResult) {
	withViews := make(map[*metadata.EntitySet]bool)
	for _, m := range cm.EntitySetMappings() {
		if m.HasQueryView() {
			withViews[m.EntitySet] = true
		}
	}
	for _, m := range cm.AssociationSetMappings() {
		if m.HasQueryView() || m.AssociationSet == nil {
			continue
		}
		for _, end := range m.AssociationSet.Ends {
			if end.EntitySet != nil && withViews[end.EntitySet] {
				result.Errors = append(result.Errors, &ValidationError{
					Set:      m.AssociationSet.Name,
					Message:  fmt.Sprintf("entity set %s has a query view; the association set must have one too", end.EntitySet.Name),
					Location: m.Location,
				})
				break
			}
		}
	}
}

// conditionValidator walks fragments looking for contradictory conditions.
type conditionValidator struct {
	*Walker
	result *ValidationResult
}

func (v *conditionValidator) VisitMappingFragment(f *MappingFragment) {
	for _, c := range f.Conditions() {
		if c.IsNull != nil && *c.IsNull && c.Column != nil && !c.Column.Nullable {
			v.result.Warnings = append(v.result.Warnings, &ValidationError{
				Set:      f.Table.TableName(),
				Member:   c.Column.Name,
				Message:  "IS NULL condition on a non-nullable column never holds",
				Location: c.Location,
			})
		}
	}
	v.Walker.VisitMappingFragment(f)
}

// Metadata needs no validation here.
func (*conditionValidator) VisitEntityContainer(*metadata.EntityContainer) {}
func (*conditionValidator) VisitEdmFunction(*metadata.EdmFunction)         {}

func validateFunctionImport(fm *FunctionImportMapping, cfg *validateConfig, result *ValidationResult) {
	for i := 0; i < fm.ResultSets(); i++ {
		kb, err := fm.KB(i)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				Set:      fm.FunctionImport.FullName(),
				Message:  err.Error(),
				Location: fm.Location,
				Err:      err,
			})
			continue
		}
		kb.ValidateTypeConditions(cfg.ambiguity, func(err error) {
			result.Errors = append(result.Errors, &ValidationError{
				Set:      fm.FunctionImport.FullName(),
				Message:  err.Error(),
				Location: fm.Location,
				Err:      err,
			})
		})
	}
}
