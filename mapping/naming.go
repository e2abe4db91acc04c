package mapping

import "github.com/go-openapi/inflect"

// ColumnNamer derives the default column name of a member.
type ColumnNamer func(member string) string

// MemberColumns names a column after its member unchanged.
func MemberColumns(member string) string { return member }

// SnakeCaseColumns names a column after its member in snake case
// ("FirstName" -> "first_name").
func SnakeCaseColumns(member string) string { return inflect.Underscore(member) }
