// Package materialize reads the result rows of a function import from
// database/sql. Each row is discriminated into an entity type through the
// result set's knowledge base, and its columns are mapped to members through
// the column renames of that type.
package materialize

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/text/cases"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/metadata"
)

// Querier is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Option configures a Reader.
type Option func(*config) error

type config struct {
	log       *slog.Logger
	resultSet int
	exact     bool
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return fmt.Errorf("materialize: logger cannot be nil")
		}
		c.log = l
		return nil
	}
}

// WithResultSet selects the result set the rows belong to. Default 0.
func WithResultSet(i int) Option {
	return func(c *config) error {
		c.resultSet = i
		return nil
	}
}

// WithExactColumnNames matches result columns by exact name. By default
// column names are matched under Unicode case folding.
func WithExactColumnNames() Option {
	return func(c *config) error {
		c.exact = true
		return nil
	}
}

// Row is a materialized result row.
type Row struct {
	// Type is the discriminated entity type, or the declared return type
	// of a result set without entity mappings.
	Type metadata.StructuralType
	// Values maps member names to column values. Complex members hold a
	// nested map[string]any.
	Values map[string]any
}

// Reader materializes the rows of one function import result set. A Reader
// is not safe for concurrent use.
type Reader struct {
	rows    *sql.Rows
	kb      *mapping.StructuralTypeMappingKB
	log     *slog.Logger
	fold    cases.Caser
	exact   bool
	columns map[string]int
	// discriminators holds the column index of each discriminator column.
	discriminators []int
	plans          map[metadata.StructuralType]*plan
	dest           []any
	count          int
}

// NewReader returns a Reader over rows for a result set of fim. The
// discriminator columns of the result set must be present.
func NewReader(rows *sql.Rows, fim *mapping.FunctionImportMapping, opts ...Option) (*Reader, error) {
	cfg := &config{log: slog.Default()}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	kb, err := fim.KB(cfg.resultSet)
	if err != nil {
		return nil, err
	}
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("materialize: read columns: %w", err)
	}
	r := &Reader{
		rows:    rows,
		kb:      kb,
		log:     cfg.log,
		fold:    cases.Fold(),
		exact:   cfg.exact,
		columns: make(map[string]int, len(names)),
		plans:   make(map[metadata.StructuralType]*plan),
		dest:    make([]any, len(names)),
	}
	for i, name := range names {
		key := r.key(name)
		if _, ok := r.columns[key]; !ok {
			r.columns[key] = i
		}
		r.dest[i] = new(any)
	}
	for _, column := range kb.DiscriminatorColumns {
		i, ok := r.column(column)
		if !ok {
			return nil, &csmap.MissingColumnError{Function: kb.Function, Column: column}
		}
		r.discriminators = append(r.discriminators, i)
	}
	return r, nil
}

func (r *Reader) key(name string) string {
	if r.exact {
		return name
	}
	return r.fold.String(name)
}

func (r *Reader) column(name string) (int, bool) {
	i, ok := r.columns[r.key(name)]
	return i, ok
}

// Next materializes the next row. It returns io.EOF after the last row.
func (r *Reader) Next(ctx context.Context) (*Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, fmt.Errorf("materialize: %w", err)
		}
		return nil, io.EOF
	}
	if err := r.rows.Scan(r.dest...); err != nil {
		return nil, fmt.Errorf("materialize: scan row %d: %w", r.count, err)
	}
	values := make([]any, len(r.dest))
	for i, d := range r.dest {
		values[i] = normalize(*d.(*any))
	}
	t, err := r.resolve(values)
	if err != nil {
		return nil, err
	}
	p, err := r.plan(t)
	if err != nil {
		return nil, err
	}
	r.count++
	return &Row{Type: t, Values: p.fill(values)}, nil
}

// ReadAll materializes the remaining rows.
func (r *Reader) ReadAll(ctx context.Context) ([]*Row, error) {
	var rows []*Row
	for {
		row, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// Close closes the underlying rows.
func (r *Reader) Close() error {
	r.log.Debug("materialized function import rows",
		"function", r.kb.Function,
		"result_set", r.kb.ResultSet,
		"rows", r.count,
	)
	return r.rows.Close()
}

func (r *Reader) resolve(values []any) (metadata.StructuralType, error) {
	if len(r.kb.MappedEntityTypes) == 0 {
		if st, ok := r.kb.ReturnType.(metadata.StructuralType); ok {
			return st, nil
		}
		return nil, fmt.Errorf("materialize: result set %d of %s has no structural return type", r.kb.ResultSet, r.kb.Function)
	}
	discriminators := make([]any, len(r.discriminators))
	for i, c := range r.discriminators {
		discriminators[i] = values[c]
	}
	t, err := r.kb.Discriminate(discriminators)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// plan locates the column of every property of t, once per type.
func (r *Reader) plan(t metadata.StructuralType) (*plan, error) {
	if p, ok := r.plans[t]; ok {
		return p, nil
	}
	p, err := r.build(t)
	if err != nil {
		return nil, err
	}
	r.plans[t] = p
	return p, nil
}

func (r *Reader) build(t metadata.StructuralType) (*plan, error) {
	p := &plan{}
	for _, m := range t.Members() {
		prop, ok := m.(*metadata.EdmProperty)
		if !ok {
			continue
		}
		if ct, ok := prop.Type().(*metadata.ComplexType); ok {
			nested, err := r.build(ct)
			if err != nil {
				return nil, err
			}
			p.members = append(p.members, memberColumn{name: prop.Name, nested: nested})
			continue
		}
		column := r.kb.ColumnName(t, prop.Name)
		i, ok := r.column(column)
		if !ok {
			return nil, &csmap.MissingColumnError{
				Function: r.kb.Function,
				Type:     t.FullName(),
				Member:   prop.Name,
				Column:   column,
			}
		}
		p.members = append(p.members, memberColumn{name: prop.Name, index: i})
	}
	return p, nil
}

type plan struct {
	members []memberColumn
}

type memberColumn struct {
	name   string
	index  int
	nested *plan
}

func (p *plan) fill(values []any) map[string]any {
	out := make(map[string]any, len(p.members))
	for _, m := range p.members {
		if m.nested != nil {
			out[m.name] = m.nested.fill(values)
			continue
		}
		out[m.name] = values[m.index]
	}
	return out
}

// normalize copies driver byte slices into strings.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Query runs query on q and materializes every row of the result.
//
//	rows, err := materialize.Query(ctx, db, fim, "SELECT * FROM get_people()", nil)
func Query(ctx context.Context, q Querier, fim *mapping.FunctionImportMapping, query string, args []any, opts ...Option) (rows []*Row, rerr error) {
	sqlRows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("materialize: query %s: %w", fim.FunctionImport.FullName(), err)
	}
	r, err := NewReader(sqlRows, fim, opts...)
	if err != nil {
		return nil, errors.Join(err, sqlRows.Close())
	}
	defer func() { rerr = errors.Join(rerr, r.Close()) }()
	return r.ReadAll(ctx)
}
