// Package atlasschema builds storage entity containers from Atlas schemas,
// either given directly or inspected from a live database.
package atlasschema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/csmap/metadata"
)

// Supported dialects of Inspect.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite3"
	Postgres = "postgres"
)

// Option configures how a schema is converted.
type Option func(*config)

type config struct {
	name      string
	namespace string
	log       *slog.Logger
}

// WithContainerName sets the container name. Default is the schema name,
// or "Store" for an unnamed schema.
func WithContainerName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithNamespace sets the namespace of the table row types. Default is the
// container name.
func WithNamespace(ns string) Option {
	return func(c *config) {
		c.namespace = ns
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// FromSchema returns a storage container with one entity set per table and
// one association set per foreign key. Foreign keys referencing tables
// outside s are skipped.
func FromSchema(s *schema.Schema, opts ...Option) (*metadata.EntityContainer, error) {
	if s == nil {
		return nil, fmt.Errorf("atlasschema: nil schema")
	}
	cfg := &config{name: s.Name, log: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.name == "" {
		cfg.name = "Store"
	}
	if cfg.namespace == "" {
		cfg.namespace = cfg.name
	}
	c := metadata.NewEntityContainer(cfg.name)
	sets := make(map[*schema.Table]*metadata.EntitySet, len(s.Tables))
	for _, t := range s.Tables {
		set := entitySet(t, s.Name, cfg.namespace)
		if err := c.AddSet(set); err != nil {
			return nil, fmt.Errorf("atlasschema: table %s: %w", t.Name, err)
		}
		sets[t] = set
	}
	var fks int
	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys {
			parent, ok := sets[fk.RefTable]
			if !ok {
				cfg.log.Debug("skipping foreign key to table outside schema",
					"schema", s.Name, "table", t.Name, "foreign_key", fk.Symbol)
				continue
			}
			set, err := associationSet(fk, sets[t], parent, cfg.namespace)
			if err != nil {
				return nil, err
			}
			if err := c.AddSet(set); err != nil {
				return nil, fmt.Errorf("atlasschema: foreign key %s: %w", set.Name, err)
			}
			fks++
		}
	}
	cfg.log.Debug("built storage container",
		"container", cfg.name,
		"tables", len(s.Tables),
		"foreign_keys", fks,
	)
	return c, nil
}

func entitySet(t *schema.Table, schemaName, ns string) *metadata.EntitySet {
	et := &metadata.EntityType{Name: t.Name, Namespace: ns}
	for _, col := range t.Columns {
		var (
			typ  schema.Type
			null bool
		)
		if col.Type != nil {
			typ, null = col.Type.Type, col.Type.Null
		}
		et.Properties = append(et.Properties, metadata.NewProperty(col.Name, Primitive(typ), null))
	}
	if t.PrimaryKey != nil {
		for _, part := range t.PrimaryKey.Parts {
			if part.C != nil {
				et.KeyMembers = append(et.KeyMembers, part.C.Name)
			}
		}
	}
	return &metadata.EntitySet{Name: t.Name, EntityType: et, Schema: schemaName}
}

// associationSet declares fk as a relationship from the referenced (parent)
// table to the referencing (child) table.
func associationSet(fk *schema.ForeignKey, child, parent *metadata.EntitySet, ns string) (*metadata.AssociationSet, error) {
	if len(fk.Columns) != len(fk.RefColumns) {
		return nil, fmt.Errorf("atlasschema: foreign key %s: %d columns reference %d columns",
			fk.Symbol, len(fk.Columns), len(fk.RefColumns))
	}
	name := fk.Symbol
	if name == "" {
		name = "fk_" + child.Name + "_" + parent.Name
	}
	parentEnd := &metadata.AssociationEndMember{Name: parent.Name, EntityType: parent.EntityType, Multiplicity: metadata.One}
	childEnd := &metadata.AssociationEndMember{Name: child.Name, EntityType: child.EntityType, Multiplicity: metadata.Many}
	if childEnd.Name == parentEnd.Name {
		childEnd.Name += "1"
	}
	constraint := &metadata.ReferentialConstraint{FromRole: parentEnd, ToRole: childEnd}
	for i, col := range fk.Columns {
		from := parent.EntityType.Property(fk.RefColumns[i].Name)
		to := child.EntityType.Property(col.Name)
		if from == nil || to == nil {
			return nil, fmt.Errorf("atlasschema: foreign key %s: unknown column %s.%s or %s.%s",
				name, child.Name, col.Name, parent.Name, fk.RefColumns[i].Name)
		}
		if to.Nullable {
			parentEnd.Multiplicity = metadata.ZeroOrOne
		}
		constraint.FromProperties = append(constraint.FromProperties, from)
		constraint.ToProperties = append(constraint.ToProperties, to)
	}
	at := &metadata.AssociationType{
		Name:        name,
		Namespace:   ns,
		Ends:        []*metadata.AssociationEndMember{parentEnd, childEnd},
		Constraints: []*metadata.ReferentialConstraint{constraint},
	}
	return &metadata.AssociationSet{
		Name:            name,
		AssociationType: at,
		Ends: []*metadata.AssociationSetEnd{
			{Role: parentEnd, EntitySet: parent},
			{Role: childEnd, EntitySet: child},
		},
	}, nil
}

// Primitive returns the primitive type a column type is read as. Unknown
// types are read as strings.
func Primitive(t schema.Type) *metadata.PrimitiveType {
	switch t := t.(type) {
	case *schema.BoolType:
		return metadata.Primitive(metadata.Boolean)
	case *schema.IntegerType:
		switch strings.ToLower(t.T) {
		case "tinyint":
			return metadata.Primitive(metadata.Byte)
		case "smallint", "int2":
			return metadata.Primitive(metadata.Int16)
		case "bigint", "int8":
			return metadata.Primitive(metadata.Int64)
		default:
			return metadata.Primitive(metadata.Int32)
		}
	case *schema.FloatType:
		switch strings.ToLower(t.T) {
		case "real", "float4":
			return metadata.Primitive(metadata.Single)
		}
		if t.Precision > 0 && t.Precision <= 24 {
			return metadata.Primitive(metadata.Single)
		}
		return metadata.Primitive(metadata.Double)
	case *schema.DecimalType:
		return metadata.Primitive(metadata.Decimal)
	case *schema.TimeType:
		if strings.HasPrefix(strings.ToLower(t.T), "time") && !strings.HasPrefix(strings.ToLower(t.T), "timestamp") {
			return metadata.Primitive(metadata.Time)
		}
		return metadata.Primitive(metadata.DateTime)
	case *schema.BinaryType:
		return metadata.Primitive(metadata.Binary)
	case *schema.UUIDType:
		return metadata.Primitive(metadata.Guid)
	default:
		return metadata.Primitive(metadata.String)
	}
}

// inspector is implemented by the Atlas dialect drivers.
type inspector interface {
	InspectSchema(ctx context.Context, name string, opts *schema.InspectOptions) (*schema.Schema, error)
}

// Inspect reads schema name from db through the Atlas driver of dialect and
// converts it with FromSchema. An empty name selects the connection's
// current schema.
func Inspect(ctx context.Context, db *sql.DB, dialect, name string, opts ...Option) (*metadata.EntityContainer, error) {
	var (
		drv inspector
		err error
	)
	switch dialect {
	case SQLite, "sqlite":
		drv, err = sqlite.Open(db)
	case Postgres:
		drv, err = postgres.Open(db)
	case MySQL:
		drv, err = mysql.Open(db)
	default:
		return nil, fmt.Errorf("atlasschema: unsupported dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("atlasschema: open %s driver: %w", dialect, err)
	}
	s, err := drv.InspectSchema(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("atlasschema: inspect schema %q: %w", name, err)
	}
	return FromSchema(s, opts...)
}
