package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/syssam/csmap/materialize"
	"github.com/syssam/csmap/metadata"
	"github.com/syssam/csmap/metadata/atlasschema"
	"github.com/syssam/csmap/viewgen"
)

// driverName returns the database/sql driver registered for dialect.
func driverName(dialect string) (string, error) {
	switch dialect {
	case atlasschema.SQLite, "sqlite":
		return "sqlite", nil
	case atlasschema.Postgres:
		return "postgres", nil
	case atlasschema.MySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q; use sqlite3, postgres or mysql", dialect)
	}
}

func (c *cli) inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the storage container of a live database",
		Long: "Inspects a database schema and prints the tables and foreign key constraints a storage " +
			"container built from it holds.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.inspect(cmd.Context(), cmd.OutOrStdout())
		},
	}
	c.bindDatabaseFlags(cmd)
	return cmd
}

func (c *cli) bindDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().String("dialect", "", "Database dialect: sqlite3, postgres or mysql")
	cmd.Flags().String("dsn", "", "Data source name")
	cmd.Flags().String("schema", "", "Schema to inspect (default the connection's schema)")
}

// openDB opens the configured database.
func (c *cli) openDB() (*sql.DB, error) {
	dbc := c.cfg.Database
	if dbc.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	driver, err := driverName(dbc.Dialect)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dbc.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dbc.Dialect, err)
	}
	return db, nil
}

func (c *cli) inspect(ctx context.Context, w io.Writer) error {
	db, err := c.openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	dbc := c.cfg.Database
	store, err := atlasschema.Inspect(ctx, db, dbc.Dialect, dbc.Schema, atlasschema.WithLogger(c.log))
	if err != nil {
		return err
	}
	printStore(w, store)
	return nil
}

func printStore(w io.Writer, store *metadata.EntityContainer) {
	fmt.Fprintf(w, "container %s\n", store.Name)
	for _, set := range store.EntitySets() {
		key := make(map[string]bool, len(set.EntityType.KeyMembers))
		for _, k := range set.EntityType.KeyMembers {
			key[k] = true
		}
		cols := make([]string, len(set.EntityType.Properties))
		for i, p := range set.EntityType.Properties {
			col := p.Name
			if t := p.Type(); t != nil {
				col += " " + t.TypeName()
			}
			if key[p.Name] {
				col += " key"
			}
			if p.Nullable {
				col += " null"
			}
			cols[i] = col
		}
		fmt.Fprintf(w, "table %s (%s)\n", set.TableName(), strings.Join(cols, ", "))
	}
	for _, fk := range viewgen.ForeignConstraints(store) {
		fmt.Fprintf(w, "foreign key %s\n", fk)
	}
}

func (c *cli) queryCmd() *cobra.Command {
	var (
		query     string
		resultSet int
		slow      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "query <descriptor> <function> [arg]...",
		Short: "Run a function import query and print the materialized rows",
		Long: "Runs --sql against the configured database, resolves the entity type of every result row " +
			"and prints the rows as YAML.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				return fmt.Errorf("--sql is required")
			}
			qargs := make([]any, len(args)-2)
			for i, a := range args[2:] {
				qargs[i] = a
			}
			return c.query(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], query, qargs, resultSet, slow)
		},
	}
	cmd.Flags().StringVar(&query, "sql", "", "Query returning the function import result")
	cmd.Flags().IntVar(&resultSet, "result-set", 0, "Result set index")
	cmd.Flags().DurationVar(&slow, "slow", 100*time.Millisecond, "Log queries slower than this")
	c.bindDatabaseFlags(cmd)
	return cmd
}

// resultRow is the printed form of a materialized row.
type resultRow struct {
	Type   string         `yaml:"type"`
	Values map[string]any `yaml:"values"`
}

func (c *cli) query(ctx context.Context, w io.Writer, path, function, query string, args []any, resultSet int, slow time.Duration) error {
	cms, err := loadAll([]string{path})
	if err != nil {
		return err
	}
	fim := cms[0].FunctionImportMapping(function)
	if fim == nil {
		return fmt.Errorf("%s: unknown function import %q", path, function)
	}
	db, err := c.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	sq := materialize.NewStatsQuerier(db, materialize.WithSlowThreshold(slow), materialize.WithSlowQueryLog(c.log))
	rows, err := materialize.Query(ctx, sq, fim, query, args,
		materialize.WithResultSet(resultSet),
		materialize.WithLogger(c.log),
	)
	if err != nil {
		return err
	}
	c.log.Debug("query statistics", "function", function, "stats", sq.QueryStats().Stats().String())

	out := make([]resultRow, len(rows))
	for i, r := range rows {
		out[i] = resultRow{Type: r.Type.FullName(), Values: r.Values}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
