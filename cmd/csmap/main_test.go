package main

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/pregen"
	"github.com/syssam/csmap/signature"
	"github.com/syssam/csmap/viewgen"
)

const people = "../../internal/fixture/testdata/people.yaml"

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stderr)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCellgroups(t *testing.T) {
	out, _, err := execute(t, "cellgroups", people)
	require.NoError(t, err)
	assert.Contains(t, out, "Model (query views)\n")
	assert.Contains(t, out, "group 1: ")
	assert.NotContains(t, out, "group 2: ")
	assert.Contains(t, out, "foreign key orders(owner_id) -> people(id)\n")
	assert.NotContains(t, out, "type view")

	t.Run("UpdateViews", func(t *testing.T) {
		out, _, err := execute(t, "cellgroups", "--mode", "update", people)
		require.NoError(t, err)
		assert.Contains(t, out, "Model (update views)\n")
	})
	t.Run("TypeViews", func(t *testing.T) {
		out, _, err := execute(t, "cellgroups", "--views-for-each-type", people)
		require.NoError(t, err)
		assert.Contains(t, out, "type view People Model.Employee\n")
	})
	t.Run("YAML", func(t *testing.T) {
		out, _, err := execute(t, "cellgroups", "-o", "yaml", people)
		require.NoError(t, err)
		var views pregen.Views
		require.NoError(t, yaml.Unmarshal([]byte(out), &views))
		assert.Equal(t, "Model", views.Container)
		assert.Equal(t, "query", views.Mode)
		require.Len(t, views.Groups, 1)
		assert.Len(t, views.Groups[0].Cells, 5)
	})
	t.Run("UnknownFormat", func(t *testing.T) {
		_, _, err := execute(t, "cellgroups", "-o", "xml", people)
		assert.ErrorContains(t, err, `unknown output format "xml"`)
	})
	t.Run("UnknownMode", func(t *testing.T) {
		_, _, err := execute(t, "cellgroups", "--mode", "delete", people)
		assert.ErrorContains(t, err, `unknown mode "delete"`)
	})
	t.Run("MissingDescriptor", func(t *testing.T) {
		_, _, err := execute(t, "cellgroups", "testdata/missing.yaml")
		assert.ErrorContains(t, err, "failed to read mapping descriptor")
	})
	t.Run("Metrics", func(t *testing.T) {
		_, stderr, err := execute(t, "cellgroups", "--metrics", people)
		require.NoError(t, err)
		assert.Contains(t, stderr, "csmap_viewgen_cellgroup_computations_total 1")
	})
}

func TestValidate(t *testing.T) {
	out, _, err := execute(t, "validate", people)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, people+": "), out)
	assert.NotContains(t, out, "Errors:")
}

func TestSignature(t *testing.T) {
	out, _, err := execute(t, "signature", people)
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.Len(t, fields, 3)
	assert.Equal(t, people, fields[0])
	sig, err := signature.Parse(fields[1])
	require.NoError(t, err)
	assert.Equal(t, sig.Version().String(), fields[2])

	again, _, err := execute(t, "signature", people)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	_, _, err = execute(t, "signature", "--expect", fields[1], people)
	assert.NoError(t, err)
	_, _, err = execute(t, "signature", "--expect", signature.Signature{}.String(), people)
	assert.ErrorIs(t, err, csmap.ErrStaleViews)
	_, _, err = execute(t, "signature", "--expect", fields[1], people, people)
	assert.Error(t, err)
}

func TestPregen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen", "model_views.go")
	_, stderr, err := execute(t, "pregen", "--out", path, "--package", "modelviews", people)
	require.NoError(t, err)
	assert.Contains(t, stderr, "wrote pre-generated views")

	src, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(src), "package modelviews")
	assert.Contains(t, string(src), "pregen.Register(")
	assert.Regexp(t, `Container:\s+"Model"`, string(src))
}

func TestDiscriminate(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"P", "Model.Person"},
		{"E", "Model.Employee"},
		{"C", "Model.Customer"},
	}
	for _, tt := range tests {
		out, _, err := execute(t, "discriminate", people, "GetPeople", tt.value)
		require.NoError(t, err, tt.value)
		assert.Equal(t, tt.want+"\n", out)
	}

	_, _, err := execute(t, "discriminate", people, "GetPeople", "Z")
	assert.True(t, csmap.IsAmbiguousType(err), "%v", err)
	_, _, err = execute(t, "discriminate", people, "GetPeople", "NULL")
	assert.True(t, csmap.IsAmbiguousType(err), "%v", err)
	_, _, err = execute(t, "discriminate", people, "GetPeople")
	assert.ErrorContains(t, err, "takes 1 discriminator values (kind), got 0")
	_, _, err = execute(t, "discriminate", people, "GetNobody", "P")
	assert.ErrorContains(t, err, `unknown function import "GetNobody"`)
	_, _, err = execute(t, "discriminate", "--result-set", "3", people, "GetPeople", "P")
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blog.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY, author_id INTEGER REFERENCES users (id), body TEXT)",
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	out, _, err := execute(t, "inspect", "--dialect", "sqlite3", "--dsn", path)
	require.NoError(t, err)
	assert.Contains(t, out, "table users (id Int32 key, name String)\n")
	assert.Contains(t, out, "table posts (")
	assert.Contains(t, out, "body String null")
	assert.Contains(t, out, "foreign key posts(author_id) -> users(id)\n")

	_, _, err = execute(t, "inspect", "--dialect", "oracle", "--dsn", path)
	assert.ErrorContains(t, err, `unsupported dialect "oracle"`)
	_, _, err = execute(t, "inspect")
	assert.ErrorContains(t, err, "database.dsn is required")
}

func TestQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		"CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, city TEXT, zip TEXT, kind TEXT)",
		"INSERT INTO people VALUES (1, 'Ann', 'Oslo', '0150', 'P'), (2, 'Cid', NULL, NULL, 'C')",
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	out, _, err := execute(t, "query", people, "GetPeople",
		"--dialect", "sqlite3", "--dsn", path,
		"--sql", "SELECT id, name, city, zip, kind FROM people WHERE id >= ? ORDER BY id", "1")
	require.NoError(t, err)
	var rows []resultRow
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Model.Person", rows[0].Type)
	assert.Equal(t, "Ann", rows[0].Values["Name"])
	assert.Equal(t, map[string]any{"City": "Oslo", "Zip": "0150"}, rows[0].Values["Home"])
	assert.Equal(t, "Model.Customer", rows[1].Type)

	out, _, err = execute(t, "query", people, "GetAddresses",
		"--dialect", "sqlite3", "--dsn", path,
		"--sql", "SELECT city, zip AS postal_code FROM people WHERE id = 1")
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Model.Address", rows[0].Type)
	assert.Equal(t, map[string]any{"City": "Oslo", "Zip": "0150"}, rows[0].Values)

	_, _, err = execute(t, "query", people, "GetPeople", "--dialect", "sqlite3", "--dsn", path)
	assert.ErrorContains(t, err, "--sql is required")
	_, _, err = execute(t, "query", people, "GetPeople", "--dialect", "sqlite3", "--dsn", path,
		"--sql", "SELECT id, name FROM people")
	assert.True(t, csmap.IsMissingColumn(err), "%v", err)
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := loadConfig(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.Equal(t, "query", cfg.Views.Mode)
		assert.True(t, cfg.Views.UpdateViews)
		assert.Equal(t, "views", cfg.Pregen.Package)
		vc, err := cfg.viewConfig()
		require.NoError(t, err)
		def, err := viewgen.NewConfig()
		require.NoError(t, err)
		assert.Equal(t, def, vc)
	})
	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "csmap.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
views:
  mode: update
  views_for_each_type: true
  validate_update_views: false
database:
  dialect: postgres
  dsn: postgres://localhost/app
`), 0o644))
		cfg, err := loadConfig(viper.New(), path)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "postgres", cfg.Database.Dialect)
		vc, err := cfg.viewConfig()
		require.NoError(t, err)
		assert.Equal(t, viewgen.ModeUpdateViews, vc.Mode)
		assert.True(t, vc.GenerateViewsForEachType)
		assert.True(t, vc.GenerateUpdateViews)
		assert.False(t, vc.ValidateUpdateViews)

		var buf bytes.Buffer
		log, err := cfg.newLogger(&buf)
		require.NoError(t, err)
		log.Debug("hello")
		assert.Contains(t, buf.String(), `"msg":"hello"`)
	})
	t.Run("Env", func(t *testing.T) {
		t.Setenv("CSMAP_VIEWS_MODE", "update")
		cfg, err := loadConfig(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, "update", cfg.Views.Mode)
	})
	t.Run("MissingFile", func(t *testing.T) {
		_, err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
	t.Run("InvalidLogging", func(t *testing.T) {
		_, err := (&Config{Logging: LoggingConfig{Level: "loud"}}).newLogger(io.Discard)
		assert.Error(t, err)
		_, err = (&Config{Logging: LoggingConfig{Level: "info", Format: "xml"}}).newLogger(io.Discard)
		assert.Error(t, err)
	})
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: A\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, discardLogger(), []string{path}, func() error {
			runs.Add(1)
			return nil
		})
	}()
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("name: B\n"), 0o644))
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
