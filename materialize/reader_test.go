package materialize_test

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/materialize"
	"github.com/syssam/csmap/metadata"
)

type model struct {
	person, employee *metadata.EntityType
	fim              *mapping.FunctionImportMapping
}

// newModel maps GetPeople onto Person rows (kind = "P") and Employee rows
// (kind = "E"). Employee names are read from emp_name.
func newModel(t *testing.T) *model {
	t.Helper()
	person := &metadata.EntityType{
		Name:       "Person",
		Namespace:  "Model",
		KeyMembers: []string{"ID"},
		Properties: []*metadata.EdmProperty{
			metadata.NewProperty("ID", metadata.Primitive(metadata.Int64), false),
			metadata.NewProperty("Name", metadata.Primitive(metadata.String), true),
		},
	}
	employee := &metadata.EntityType{Name: "Employee", Namespace: "Model", Base: person, Properties: []*metadata.EdmProperty{
		metadata.NewProperty("Salary", metadata.Primitive(metadata.Int64), true),
	}}
	fn := &metadata.EdmFunction{Name: "GetPeople", Namespace: "Model", ReturnParameters: []*metadata.FunctionParameter{
		{TypeUsage: metadata.Usage(&metadata.CollectionType{Element: metadata.Usage(person)})},
	}}
	fim := mapping.NewFunctionImportMapping(fn, &metadata.EdmFunction{Name: "get_people", Namespace: "Store"})
	pm := mapping.NewFunctionImportEntityTypeMapping([]*metadata.EntityType{person}, nil)
	require.NoError(t, pm.AddCondition(mapping.NewConditionValue("kind", "P"), nil))
	em := mapping.NewFunctionImportEntityTypeMapping([]*metadata.EntityType{employee}, nil,
		mapping.ColumnRename{Member: "Name", Column: "emp_name"})
	require.NoError(t, em.AddCondition(mapping.NewConditionValue("kind", "E"), nil))
	require.NoError(t, fim.AddResultMapping(pm, em))
	return &model{person: person, employee: employee, fim: fim}
}

var peopleColumns = []string{"id", "name", "emp_name", "salary", "kind"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestQuery(t *testing.T) {
	m := newModel(t)
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT * FROM get_people()").WillReturnRows(
		sqlmock.NewRows(peopleColumns).
			AddRow(int64(1), "Ann", nil, nil, "P").
			AddRow(int64(2), nil, "Bob", int64(100), "E"),
	).RowsWillBeClosed()

	rows, err := materialize.Query(context.Background(), db, m.fim, "SELECT * FROM get_people()", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Same(t, m.person, rows[0].Type)
	assert.Equal(t, map[string]any{"ID": int64(1), "Name": "Ann"}, rows[0].Values)
	assert.Same(t, m.employee, rows[1].Type)
	assert.Equal(t, map[string]any{"ID": int64(2), "Name": "Bob", "Salary": int64(100)}, rows[1].Values)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReader(t *testing.T) {
	m := newModel(t)
	ctx := context.Background()

	t.Run("AmbiguousRow", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows(peopleColumns).AddRow(int64(1), "Ann", nil, nil, "X"))
		sqlRows, err := db.QueryContext(ctx, "q")
		require.NoError(t, err)
		r, err := materialize.NewReader(sqlRows, m.fim)
		require.NoError(t, err)
		defer r.Close()
		_, err = r.Next(ctx)
		assert.True(t, csmap.IsAmbiguousType(err))
	})

	t.Run("MissingDiscriminator", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ann"))
		_, err := materialize.Query(ctx, db, m.fim, "q", nil)
		require.Error(t, err)
		assert.True(t, csmap.IsMissingColumn(err))
		assert.Contains(t, err.Error(), `discriminator column "kind"`)
	})

	t.Run("MissingMemberColumn", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows([]string{"id", "name", "salary", "kind"}).
			AddRow(int64(1), "Ann", nil, "P").
			AddRow(int64(2), "Bob", int64(10), "E"))
		sqlRows, err := db.QueryContext(ctx, "q")
		require.NoError(t, err)
		r, err := materialize.NewReader(sqlRows, m.fim)
		require.NoError(t, err)
		defer r.Close()
		row, err := r.Next(ctx)
		require.NoError(t, err)
		assert.Same(t, m.person, row.Type)
		_, err = r.Next(ctx)
		var missing *csmap.MissingColumnError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "Model.Employee", missing.Type)
		assert.Equal(t, "Name", missing.Member)
		assert.Equal(t, "emp_name", missing.Column)
	})

	t.Run("CaseFolding", func(t *testing.T) {
		db, mock := newMock(t)
		columns := []string{"ID", "NAME", "EMP_NAME", "SALARY", "KIND"}
		mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(1), "Ann", nil, nil, "P"))
		rows, err := materialize.Query(ctx, db, m.fim, "q", nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Ann", rows[0].Values["Name"])

		mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(1), "Ann", nil, nil, "P"))
		_, err = materialize.Query(ctx, db, m.fim, "q", nil, materialize.WithExactColumnNames())
		assert.True(t, csmap.IsMissingColumn(err))
	})

	t.Run("EOF", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows(peopleColumns))
		sqlRows, err := db.QueryContext(ctx, "q")
		require.NoError(t, err)
		r, err := materialize.NewReader(sqlRows, m.fim)
		require.NoError(t, err)
		_, err = r.Next(ctx)
		assert.ErrorIs(t, err, io.EOF)
		assert.NoError(t, r.Close())
	})

	t.Run("Canceled", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows(peopleColumns).AddRow(int64(1), "Ann", nil, nil, "P"))
		sqlRows, err := db.QueryContext(ctx, "q")
		require.NoError(t, err)
		r, err := materialize.NewReader(sqlRows, m.fim)
		require.NoError(t, err)
		defer r.Close()
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = r.Next(canceled)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("QueryError", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("q").WillReturnError(sql.ErrConnDone)
		_, err := materialize.Query(ctx, db, m.fim, "q", nil)
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.Contains(t, err.Error(), "Model.GetPeople")
	})

	t.Run("ResultSetOutOfRange", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows(peopleColumns))
		_, err := materialize.Query(ctx, db, m.fim, "q", nil, materialize.WithResultSet(3))
		assert.True(t, csmap.IsArgumentRange(err))
	})

	t.Run("Options", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows(peopleColumns))
		_, err := materialize.Query(ctx, db, m.fim, "q", nil, materialize.WithLogger(nil))
		assert.Error(t, err)
	})

	t.Run("Logging", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows(peopleColumns).
			AddRow(int64(1), "Ann", nil, nil, "P").
			AddRow(int64(2), nil, "Bob", nil, "E"))
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		_, err := materialize.Query(ctx, db, m.fim, "q", nil, materialize.WithLogger(logger))
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "materialized function import rows")
		assert.Contains(t, buf.String(), "function=Model.GetPeople")
		assert.Contains(t, buf.String(), "rows=2")
	})
}

func TestComplexResult(t *testing.T) {
	address := &metadata.ComplexType{Name: "Address", Namespace: "Model", Properties: []*metadata.EdmProperty{
		metadata.NewProperty("City", metadata.Primitive(metadata.String), true),
		metadata.NewProperty("Zip", metadata.Primitive(metadata.String), true),
	}}
	fn := &metadata.EdmFunction{Name: "GetAddresses", Namespace: "Model", ReturnParameters: []*metadata.FunctionParameter{
		{TypeUsage: metadata.Usage(&metadata.CollectionType{Element: metadata.Usage(address)})},
	}}
	fim := mapping.NewFunctionImportMapping(fn, &metadata.EdmFunction{Name: "get_addresses", Namespace: "Store"})
	require.NoError(t, fim.AddResultMapping(mapping.NewFunctionImportComplexTypeMapping(address,
		mapping.ColumnRename{Member: "Zip", Column: "postal_code"})))

	db, mock := newMock(t)
	mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows([]string{"city", "postal_code"}).AddRow("Oslo", "0150"))
	rows, err := materialize.Query(context.Background(), db, fim, "q", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Same(t, address, rows[0].Type)
	assert.Equal(t, map[string]any{"City": "Oslo", "Zip": "0150"}, rows[0].Values)
}

func TestComplexMember(t *testing.T) {
	address := &metadata.ComplexType{Name: "Address", Namespace: "Model", Properties: []*metadata.EdmProperty{
		metadata.NewProperty("City", metadata.Primitive(metadata.String), true),
	}}
	customer := &metadata.EntityType{Name: "Customer", Namespace: "Model", Properties: []*metadata.EdmProperty{
		metadata.NewProperty("ID", metadata.Primitive(metadata.Int64), false),
		metadata.NewProperty("Home", address, true),
	}}
	fn := &metadata.EdmFunction{Name: "GetCustomers", Namespace: "Model", ReturnParameters: []*metadata.FunctionParameter{
		{TypeUsage: metadata.Usage(&metadata.CollectionType{Element: metadata.Usage(customer)})},
	}}
	fim := mapping.NewFunctionImportMapping(fn, &metadata.EdmFunction{Name: "get_customers", Namespace: "Store"})

	db, mock := newMock(t)
	mock.ExpectQuery("q").WillReturnRows(sqlmock.NewRows([]string{"ID", "City"}).AddRow(int64(7), "Bergen"))
	rows, err := materialize.Query(context.Background(), db, fim, "q", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Same(t, customer, rows[0].Type)
	assert.Equal(t, map[string]any{"ID": int64(7), "Home": map[string]any{"City": "Bergen"}}, rows[0].Values)
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{
		"CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, emp_name TEXT, salary INTEGER, kind TEXT NOT NULL)",
		"INSERT INTO people (id, name, kind) VALUES (1, 'Ann', 'P')",
		"INSERT INTO people (id, emp_name, salary, kind) VALUES (2, 'Bob', 100, 'E')",
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	m := newModel(t)
	rows, err := materialize.Query(ctx, db, m.fim, "SELECT id, name, emp_name, salary, kind FROM people ORDER BY id", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Same(t, m.person, rows[0].Type)
	assert.Equal(t, "Ann", rows[0].Values["Name"])
	assert.Same(t, m.employee, rows[1].Type)
	assert.Equal(t, "Bob", rows[1].Values["Name"])
	assert.EqualValues(t, 100, rows[1].Values["Salary"])
}
