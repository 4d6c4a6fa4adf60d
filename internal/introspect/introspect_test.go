package introspect

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reloquent/tabledoc/internal/schema"
)

var columnHeader = []string{"column_name", "data_type", "is_nullable", "column_default",
	"character_maximum_length", "numeric_precision", "numeric_scale", "comment"}

func newMock(t *testing.T, driver, schemaName string) (*Introspector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	in, err := New(db, driver, Options{Schema: schemaName})
	require.NoError(t, err)
	return in, mock
}

func TestTable_Postgres(t *testing.T) {
	in, mock := newMock(t, "postgresql", "public")

	mock.ExpectQuery(`FROM information_schema\.columns`).
		WithArgs("public", "TRN_Order").
		WillReturnRows(sqlmock.NewRows(columnHeader).
			AddRow("id", "integer", "NO", "nextval('\"TRN_Order_id_seq\"'::regclass)", nil, 32, 0, nil).
			AddRow("customer_id", "bigint", "NO", nil, nil, 64, 0, "buyer").
			AddRow("code", "character varying", "NO", nil, 20, nil, nil, nil).
			AddRow("total", "numeric", "YES", "0", nil, 12, 2, nil).
			AddRow("placed_at", "timestamp without time zone", "NO", "now()", nil, nil, nil, nil))
	mock.ExpectQuery(`constraint_type = 'PRIMARY KEY'`).
		WithArgs("public", "TRN_Order").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))
	mock.ExpectQuery(`FROM pg_index`).
		WithArgs("public", "TRN_Order").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "attname", "indisunique", "is_constraint"}).
			AddRow("TRN_Order_code_key", "code", true, true).
			AddRow("idx_order_customer_placed", "customer_id", false, false).
			AddRow("idx_order_customer_placed", "placed_at", false, false))
	mock.ExpectQuery(`FROM pg_constraint c\s+JOIN`).
		WithArgs("public", "TRN_Order").
		WillReturnRows(sqlmock.NewRows([]string{"conname", "attname", "relname", "ref", "upd", "del"}).
			AddRow("fk_order_customer", "customer_id", "MST_Customer", "id", "NO ACTION", "CASCADE"))

	tbl, err := in.Table(context.Background(), "TRN_Order")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, tbl.Columns, 5)
	assert.Equal(t, "INTEGER", tbl.Columns[0].Type)
	assert.True(t, tbl.Columns[0].PrimaryKey)
	assert.False(t, tbl.Columns[0].Nullable)
	assert.Equal(t, "BIGINT", tbl.Columns[1].Type)
	assert.Equal(t, "buyer", tbl.Columns[1].Comment)
	assert.Equal(t, "VARCHAR(20)", tbl.Columns[2].FullType())
	assert.True(t, tbl.Columns[2].Unique)
	assert.Equal(t, "DECIMAL(12,2)", tbl.Columns[3].FullType())
	assert.True(t, tbl.Columns[3].Nullable)
	require.NotNil(t, tbl.Columns[4].Default)
	assert.Equal(t, "now()", *tbl.Columns[4].Default)
	assert.Equal(t, "TIMESTAMP", tbl.Columns[4].Type)

	require.Len(t, tbl.Indexes, 1)
	assert.Equal(t, schema.Index{Name: "idx_order_customer_placed", Columns: []string{"customer_id", "placed_at"}}, tbl.Indexes[0])

	require.Len(t, tbl.ForeignKeys, 1)
	fk := tbl.ForeignKeys[0]
	assert.Equal(t, "MST_Customer", fk.ReferenceTable)
	assert.Equal(t, []string{"customer_id"}, fk.Columns)
	assert.Equal(t, []string{"id"}, fk.ReferenceColumns)
	assert.Equal(t, schema.NoAction, fk.OnUpdate)
	assert.Equal(t, schema.Cascade, fk.OnDelete)
}

func TestTable_MySQL(t *testing.T) {
	in, mock := newMock(t, "mysql", "shop")

	mock.ExpectQuery(`FROM information_schema\.COLUMNS`).
		WithArgs("shop", "MST_User").
		WillReturnRows(sqlmock.NewRows(columnHeader).
			AddRow("id", "int", "NO", nil, nil, 10, 0, "").
			AddRow("email", "varchar", "NO", nil, 255, nil, nil, "login").
			AddRow("team_id", "int", "YES", nil, nil, 10, 0, ""))
	mock.ExpectQuery(`CONSTRAINT_NAME = 'PRIMARY'`).
		WithArgs("shop", "MST_User").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id"))
	mock.ExpectQuery(`FROM information_schema\.STATISTICS`).
		WithArgs("shop", "MST_User").
		WillReturnRows(sqlmock.NewRows([]string{"INDEX_NAME", "COLUMN_NAME", "uniq", "cons"}).
			AddRow("email", "email", int64(1), int64(1)))
	mock.ExpectQuery(`FROM information_schema\.KEY_COLUMN_USAGE kcu`).
		WithArgs("shop", "MST_User").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}).
			AddRow("fk_user_team", "team_id", "MST_Team", "id", "RESTRICT", "SET NULL"))

	tbl, err := in.Table(context.Background(), "MST_User")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "INTEGER", tbl.Columns[0].Type)
	assert.Equal(t, "VARCHAR(255)", tbl.Columns[1].FullType())
	assert.True(t, tbl.Columns[1].Unique)
	assert.Empty(t, tbl.Indexes)
	require.Len(t, tbl.ForeignKeys, 1)
	assert.Equal(t, schema.SetNull, tbl.ForeignKeys[0].OnDelete)
	assert.Equal(t, schema.Restrict, tbl.ForeignKeys[0].OnUpdate)
}

func TestTable_OracleBindsIndexArgsTwice(t *testing.T) {
	in, mock := newMock(t, "oracle", "APP")

	mock.ExpectQuery(`FROM ALL_TAB_COLUMNS`).
		WithArgs("APP", "MST_ITEM").
		WillReturnRows(sqlmock.NewRows(columnHeader).
			AddRow("ID", "NUMBER", "NO", nil, 22, 10, 0, nil).
			AddRow("LABEL", "VARCHAR2", "YES", "'n/a'", 40, nil, nil, "display label"))
	mock.ExpectQuery(`CONSTRAINT_TYPE = 'P'`).
		WithArgs("APP", "MST_ITEM").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("ID"))
	mock.ExpectQuery(`FROM ALL_INDEXES`).
		WithArgs("APP", "MST_ITEM", "APP", "MST_ITEM").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d"}).
			AddRow("IDX_ITEM_LABEL", "LABEL", int64(0), int64(0)))
	mock.ExpectQuery(`CONSTRAINT_TYPE = 'R'`).
		WithArgs("APP", "MST_ITEM").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}))

	tbl, err := in.Table(context.Background(), "MST_ITEM")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "NUMBER(10)", tbl.Columns[0].FullType())
	assert.Equal(t, "VARCHAR2(40)", tbl.Columns[1].FullType())
	assert.Equal(t, "display label", tbl.Columns[1].Comment)
	require.Len(t, tbl.Indexes, 1)
	assert.False(t, tbl.Indexes[0].Unique)
	assert.Empty(t, tbl.ForeignKeys)
}

func TestTable_NotFound(t *testing.T) {
	in, mock := newMock(t, "postgres", "public")
	mock.ExpectQuery(`FROM information_schema\.columns`).
		WithArgs("public", "MST_Nope").
		WillReturnRows(sqlmock.NewRows(columnHeader))

	_, err := in.Table(context.Background(), "MST_Nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestTable_QueryError(t *testing.T) {
	in, mock := newMock(t, "postgres", "public")
	mock.ExpectQuery(`FROM information_schema\.columns`).
		WillReturnError(errors.New("connection reset"))

	_, err := in.Table(context.Background(), "MST_User")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading columns of MST_User")
	assert.False(t, errors.Is(err, ErrTableNotFound))
}

func TestTableNames(t *testing.T) {
	in, mock := newMock(t, "postgres", "public")
	mock.ExpectQuery(`FROM information_schema\.tables`).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("MST_A").AddRow("TRN_B"))

	names, err := in.TableNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"MST_A", "TRN_B"}, names)
	assert.Equal(t, "public", in.Schema())
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(nil, "sqlite", Options{})
	var ue *UnsupportedDriverError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "sqlite", ue.Driver)
}
