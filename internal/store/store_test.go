package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-migrator/internal/common/database"
	"asset-migrator/internal/common/logger"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pg := &database.PostgresClient{DB: db}
	return New(pg, "tenant1", logger.NewTestLogger(t)), mock
}

func TestTruncateIsTenantScoped(t *testing.T) {
	st, mock := newTestStore(t)

	mock.ExpectExec(`DELETE FROM "T_APM_INDICATOR_POSITIONS" WHERE "tenantid" = $1`).
		WithArgs("tenant1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, st.Truncate(context.Background(), APMIndicatorPositions))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchStampsTenantAndColumnOrder(t *testing.T) {
	st, mock := newTestStore(t)

	copyStmt := `COPY "T_APM_INDICATOR_POSITIONS" ("tenantid", "ID", "SSID", "name") FROM STDIN`

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare(copyStmt)
	prepared.ExpectExec().
		WithArgs("tenant1", "g1", "S4H_100", "TEMPERATURE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prepared.ExpectExec().
		WithArgs("tenant1", "g2", "S4H_100", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prepared.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := st.InsertBatch(context.Background(), APMIndicatorPositions, []map[string]string{
		{"ID": "g1", "SSID": "S4H_100", "name": "TEMPERATURE"},
		{"ID": "g2", "SSID": "S4H_100"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchEmptyIsNoop(t *testing.T) {
	st, mock := newTestStore(t)

	require.NoError(t, st.InsertBatch(context.Background(), APMIndicatorPositions, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	st, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT COUNT(*) FROM "T_APM_INDICATOR_POSITIONS" WHERE "tenantid" = $1`).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := st.Count(context.Background(), APMIndicatorPositions.Name)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestSelectReturnsRowMaps(t *testing.T) {
	st, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT "ID", "name" FROM "T_APM_INDICATOR_POSITIONS" WHERE "tenantid" = $1`).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"ID", "name"}).
			AddRow("g1", "TEMPERATURE").
			AddRow("g2", nil))

	rows, err := st.Select(context.Background(), APMIndicatorPositions.Name, []string{"ID", "name"}, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "g1", rows[0]["ID"])
	assert.Equal(t, "TEMPERATURE", rows[0]["name"])
	// NULLs come back as empty strings.
	assert.Equal(t, "", rows[1]["name"])
}

func TestSelectWithWhereFragment(t *testing.T) {
	st, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT "ID" FROM "T_APM_INDICATOR_POSITIONS" WHERE "tenantid" = $1 AND ("name" = $2)`).
		WithArgs("tenant1", "TEMPERATURE").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow("g1"))

	rows, err := st.Select(context.Background(), APMIndicatorPositions.Name,
		[]string{"ID"}, `"name" = $2`, "TEMPERATURE")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "g1", rows[0]["ID"])
}

func TestTableColumnsAreUnique(t *testing.T) {
	for _, table := range AllTables {
		seen := map[string]bool{}
		for _, col := range table.Columns {
			assert.False(t, seen[col], "%s has duplicate column %s", table.Name, col)
			seen[col] = true
		}
	}
}
