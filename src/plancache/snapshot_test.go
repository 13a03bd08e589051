package plancache

import (
	"errors"
	"regexp"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/DATA-DOG/go-sqlmock.v1"

	"github.com/5l1v3r1/memsql-top/src/connection"
)

var snapshotColumns = []string{
	"database_name", "query_text", "plan_hash", "commits", "rowcount",
	"execution_time", "queued_time", "cpu_time", "memory_use",
}

func newMockConnection(t *testing.T) (*connection.SQLConnection, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return &connection.SQLConnection{
		Connection: sqlx.NewDb(mockDB, "sqlmock"),
		Host:       "localhost",
	}, mock
}

func TestFetchSnapshot(t *testing.T) {
	con, mock := newMockConnection(t)

	mock.ExpectQuery(regexp.QuoteMeta(snapshotQuery)).
		WillReturnRows(sqlmock.NewRows(snapshotColumns).
			AddRow("db1", "select * from t where id = @", "hash1", 10, 100, 1000, 40, 200, 4096).
			AddRow("db2", "insert into u values (@)", "hash2", 0, 0, 0, 0, 0, 0))

	snapshot, err := FetchSnapshot(con)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	record, ok := snapshot["hash1"]
	require.True(t, ok)
	assert.Equal(t, "db1", record.DatabaseName)
	assert.Equal(t, "select * from t where id = @", record.QueryText)
	assert.EqualValues(t, 10, record.Commits)
	assert.EqualValues(t, 100, record.Rowcount)
	assert.EqualValues(t, 1000, record.ExecutionTime)
	assert.EqualValues(t, 40, record.QueuedTime)
	assert.EqualValues(t, 200, record.CpuTime)
	assert.EqualValues(t, 4096, record.MemoryUse)

	// Zero-commit entries are kept in the snapshot; the diff step decides
	// whether they produce output.
	assert.Contains(t, snapshot, PlanHash("hash2"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchSnapshotFiltersOwnQuery(t *testing.T) {
	con, mock := newMockConnection(t)

	mock.ExpectQuery(regexp.QuoteMeta(snapshotQuery)).
		WillReturnRows(sqlmock.NewRows(snapshotColumns).
			AddRow("information_schema", snapshotQuery, "selfhash", 42, 42, 100, 0, 10, 1024).
			AddRow("db1", "select 1", "hash1", 1, 1, 10, 0, 1, 128))

	snapshot, err := FetchSnapshot(con)
	require.NoError(t, err)

	assert.NotContains(t, snapshot, PlanHash("selfhash"))
	assert.Contains(t, snapshot, PlanHash("hash1"))
}

func TestFetchSnapshotQueryError(t *testing.T) {
	con, mock := newMockConnection(t)

	mock.ExpectQuery(regexp.QuoteMeta(snapshotQuery)).
		WillReturnError(errors.New("aggregator unreachable"))

	_, err := FetchSnapshot(con)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch plan cache")
}

func TestFetchSnapshotEmpty(t *testing.T) {
	con, mock := newMockConnection(t)

	mock.ExpectQuery(regexp.QuoteMeta(snapshotQuery)).
		WillReturnRows(sqlmock.NewRows(snapshotColumns))

	snapshot, err := FetchSnapshot(con)
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}
