package ingest

import (
	"context"
	"testing"
	"time"

	"bifurcate/common"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func sqliteRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&common.Transfer{}))
	return NewRepository(db)
}

func mockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewRepository(gdb), mock
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := sqliteRepo(t)
	ctx := context.Background()

	transfer := &common.Transfer{
		ID:        "11111111-2222-3333-4444-555555555555",
		Source:    "repo-test",
		SizeBytes: 42,
		Checksum:  null.StringFrom("deadbeef"),
		Status:    common.TransferStored,
	}
	require.NoError(t, repo.Create(ctx, transfer))

	got, err := repo.Get(ctx, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.Source, got.Source)
	assert.Equal(t, transfer.Checksum, got.Checksum)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_Count(t *testing.T) {
	repo, mock := mockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM transfers`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_StreamSummaries(t *testing.T) {
	repo, mock := mockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, source, size_bytes, checksum, status, created_at FROM transfers`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "source", "size_bytes", "checksum", "status", "created_at"}).
			AddRow("id-1", "src-a", 10, "cafe", common.TransferStored, now).
			AddRow("id-2", "src-b", 0, nil, common.TransferFailed, now))

	rows, err := repo.StreamSummaries(context.Background())
	require.NoError(t, err)
	defer rows.Close()

	var summaries []common.TransferSummary
	for rows.Next() {
		s, err := ScanSummary(rows)
		require.NoError(t, err)
		summaries = append(summaries, s)
	}
	require.NoError(t, rows.Err())

	require.Len(t, summaries, 2)
	assert.Equal(t, "cafe", summaries[0].Checksum.String)
	assert.False(t, summaries[1].Checksum.Valid, "NULL checksum stays unset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
