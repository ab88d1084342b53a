package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifier(t *testing.T) {
	assert.Equal(t, pgx.Identifier{"territory_assignments"}, Identifier("territory_assignments"))
	assert.Equal(t, pgx.Identifier{"sales", "territory_assignments"}, Identifier("sales.territory_assignments"))
}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "territory_assignments", []string{"zip"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"sales", "territory_assignments"}, []string{"zip", "status"}).WillReturnResult(2)

	rows := [][]any{{"02134", "active"}, {"02135", "unassigned"}}
	n, err := CopyFrom(context.Background(), mock, "sales.territory_assignments", []string{"zip", "status"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"territory_assignments"}, []string{"zip"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "territory_assignments", []string{"zip"}, [][]any{{"02134"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO territory_assignments")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE "territory_assignments"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"territory_assignments"}, []string{"zip"}).WillReturnResult(2)
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)
	n, err := ReplaceTable(ctx, tx, "territory_assignments", []string{"zip"}, [][]any{{"02134"}, {"02135"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_TruncateFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`TRUNCATE`).WillReturnError(fmt.Errorf("permission denied"))

	_, err = ReplaceTable(context.Background(), mock, "territory_assignments", []string{"zip"}, [][]any{{"02134"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncate territory_assignments")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_ShortCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`TRUNCATE`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"territory_assignments"}, []string{"zip"}).WillReturnResult(1)

	_, err = ReplaceTable(context.Background(), mock, "territory_assignments", []string{"zip"}, [][]any{{"02134"}, {"02135"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copied 1 of 2")
}

func TestReplaceTable_NoColumns(t *testing.T) {
	_, err := ReplaceTable(context.Background(), nil, "territory_assignments", nil, nil)
	require.Error(t, err)
}
