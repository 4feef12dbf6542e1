package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.True(t, IsDuplicateKey(dup))
	assert.True(t, IsDuplicateKey(fmt.Errorf("insert hold: %w", dup)))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1213}))
	assert.False(t, IsDuplicateKey(errors.New("boom")))
}

func TestEnsureSchemaCreatesEveryTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range Tables {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, EnsureSchema(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = WithTx(context.Background(), db, func(tx *sql.Tx) error { return errors.New("fail") })
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMissingTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range Tables {
		rows := sqlmock.NewRows([]string{"table_name"})
		if table != "seat_holds" {
			rows.AddRow(table)
		}
		mock.ExpectQuery("information_schema\\.tables").WithArgs(table).WillReturnRows(rows)
	}

	assert.Equal(t, []string{"seat_holds"}, MissingTables(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}
