package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledger-socket/src/config"
	"ledger-socket/src/helpers"
	"ledger-socket/src/logger"
	"ledger-socket/src/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountColumns = []string{"cedula", "nombres", "apellidos", "saldo"}

func newMockPostgres(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pg, err := NewPostgresDB(config.Default(), logger.NewLogger(nil, "PostgresTest"))
	require.NoError(t, err)
	pg.DB = db
	return pg, mock
}

func TestPostgres_InitializeCreatesSchemaAndTables(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "clientes_db"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "clientes_db"."personas"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "clientes_db"."operaciones"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "idx_operaciones_cedula_ts"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, pg.Initialize())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_IncrementIsSingleStatement(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectQuery(`UPDATE "clientes_db"."personas" SET saldo = saldo \+ \$2 WHERE cedula = \$1 RETURNING`).
		WithArgs("123", 50.0).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("123", "Ana", "Ruiz", 150.0))

	got, err := pg.IncrementBalance(context.Background(), "123", 50)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Saldo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_IncrementMissing(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectQuery(`UPDATE "clientes_db"."personas" SET saldo = saldo \+ \$2`).
		WithArgs("404", 1.0).
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := pg.IncrementBalance(context.Background(), "404", 1)
	assert.ErrorIs(t, err, helpers.ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DecrementInsufficient(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectQuery(`UPDATE "clientes_db"."personas" SET saldo = saldo - \$2 WHERE cedula = \$1 AND saldo >= \$2`).
		WithArgs("123", 150.0).
		WillReturnRows(sqlmock.NewRows(accountColumns))
	mock.ExpectQuery(`SELECT cedula, nombres, apellidos, saldo FROM "clientes_db"."personas" WHERE cedula = \$1`).
		WithArgs("123").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("123", "Ana", "Ruiz", 100.0))

	_, err := pg.DecrementIfSufficient(context.Background(), "123", 150)
	var insufficient *helpers.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 100.0, insufficient.Account.Saldo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DecrementApproved(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectQuery(`UPDATE "clientes_db"."personas" SET saldo = saldo - \$2`).
		WithArgs("123", 40.0).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("123", "Ana", "Ruiz", 60.0))

	got, err := pg.DecrementIfSufficient(context.Background(), "123", 40)
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.Saldo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertAndAppend(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO "clientes_db"."personas" .* ON CONFLICT \(cedula\) DO UPDATE`).
		WithArgs("123", "Ana", "Ruiz", 100.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "clientes_db"."operaciones"`).
		WithArgs(sqlmock.AnyArg(), "123", models.OpPut, nil, 100.0, models.StatusApproved, "Ana", "Ruiz", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, pg.UpsertAccount(ctx, models.MAccount{Cedula: "123", Nombres: "Ana", Apellidos: "Ruiz", Saldo: 100}))

	saldo := 100.0
	op := &models.MOperation{Cedula: "123", Tipo: models.OpPut, SaldoNuevo: &saldo, Estado: models.StatusApproved, Nombres: "Ana", Apellidos: "Ruiz"}
	require.NoError(t, pg.AppendOperation(ctx, op))
	assert.Len(t, op.ID, 36)
	assert.False(t, op.Ts.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListOperations(t *testing.T) {
	pg, mock := newMockPostgres(t)

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "cedula", "tipo", "monto", "saldo_nuevo", "estado", "nombres", "apellidos", "ts"}).
		AddRow("b", "123", models.OpSub, 150.0, 100.0, models.StatusRejected, "Ana", "Ruiz", ts.Add(time.Minute)).
		AddRow("a", "123", models.OpPut, nil, 100.0, models.StatusApproved, "Ana", "Ruiz", ts)
	mock.ExpectQuery(`SELECT .* FROM "clientes_db"."operaciones" WHERE cedula = \$1 ORDER BY ts DESC LIMIT \$2`).
		WithArgs("123", 50).
		WillReturnRows(rows)

	ops, err := pg.ListOperations(context.Background(), "123", 50)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, models.StatusRejected, ops[0].Estado)
	assert.Equal(t, 150.0, *ops[0].Monto)
	assert.Nil(t, ops[1].Monto)
	require.NoError(t, mock.ExpectationsWereMet())
}
