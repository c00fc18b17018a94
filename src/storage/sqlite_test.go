package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ledger-socket/src/config"
	"ledger-socket/src/helpers"
	"ledger-socket/src/logger"
	"ledger-socket/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteDB {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "ledger.db")

	db, err := NewSQLiteDB(cfg, logger.NewLogger(nil, "SQLiteTest"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(v float64) *float64 { return &v }

func TestSQLite_FindMissing(t *testing.T) {
	db := newTestSQLite(t)

	_, err := db.FindAccount(context.Background(), "404")
	assert.ErrorIs(t, err, helpers.ErrAccountNotFound)
}

func TestSQLite_UpsertOverwrites(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertAccount(ctx, models.MAccount{Cedula: "123", Nombres: "Ana", Apellidos: "Ruiz", Saldo: 100}))
	require.NoError(t, db.UpsertAccount(ctx, models.MAccount{Cedula: "123", Nombres: "Ana María", Apellidos: "Ruiz", Saldo: 100}))

	got, err := db.FindAccount(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, models.MAccount{Cedula: "123", Nombres: "Ana María", Apellidos: "Ruiz", Saldo: 100}, *got)
}

func TestSQLite_IncrementBalance(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertAccount(ctx, models.MAccount{Cedula: "123", Nombres: "Ana", Apellidos: "Ruiz", Saldo: 100}))

	got, err := db.IncrementBalance(ctx, "123", 50)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Saldo)
	assert.Equal(t, "Ana", got.Nombres)

	_, err = db.IncrementBalance(ctx, "404", 50)
	assert.ErrorIs(t, err, helpers.ErrAccountNotFound)
}

func TestSQLite_DecrementIfSufficient(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertAccount(ctx, models.MAccount{Cedula: "123", Nombres: "Ana", Apellidos: "Ruiz", Saldo: 100}))

	_, err := db.DecrementIfSufficient(ctx, "123", 150)
	var insufficient *helpers.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 100.0, insufficient.Account.Saldo)
	assert.Equal(t, "Ruiz", insufficient.Account.Apellidos)

	got, err := db.DecrementIfSufficient(ctx, "123", 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Saldo)

	_, err = db.DecrementIfSufficient(ctx, "404", 1)
	assert.ErrorIs(t, err, helpers.ErrAccountNotFound)
}

func TestSQLite_ConcurrentDecrementsNeverOverdraw(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertAccount(ctx, models.MAccount{Cedula: "123", Nombres: "Ana", Apellidos: "Ruiz", Saldo: 100}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	approved := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.DecrementIfSufficient(ctx, "123", 30); err == nil {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := db.FindAccount(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, 3, approved)
	assert.Equal(t, 10.0, got.Saldo)
}

func TestSQLite_OperationsNewestFirst(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, tipo := range []string{models.OpPut, models.OpAdd, models.OpSub} {
		op := &models.MOperation{
			Cedula:     "123",
			Tipo:       tipo,
			SaldoNuevo: ptr(float64(100 + i)),
			Estado:     models.StatusApproved,
			Nombres:    "Ana",
			Apellidos:  "Ruiz",
			Ts:         base.Add(time.Duration(i) * time.Second),
		}
		if tipo != models.OpPut {
			op.Monto = ptr(1)
		}
		require.NoError(t, db.AppendOperation(ctx, op))
		assert.NotEmpty(t, op.ID)
	}
	require.NoError(t, db.AppendOperation(ctx, &models.MOperation{Cedula: "999", Tipo: models.OpPut, Estado: models.StatusApproved}))

	ops, err := db.ListOperations(ctx, "123", 2)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, models.OpSub, ops[0].Tipo)
	assert.Equal(t, models.OpAdd, ops[1].Tipo)
	assert.Equal(t, base.Add(2*time.Second), ops[0].Ts)
	assert.Equal(t, 1.0, *ops[0].Monto)

	all, err := db.ListOperations(ctx, "123", 50)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Nil(t, all[2].Monto, "PUT records carry no amount")

	none, err := db.ListOperations(ctx, "nobody", 50)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_AppendAssignsIncreasingTimestamps(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	var prev time.Time
	for i := 0; i < 5; i++ {
		op := &models.MOperation{Cedula: "123", Tipo: models.OpAdd, Estado: models.StatusApproved}
		require.NoError(t, db.AppendOperation(ctx, op))
		assert.Equal(t, time.UTC, op.Ts.Location())
		assert.True(t, op.Ts.After(prev))
		prev = op.Ts
	}
}

func TestSQLite_InitializeKeepsData(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertAccount(ctx, models.MAccount{Cedula: "123", Nombres: "Ana", Apellidos: "Ruiz", Saldo: 5}))
	require.NoError(t, db.Close())

	reopened, err := NewSQLiteDB(db.Config, db.Logger)
	require.NoError(t, err)
	require.NoError(t, reopened.Initialize())
	defer reopened.Close()

	got, err := reopened.FindAccount(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Saldo)
}

func TestSeedAccounts(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertAccount(ctx, models.MAccount{Cedula: "1111111111", Nombres: "Ana", Apellidos: "Pérez", Saldo: 1}))

	n, err := SeedAccounts(ctx, db, SampleAccounts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	kept, err := db.FindAccount(ctx, "1111111111")
	require.NoError(t, err)
	assert.Equal(t, 1.0, kept.Saldo, "seeding must not reset an existing balance")

	juan, err := db.FindAccount(ctx, "1234567890")
	require.NoError(t, err)
	assert.Equal(t, 150.75, juan.Saldo)

	ops, err := db.ListOperations(ctx, "1234567890", 10)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "factory.db")

	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.Ping(context.Background()))

	_, err = NewDatabase(&models.MConfig{Storage: models.MStorageConfig{DBType: "mongo"}})
	assert.Error(t, err)
}
