package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger-socket/src/helpers"
	"ledger-socket/src/logger"
	"ledger-socket/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger

	accounts   string
	operations string
	clock      *opClock
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	return &SQLiteDB{
		Config:     cfg,
		Logger:     log,
		accounts:   cfg.Storage.AccountsTable,
		operations: cfg.Storage.OperationsTable,
		clock:      &opClock{},
	}, nil
}

// -----------------------------------------------------------------------------

// SQLitePath is the database file for cfg: db_path, or <db_name>.db.
func SQLitePath(cfg *models.MConfig) string {
	if cfg.Storage.DBPath != "" {
		return cfg.Storage.DBPath
	}
	return cfg.Storage.DBName + ".db"
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	db, err := sql.Open("sqlite", SQLitePath(d.Config))
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}

	// One connection serializes writers, which keeps every UPDATE atomic and
	// avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			cedula TEXT PRIMARY KEY,
			nombres TEXT NOT NULL,
			apellidos TEXT NOT NULL,
			saldo REAL NOT NULL
		);
	`, d.accounts)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create %s: %w", d.accounts, err)
	}

	// ts holds UnixNano so ordering is exact
	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			cedula TEXT NOT NULL,
			tipo TEXT NOT NULL,
			monto REAL,
			saldo_nuevo REAL,
			estado TEXT NOT NULL,
			nombres TEXT,
			apellidos TEXT,
			ts INTEGER NOT NULL
		);
	`, d.operations)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create %s: %w", d.operations, err)
	}

	query = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_cedula_ts ON %s (cedula, ts DESC)`, d.operations, d.operations)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to index %s: %w", d.operations, err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Ping(ctx context.Context) error {
	if d.DB == nil {
		return helpers.NewDatabaseError("sqlite not initialized", nil)
	}
	return d.DB.PingContext(ctx)
}

// -----------------------------------------------------------------------------
// Ledger Store
// -----------------------------------------------------------------------------

func (d *SQLiteDB) FindAccount(ctx context.Context, cedula string) (*models.MAccount, error) {
	query := fmt.Sprintf(`SELECT cedula, nombres, apellidos, saldo FROM %s WHERE cedula = ?`, d.accounts)
	return scanAccount(d.DB.QueryRowContext(ctx, query, cedula))
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) UpsertAccount(ctx context.Context, a models.MAccount) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (cedula, nombres, apellidos, saldo)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cedula) DO UPDATE SET
			nombres = excluded.nombres,
			apellidos = excluded.apellidos,
			saldo = excluded.saldo
	`, d.accounts)
	if _, err := d.DB.ExecContext(ctx, query, a.Cedula, a.Nombres, a.Apellidos, a.Saldo); err != nil {
		return helpers.NewDatabaseError("upsert account", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) IncrementBalance(ctx context.Context, cedula string, delta float64) (*models.MAccount, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET saldo = saldo + ?
		WHERE cedula = ?
		RETURNING cedula, nombres, apellidos, saldo
	`, d.accounts)
	return scanAccount(d.DB.QueryRowContext(ctx, query, delta, cedula))
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) DecrementIfSufficient(ctx context.Context, cedula string, amount float64) (*models.MAccount, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET saldo = saldo - ?
		WHERE cedula = ? AND saldo >= ?
		RETURNING cedula, nombres, apellidos, saldo
	`, d.accounts)
	acct, err := scanAccount(d.DB.QueryRowContext(ctx, query, amount, cedula, amount))
	if !errors.Is(err, helpers.ErrAccountNotFound) {
		return acct, err
	}
	return nil, d.explainRejectedDecrement(ctx, cedula, amount)
}

// explainRejectedDecrement tells an absent account apart from a short balance.
func (d *SQLiteDB) explainRejectedDecrement(ctx context.Context, cedula string, amount float64) error {
	current, err := d.FindAccount(ctx, cedula)
	if err != nil {
		return err
	}
	return &helpers.InsufficientFundsError{Account: *current, Amount: amount}
}

// -----------------------------------------------------------------------------
// Operation Log
// -----------------------------------------------------------------------------

func (d *SQLiteDB) AppendOperation(ctx context.Context, op *models.MOperation) error {
	prepareOperation(op, d.clock)

	query := fmt.Sprintf(`
		INSERT INTO %s (id, cedula, tipo, monto, saldo_nuevo, estado, nombres, apellidos, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.operations)
	_, err := d.DB.ExecContext(ctx, query,
		op.ID, op.Cedula, op.Tipo, nullFloat(op.Monto), nullFloat(op.SaldoNuevo),
		op.Estado, op.Nombres, op.Apellidos, op.Ts.UnixNano(),
	)
	if err != nil {
		return helpers.NewDatabaseError("append operation", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) ListOperations(ctx context.Context, cedula string, limit int) ([]models.MOperation, error) {
	query := fmt.Sprintf(`
		SELECT id, cedula, tipo, monto, saldo_nuevo, estado, nombres, apellidos, ts
		FROM %s
		WHERE cedula = ?
		ORDER BY ts DESC
		LIMIT ?
	`, d.operations)
	rows, err := d.DB.QueryContext(ctx, query, cedula, limit)
	if err != nil {
		return nil, helpers.NewDatabaseError("list operations", err)
	}
	defer rows.Close()

	ops := []models.MOperation{}
	for rows.Next() {
		var (
			monto, saldoNuevo  sql.NullFloat64
			nombres, apellidos sql.NullString
			ts                 int64
			o                  models.MOperation
		)
		if err := rows.Scan(&o.ID, &o.Cedula, &o.Tipo, &monto, &saldoNuevo, &o.Estado, &nombres, &apellidos, &ts); err != nil {
			return nil, helpers.NewDatabaseError("scan operation", err)
		}
		o.Monto = floatPtr(monto)
		o.SaldoNuevo = floatPtr(saldoNuevo)
		o.Nombres = nombres.String
		o.Apellidos = apellidos.String
		o.Ts = unixNanoUTC(ts)
		ops = append(ops, o)
	}
	return ops, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
