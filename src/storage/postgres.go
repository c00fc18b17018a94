package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger-socket/src/helpers"
	"ledger-socket/src/logger"
	"ledger-socket/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger

	accounts   string // schema-qualified, quoted
	operations string
	clock      *opClock
}

// -----------------------------------------------------------------------------

// NewPostgresDB maps db_name onto a schema so several ledgers can share one
// Postgres database.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	schema := cfg.Storage.DBName
	if schema == "" {
		return nil, fmt.Errorf("postgres schema (db_name) cannot be empty")
	}

	return &PostgresDB{
		Config:     cfg,
		Schema:     schema,
		Logger:     log,
		accounts:   fmt.Sprintf(`"%s"."%s"`, schema, cfg.Storage.AccountsTable),
		operations: fmt.Sprintf(`"%s"."%s"`, schema, cfg.Storage.OperationsTable),
		clock:      &opClock{},
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	if d.DB == nil {
		db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
		if err != nil {
			return helpers.NewDatabaseError("open postgres", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return helpers.NewDatabaseError("ping postgres", err)
		}
		d.DB = db
	}

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			cedula TEXT PRIMARY KEY,
			nombres TEXT NOT NULL,
			apellidos TEXT NOT NULL,
			saldo DOUBLE PRECISION NOT NULL
		);
	`, d.accounts)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create %s: %w", d.accounts, err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			cedula TEXT NOT NULL,
			tipo TEXT NOT NULL,
			monto DOUBLE PRECISION,
			saldo_nuevo DOUBLE PRECISION,
			estado TEXT NOT NULL,
			nombres TEXT,
			apellidos TEXT,
			ts TIMESTAMPTZ NOT NULL
		);
	`, d.operations)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create %s: %w", d.operations, err)
	}

	query = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "idx_%s_cedula_ts" ON %s (cedula, ts DESC)`,
		d.Config.Storage.OperationsTable, d.operations)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to index %s: %w", d.operations, err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Ping(ctx context.Context) error {
	if d.DB == nil {
		return helpers.NewDatabaseError("postgres not initialized", nil)
	}
	return d.DB.PingContext(ctx)
}

// -----------------------------------------------------------------------------
// Ledger Store
// -----------------------------------------------------------------------------

func (d *PostgresDB) FindAccount(ctx context.Context, cedula string) (*models.MAccount, error) {
	query := fmt.Sprintf(`SELECT cedula, nombres, apellidos, saldo FROM %s WHERE cedula = $1`, d.accounts)
	return scanAccount(d.DB.QueryRowContext(ctx, query, cedula))
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) UpsertAccount(ctx context.Context, a models.MAccount) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (cedula, nombres, apellidos, saldo)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cedula) DO UPDATE SET
			nombres = EXCLUDED.nombres,
			apellidos = EXCLUDED.apellidos,
			saldo = EXCLUDED.saldo
	`, d.accounts)
	if _, err := d.DB.ExecContext(ctx, query, a.Cedula, a.Nombres, a.Apellidos, a.Saldo); err != nil {
		return helpers.NewDatabaseError("upsert account", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) IncrementBalance(ctx context.Context, cedula string, delta float64) (*models.MAccount, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET saldo = saldo + $2
		WHERE cedula = $1
		RETURNING cedula, nombres, apellidos, saldo
	`, d.accounts)
	return scanAccount(d.DB.QueryRowContext(ctx, query, cedula, delta))
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) DecrementIfSufficient(ctx context.Context, cedula string, amount float64) (*models.MAccount, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET saldo = saldo - $2
		WHERE cedula = $1 AND saldo >= $2
		RETURNING cedula, nombres, apellidos, saldo
	`, d.accounts)
	acct, err := scanAccount(d.DB.QueryRowContext(ctx, query, cedula, amount))
	if !errors.Is(err, helpers.ErrAccountNotFound) {
		return acct, err
	}

	current, err := d.FindAccount(ctx, cedula)
	if err != nil {
		return nil, err
	}
	return nil, &helpers.InsufficientFundsError{Account: *current, Amount: amount}
}

// -----------------------------------------------------------------------------
// Operation Log
// -----------------------------------------------------------------------------

func (d *PostgresDB) AppendOperation(ctx context.Context, op *models.MOperation) error {
	prepareOperation(op, d.clock)

	query := fmt.Sprintf(`
		INSERT INTO %s (id, cedula, tipo, monto, saldo_nuevo, estado, nombres, apellidos, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, d.operations)
	_, err := d.DB.ExecContext(ctx, query,
		op.ID, op.Cedula, op.Tipo, nullFloat(op.Monto), nullFloat(op.SaldoNuevo),
		op.Estado, op.Nombres, op.Apellidos, op.Ts,
	)
	if err != nil {
		return helpers.NewDatabaseError("append operation", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) ListOperations(ctx context.Context, cedula string, limit int) ([]models.MOperation, error) {
	query := fmt.Sprintf(`
		SELECT id, cedula, tipo, monto, saldo_nuevo, estado, nombres, apellidos, ts
		FROM %s
		WHERE cedula = $1
		ORDER BY ts DESC
		LIMIT $2
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
			o                  models.MOperation
		)
		if err := rows.Scan(&o.ID, &o.Cedula, &o.Tipo, &monto, &saldoNuevo, &o.Estado, &nombres, &apellidos, &o.Ts); err != nil {
			return nil, helpers.NewDatabaseError("scan operation", err)
		}
		o.Monto = floatPtr(monto)
		o.SaldoNuevo = floatPtr(saldoNuevo)
		o.Nombres = nombres.String
		o.Apellidos = apellidos.String
		o.Ts = o.Ts.UTC()
		ops = append(ops, o)
	}
	return ops, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
