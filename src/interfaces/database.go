package interfaces

import (
	"context"

	"ledger-socket/src/models"
)

// -----------------------------------------------------------------------------
// ILedgerStore holds one record per cedula. Balance changes go through single
// atomic statements so concurrent connections never lose updates.
// -----------------------------------------------------------------------------

type ILedgerStore interface {

	// FindAccount returns helpers.ErrAccountNotFound when no record exists.
	FindAccount(ctx context.Context, cedula string) (*models.MAccount, error)

	// -----------------------------------------------------------------------------

	// UpsertAccount creates or fully overwrites the record.
	UpsertAccount(ctx context.Context, account models.MAccount) error

	// -----------------------------------------------------------------------------

	// IncrementBalance adds delta and returns the record after the update.
	IncrementBalance(ctx context.Context, cedula string, delta float64) (*models.MAccount, error)

	// -----------------------------------------------------------------------------

	// DecrementIfSufficient subtracts amount only when saldo >= amount.
	// Returns *helpers.InsufficientFundsError when the condition fails.
	DecrementIfSufficient(ctx context.Context, cedula string, amount float64) (*models.MAccount, error)
}

// -----------------------------------------------------------------------------
// IOperationLog is the append-only audit trail of mutation attempts.
// -----------------------------------------------------------------------------

type IOperationLog interface {

	// AppendOperation stores op, assigning ID and Ts when empty.
	AppendOperation(ctx context.Context, op *models.MOperation) error

	// -----------------------------------------------------------------------------

	// ListOperations returns the newest records for cedula first.
	ListOperations(ctx context.Context, cedula string, limit int) ([]models.MOperation, error)
}

// -----------------------------------------------------------------------------
// IDatabase defines the contract for a storage backend serving both roles.
// -----------------------------------------------------------------------------

type IDatabase interface {
	ILedgerStore
	IOperationLog

	// -----------------------------------------------------------------------------

	// Initialize opens the connection and creates tables and indexes.
	Initialize() error

	// -----------------------------------------------------------------------------

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
