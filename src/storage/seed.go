package storage

import (
	"context"
	"errors"
	"fmt"

	"ledger-socket/src/helpers"
	"ledger-socket/src/interfaces"
	"ledger-socket/src/models"
)

// SampleAccounts is the demo data loaded when storage.seed_sample_data is set.
var SampleAccounts = []models.MAccount{
	{Cedula: "1234567890", Nombres: "Juan", Apellidos: "Nieve", Saldo: 150.75},
	{Cedula: "1111111111", Nombres: "Ana", Apellidos: "Pérez", Saldo: 300},
	{Cedula: "2222222222", Nombres: "Luis", Apellidos: "Gómez", Saldo: 80.5},
}

// -----------------------------------------------------------------------------

// SeedAccounts inserts the accounts that do not exist yet. Existing records
// are left alone so a restart never resets balances. No operation records are
// written for seed data.
func SeedAccounts(ctx context.Context, store interfaces.ILedgerStore, accounts []models.MAccount) (int, error) {
	inserted := 0
	for _, a := range accounts {
		_, err := store.FindAccount(ctx, a.Cedula)
		if err == nil {
			continue
		}
		if !errors.Is(err, helpers.ErrAccountNotFound) {
			return inserted, fmt.Errorf("seed %s: %w", a.Cedula, err)
		}
		if err := store.UpsertAccount(ctx, a); err != nil {
			return inserted, fmt.Errorf("seed %s: %w", a.Cedula, err)
		}
		inserted++
	}
	return inserted, nil
}
