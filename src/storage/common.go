package storage

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"ledger-socket/src/helpers"
	"ledger-socket/src/models"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.MAccount, error) {
	var a models.MAccount
	if err := row.Scan(&a.Cedula, &a.Nombres, &a.Apellidos, &a.Saldo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, helpers.ErrAccountNotFound
		}
		return nil, helpers.NewDatabaseError("scan account", err)
	}
	return &a, nil
}

// -----------------------------------------------------------------------------

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func unixNanoUTC(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// -----------------------------------------------------------------------------
// opClock hands out strictly increasing UTC timestamps at microsecond
// resolution, the finest both backends store, so ts ordering is total.
// -----------------------------------------------------------------------------

type opClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *opClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}

// prepareOperation fills the identity and time fields of a new record.
func prepareOperation(op *models.MOperation, clock *opClock) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Ts.IsZero() {
		op.Ts = clock.Now()
	}
}
