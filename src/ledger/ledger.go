package ledger

import (
	"context"
	"errors"
	"time"

	"ledger-socket/src/helpers"
	"ledger-socket/src/interfaces"
	"ledger-socket/src/logger"
	"ledger-socket/src/metrics"
	"ledger-socket/src/models"
	"ledger-socket/src/protocol"
)

// -----------------------------------------------------------------------------
// Ledger applies protocol commands to the store and records every mutation
// attempt in the operation log.
// -----------------------------------------------------------------------------

type Ledger struct {
	Store  interfaces.ILedgerStore
	Log    interfaces.IOperationLog
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewLedger(store interfaces.ILedgerStore, opLog interfaces.IOperationLog, log *logger.Logger) *Ledger {
	return &Ledger{
		Store:  store,
		Log:    opLog,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Execute parses one request line and dispatches it. It always returns an
// envelope; failures never escape as errors.
func (l *Ledger) Execute(ctx context.Context, line string) *models.MResponse {
	start := time.Now()
	cmd := protocol.ParseCommand(line)

	var resp *models.MResponse
	if !cmd.Valid() {
		resp = protocol.NewResponse(false, protocol.MsgInvalidCommand, nil)
		metrics.RecordCommand("INVALID", false, time.Since(start))
		return resp
	}

	args := cmd.Args
	switch cmd.Verb {
	case models.OpGet:
		resp = l.Get(ctx, args[0])
	case models.OpPut:
		resp = l.Put(ctx, args[0], args[1], args[2], args[3])
	case models.OpAdd:
		resp = l.Add(ctx, args[0], args[1])
	case models.OpSub:
		resp = l.Sub(ctx, args[0], args[1])
	}

	metrics.RecordCommand(cmd.Verb, resp.Ok, time.Since(start))
	return resp
}

// -----------------------------------------------------------------------------

func (l *Ledger) Get(ctx context.Context, cedula string) *models.MResponse {
	acct, err := l.Store.FindAccount(ctx, cedula)
	if err != nil {
		return l.storeFailure(models.OpGet, cedula, err)
	}
	return protocol.NewResponse(true, protocol.MsgFound, map[string]interface{}{
		"cedula":    acct.Cedula,
		"nombres":   acct.Nombres,
		"apellidos": acct.Apellidos,
		"saldo":     acct.Saldo,
	})
}

// -----------------------------------------------------------------------------

func (l *Ledger) Put(ctx context.Context, cedula, nombres, apellidos, saldoStr string) *models.MResponse {
	saldo, err := protocol.ParseAmount(saldoStr)
	if err != nil {
		return protocol.NewResponse(false, protocol.MsgInvalidBalance, nil)
	}

	acct := models.MAccount{Cedula: cedula, Nombres: nombres, Apellidos: apellidos, Saldo: saldo}
	if err := l.Store.UpsertAccount(ctx, acct); err != nil {
		return l.storeFailure(models.OpPut, cedula, err)
	}

	l.record(ctx, &models.MOperation{
		Cedula:     cedula,
		Tipo:       models.OpPut,
		SaldoNuevo: &saldo,
		Estado:     models.StatusApproved,
		Nombres:    nombres,
		Apellidos:  apellidos,
	})

	return protocol.NewResponse(true, protocol.MsgUpserted, map[string]interface{}{
		"cedula": cedula,
		"saldo":  saldo,
	})
}

// -----------------------------------------------------------------------------

func (l *Ledger) Add(ctx context.Context, cedula, montoStr string) *models.MResponse {
	monto, err := protocol.ParseAmount(montoStr)
	if err != nil {
		return protocol.NewResponse(false, protocol.MsgInvalidAmount, nil)
	}

	acct, err := l.Store.IncrementBalance(ctx, cedula, monto)
	if err != nil {
		return l.storeFailure(models.OpAdd, cedula, err)
	}

	l.record(ctx, mutationRecord(models.OpAdd, models.StatusApproved, monto, acct))

	return protocol.NewResponse(true, protocol.MsgIncremented, balanceData(acct))
}

// -----------------------------------------------------------------------------

// Sub decrements only when the balance covers monto. The check and the write
// are one conditional update in the store, so concurrent SUBs cannot overdraw.
func (l *Ledger) Sub(ctx context.Context, cedula, montoStr string) *models.MResponse {
	monto, err := protocol.ParseAmount(montoStr)
	if err != nil {
		return protocol.NewResponse(false, protocol.MsgInvalidAmount, nil)
	}

	acct, err := l.Store.DecrementIfSufficient(ctx, cedula, monto)

	var insufficient *helpers.InsufficientFundsError
	if errors.As(err, &insufficient) {
		current := insufficient.Account
		l.record(ctx, mutationRecord(models.OpSub, models.StatusRejected, monto, &current))
		return protocol.NewResponse(false, protocol.MsgInsufficient, map[string]interface{}{
			"cedula":    cedula,
			"nombres":   current.Nombres,
			"apellidos": current.Apellidos,
		})
	}
	if err != nil {
		return l.storeFailure(models.OpSub, cedula, err)
	}

	l.record(ctx, mutationRecord(models.OpSub, models.StatusApproved, monto, acct))

	return protocol.NewResponse(true, protocol.MsgDecremented, balanceData(acct))
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// record appends op to the operation log. A failed write is logged and
// dropped: the balance change already happened and stays the result.
func (l *Ledger) record(ctx context.Context, op *models.MOperation) {
	if l.Log == nil {
		return
	}
	if err := l.Log.AppendOperation(ctx, op); err != nil {
		l.Logger.Error("Failed to record %s %s operation (%s): %v", op.Tipo, op.Cedula, op.Estado, err)
	}
}

func (l *Ledger) storeFailure(verb, cedula string, err error) *models.MResponse {
	if errors.Is(err, helpers.ErrAccountNotFound) {
		return protocol.NewResponse(false, protocol.MsgNotFound(cedula), nil)
	}
	l.Logger.Error("%s %s failed: %v", verb, cedula, err)
	return protocol.NewResponse(false, protocol.MsgStoreFailure, nil)
}

func mutationRecord(tipo, estado string, monto float64, acct *models.MAccount) *models.MOperation {
	saldo := acct.Saldo
	return &models.MOperation{
		Cedula:     acct.Cedula,
		Tipo:       tipo,
		Monto:      &monto,
		SaldoNuevo: &saldo,
		Estado:     estado,
		Nombres:    acct.Nombres,
		Apellidos:  acct.Apellidos,
	}
}

func balanceData(acct *models.MAccount) map[string]interface{} {
	return map[string]interface{}{
		"cedula":    acct.Cedula,
		"saldo":     acct.Saldo,
		"nombres":   acct.Nombres,
		"apellidos": acct.Apellidos,
	}
}
