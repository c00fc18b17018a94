package server

import (
	"encoding/json"

	"ledger-socket/src/models"
	"ledger-socket/src/protocol"
)

// -----------------------------------------------------------------------------
// mutation describes one HTTP call that reached the ledger. Names are taken
// from the request when the response data does not carry them (PUT).
// -----------------------------------------------------------------------------

type mutation struct {
	Tipo      string
	Cedula    string
	Monto     *float64
	Nombres   string
	Apellidos string
}

// event returns the live update for resp, or nil when the outcome is not
// broadcast: only successful PUT/ADD/SUB and a SUB refused for insufficient
// balance are.
func (m mutation) event(resp *models.MResponse) *models.MEvent {
	var estado string
	switch {
	case resp.Ok && (m.Tipo == models.OpPut || m.Tipo == models.OpAdd || m.Tipo == models.OpSub):
		estado = models.StatusApproved
	case !resp.Ok && m.Tipo == models.OpSub && resp.Message == protocol.MsgInsufficient:
		estado = models.StatusRejected
	default:
		return nil
	}

	data := resp.Data
	ev := models.MOperationEvent{
		Tipo:      m.Tipo,
		Cedula:    safeString(data, "cedula", m.Cedula),
		Monto:     m.Monto,
		Nombres:   safeString(data, "nombres", m.Nombres),
		Apellidos: safeString(data, "apellidos", m.Apellidos),
		Estado:    estado,
	}
	if estado == models.StatusApproved {
		ev.Saldo = safeFloat64(data, "saldo")
	}

	return &models.MEvent{Event: models.EventOperation, Data: ev}
}

// -----------------------------------------------------------------------------

func safeString(data map[string]interface{}, key, fallback string) string {
	if val, ok := data[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return fallback
}

// -----------------------------------------------------------------------------

// safeFloat64 reads a number decoded from JSON; nil when absent.
func safeFloat64(data map[string]interface{}, key string) *float64 {
	val, ok := data[key]
	if !ok {
		return nil
	}
	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}
