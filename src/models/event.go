package models

// EventOperation is the only event name pushed to live subscribers.
const EventOperation = "operacion"

// -----------------------------------------------------------------------------
// Live update envelope sent over /ws
// -----------------------------------------------------------------------------

type MEvent struct {
	Event string          `json:"event"`
	Data  MOperationEvent `json:"data"`
}

type MOperationEvent struct {
	Tipo      string   `json:"tipo"`
	Cedula    string   `json:"cedula"`
	Monto     *float64 `json:"monto,omitempty"`
	Saldo     *float64 `json:"saldo,omitempty"`
	Nombres   string   `json:"nombres,omitempty"`
	Apellidos string   `json:"apellidos,omitempty"`
	Estado    string   `json:"estado"`
}
