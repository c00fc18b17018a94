package models

import "time"

// Command verbs; the last three are also operation kinds
const (
	OpGet = "GET"
	OpPut = "PUT"
	OpAdd = "ADD"
	OpSub = "SUB"
)

// Operation outcomes
const (
	StatusApproved = "APROBADO"
	StatusRejected = "RECHAZADO"
)

// MOperation is an audit record for one ledger mutation attempt.
type MOperation struct {
	ID         string    `json:"id"`
	Cedula     string    `json:"cedula"`
	Tipo       string    `json:"tipo"`
	Monto      *float64  `json:"monto"`       // nil for PUT
	SaldoNuevo *float64  `json:"saldo_nuevo"` // balance after the attempt
	Estado     string    `json:"estado"`
	Nombres    string    `json:"nombres"`
	Apellidos  string    `json:"apellidos"`
	Ts         time.Time `json:"ts"`
}
