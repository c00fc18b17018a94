package models

// MAccount is one ledger entry keyed by cedula.
type MAccount struct {
	Cedula    string  `json:"cedula"`
	Nombres   string  `json:"nombres"`
	Apellidos string  `json:"apellidos"`
	Saldo     float64 `json:"saldo"`
}
