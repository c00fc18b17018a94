package protocol

import "fmt"

// Response messages written by the command server.
const (
	MsgFound          = "Registro encontrado"
	MsgUpserted       = "Registro creado/actualizado"
	MsgIncremented    = "Saldo incrementado"
	MsgDecremented    = "Saldo decrementado"
	MsgInvalidBalance = "Saldo inválido"
	MsgInvalidAmount  = "Monto inválido"
	MsgInsufficient   = "Saldo insuficiente"
	MsgInvalidCommand = "Comando inválido o argumentos incorrectos"
	MsgStoreFailure   = "Error interno de almacenamiento"
)

// MsgNotFound is the failure text for an unknown cedula.
func MsgNotFound(cedula string) string {
	return fmt.Sprintf("No existe registro para cédula %s", cedula)
}
