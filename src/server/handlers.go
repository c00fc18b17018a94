package server

import (
	"errors"
	"net/http"
	"strconv"

	"ledger-socket/src/helpers"
	"ledger-socket/src/models"
	"ledger-socket/src/protocol"

	"github.com/gin-gonic/gin"
)

const (
	defaultOperationsLimit = 50
	maxOperationsLimit     = 500

	msgInvalidUpstream = "invalid response from socket server"
	msgUnavailable     = "socket server unavailable"
	msgInvalidField    = "fields must not contain ':' or line breaks"
)

// -----------------------------------------------------------------------------
// Request bodies. Pointers make "field missing" distinct from zero values.
// -----------------------------------------------------------------------------

type clienteBody struct {
	Cedula    *string  `json:"cedula" binding:"required"`
	Nombres   *string  `json:"nombres" binding:"required"`
	Apellidos *string  `json:"apellidos" binding:"required"`
	Saldo     *float64 `json:"saldo" binding:"required"`
}

type operacionBody struct {
	Monto *float64 `json:"monto" binding:"required"`
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *GatewayServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "gateway up"})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) getCliente(c *gin.Context) {
	cedula := c.Param("cedula")
	if !protocol.ValidField(cedula) {
		unprocessable(c, msgInvalidField)
		return
	}
	s.relay(c, protocol.Format(models.OpGet, cedula))
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) putCliente(c *gin.Context) {
	var body clienteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		unprocessable(c, err.Error())
		return
	}
	if !protocol.ValidField(*body.Cedula) || !protocol.ValidField(*body.Nombres) || !protocol.ValidField(*body.Apellidos) {
		unprocessable(c, msgInvalidField)
		return
	}

	cmd := protocol.Format(models.OpPut, *body.Cedula, *body.Nombres, *body.Apellidos, protocol.FormatAmount(*body.Saldo))
	resp := s.relay(c, cmd)
	s.publish(mutation{
		Tipo:      models.OpPut,
		Cedula:    *body.Cedula,
		Nombres:   *body.Nombres,
		Apellidos: *body.Apellidos,
	}, resp)
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) addSaldo(c *gin.Context) {
	s.moveBalance(c, models.OpAdd)
}

func (s *GatewayServer) subSaldo(c *gin.Context) {
	s.moveBalance(c, models.OpSub)
}

func (s *GatewayServer) moveBalance(c *gin.Context, verb string) {
	cedula := c.Param("cedula")
	var body operacionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		unprocessable(c, err.Error())
		return
	}
	if !protocol.ValidField(cedula) {
		unprocessable(c, msgInvalidField)
		return
	}

	monto := *body.Monto
	resp := s.relay(c, protocol.Format(verb, cedula, protocol.FormatAmount(monto)))
	s.publish(mutation{Tipo: verb, Cedula: cedula, Monto: &monto}, resp)
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) listOperaciones(c *gin.Context) {
	cedula := c.Query("cedula")
	if cedula == "" {
		unprocessable(c, "cedula is required")
		return
	}

	limit := defaultOperationsLimit
	if raw, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			unprocessable(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxOperationsLimit)
	}

	if s.Operations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "message": "operation log unavailable"})
		return
	}

	ops, err := s.Operations.ListOperations(c.Request.Context(), cedula, limit)
	if err != nil {
		s.Logger.Error("List operations for %s failed: %v", cedula, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "failed to read operations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "operations found", "data": ops})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) handleWebSocket(c *gin.Context) {
	if err := s.Hub.Subscribe(c.Writer, c.Request); err != nil {
		s.Logger.Debug("Subscribe from %s rejected: %v", c.ClientIP(), err)
	}
}

// -----------------------------------------------------------------------------
// Translation Helpers
// -----------------------------------------------------------------------------

// relay sends command to the socket server and writes the HTTP answer. It
// returns the parsed envelope, or nil when the exchange itself failed.
func (s *GatewayServer) relay(c *gin.Context, command string) *models.MResponse {
	line, err := s.Socket.Send(c.Request.Context(), command)
	if err != nil {
		s.Logger.Warning("Socket round trip for %q failed: %v", command, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "message": msgUnavailable})
		return nil
	}

	resp, err := protocol.Decode(line)
	if err != nil {
		if errors.Is(err, helpers.ErrUpstreamProtocol) {
			s.Logger.Error("Unparseable reply to %q: %v", command, err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "message": msgInvalidUpstream, "raw": line})
		return nil
	}

	// ok=false envelopes are answers too and pass through unchanged
	c.JSON(http.StatusOK, resp)
	return resp
}

// publish schedules the live update for m without holding up the response.
func (s *GatewayServer) publish(m mutation, resp *models.MResponse) {
	if resp == nil || s.Events == nil {
		return
	}
	if ev := m.event(resp); ev != nil {
		go s.Events.Broadcast(ev)
	}
}

func unprocessable(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "message": message})
}
