package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"ledger-socket/src/config"
	"ledger-socket/src/ledger"
	"ledger-socket/src/logger"
	"ledger-socket/src/models"
	"ledger-socket/src/socket"
	"ledger-socket/src/storage"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startStack wires SQLite, the command server and the gateway the way the
// binaries do, with every listener on a free local port.
func startStack(t *testing.T) (*GatewayServer, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "e2e.db")

	db, err := storage.NewDatabase(cfg)
	require.NoError(t, err)

	log := logger.NewLogger(nil, "E2E")
	srv := socket.NewServer(cfg, ledger.NewLedger(db, db, log), log)
	require.NoError(t, srv.Listen())
	go srv.Serve()

	host, port, err := net.SplitHostPort(srv.Addr().String())
	require.NoError(t, err)
	cfg.Gateway.SocketHost = host
	cfg.Gateway.SocketPort, err = strconv.Atoi(port)
	require.NoError(t, err)

	gw := NewGatewayServer(cfg, socket.NewClient(cfg, log), db, log)
	go gw.Hub.Run()
	httpSrv := httptest.NewServer(gw.Handler())

	t.Cleanup(func() {
		httpSrv.Close()
		gw.Hub.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		db.Close()
	})
	return gw, httpSrv.URL
}

func call(t *testing.T, method, url, body string) (int, models.MResponse) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out models.MResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

// -----------------------------------------------------------------------------

func TestEndToEnd_AddBroadcastsOnce(t *testing.T) {
	gw, base := startStack(t)

	code, put := call(t, http.MethodPut, base+"/clientes", `{"cedula":"123","nombres":"Ana","apellidos":"Ruiz","saldo":100.0}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, put.Ok)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return gw.Hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	code, add := call(t, http.MethodPost, base+"/clientes/123/add", `{"monto":50}`)
	require.Equal(t, http.StatusOK, code)
	require.True(t, add.Ok)
	assert.Equal(t, 150.0, add.Data["saldo"])

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev models.MEvent
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, models.OpAdd, ev.Data.Tipo)
	assert.Equal(t, models.StatusApproved, ev.Data.Estado)
	assert.Equal(t, add.Data["saldo"], *ev.Data.Saldo)

	// exactly one event for the call
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = ws.ReadMessage()
	assert.Error(t, err)
}

func TestEndToEnd_ScenarioOverHTTP(t *testing.T) {
	_, base := startStack(t)

	_, put := call(t, http.MethodPut, base+"/clientes", `{"cedula":"123","nombres":"Ana","apellidos":"Ruiz","saldo":100.0}`)
	assert.Equal(t, "Registro creado/actualizado", put.Message)

	code, sub := call(t, http.MethodPost, base+"/clientes/123/sub", `{"monto":150}`)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, sub.Ok)
	assert.Equal(t, "Saldo insuficiente", sub.Message)

	_, get := call(t, http.MethodGet, base+"/clientes/123", "")
	assert.Equal(t, 100.0, get.Data["saldo"])

	_, add := call(t, http.MethodPost, base+"/clientes/123/add", `{"monto":50}`)
	assert.Equal(t, 150.0, add.Data["saldo"])

	_, missing := call(t, http.MethodGet, base+"/clientes/999", "")
	assert.Equal(t, "No existe registro para cédula 999", missing.Message)

	res, err := http.Get(base + "/operaciones?cedula=123&limit=2")
	require.NoError(t, err)
	defer res.Body.Close()
	var listing struct {
		Ok   bool                `json:"ok"`
		Data []models.MOperation `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&listing))
	require.Len(t, listing.Data, 2)
	assert.Equal(t, models.OpAdd, listing.Data[0].Tipo)
	assert.Equal(t, models.StatusRejected, listing.Data[1].Estado)
}
