package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"ledger-socket/src/config"
	"ledger-socket/src/ledger"
	"ledger-socket/src/logger"
	"ledger-socket/src/socket"
	"ledger-socket/src/storage"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serverClient starts a command server on a free port and returns a client
// aimed at it.
func serverClient(t *testing.T) *socket.Client {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "ctl.db")

	db, err := storage.NewDatabase(cfg)
	require.NoError(t, err)
	log := logger.NewLogger(nil, "CtlTest")
	srv := socket.NewServer(cfg, ledger.NewLedger(db, db, log), log)
	require.NoError(t, srv.Listen())
	go srv.Serve()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		db.Close()
	})

	host, port, err := net.SplitHostPort(srv.Addr().String())
	require.NoError(t, err)
	cfg.Gateway.SocketHost = host
	cfg.Gateway.SocketPort, err = strconv.Atoi(port)
	require.NoError(t, err)
	return socket.NewClient(cfg, log)
}

func TestVerbCmd_Run(t *testing.T) {
	client := serverClient(t)
	ctx := context.Background()
	var out bytes.Buffer

	put := &verbCmd{verb: "PUT", args: []string{"cedula", "nombres", "apellidos", "saldo"}, out: &out}
	assert.Equal(t, subcommands.ExitSuccess, put.run(ctx, client, []string{"7", "Eva", "Luna", "20"}))
	assert.Contains(t, out.String(), "Registro creado/actualizado")

	out.Reset()
	sub := &verbCmd{verb: "SUB", args: []string{"cedula", "monto"}, out: &out}
	assert.Equal(t, subcommands.ExitFailure, sub.run(ctx, client, []string{"7", "50"}))
	assert.Contains(t, out.String(), "Saldo insuficiente")
}

func TestVerbCmd_Usage(t *testing.T) {
	add := commands[2].(*verbCmd)
	assert.Equal(t, "add", add.Name())
	assert.Contains(t, add.Usage(), "ADD:<cedula>:<monto>")
}

func TestReplCmd_Run(t *testing.T) {
	client := serverClient(t)
	var out bytes.Buffer
	repl := &replCmd{
		in:  strings.NewReader("PUT:1:Ana:Ruiz:10\n\nadd:1:5\nGET:1\n"),
		out: &out,
	}

	require.Equal(t, subcommands.ExitSuccess, repl.run(context.Background(), client))

	text := out.String()
	assert.Contains(t, text, "Registro creado/actualizado")
	assert.Contains(t, text, "Saldo incrementado")
	assert.Contains(t, text, `"saldo":15`)
	assert.Equal(t, 3, strings.Count(text, `{"ok":true`))
}
