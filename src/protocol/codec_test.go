package protocol

import (
	"errors"
	"io"
	"net"
	"testing"

	"ledger-socket/src/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_SingleLineNoEscaping(t *testing.T) {
	resp := NewResponse(false, MsgNotFound("123"), nil)
	b, err := Encode(resp)
	require.NoError(t, err)

	assert.Equal(t, `{"ok":false,"message":"No existe registro para cédula 123"}`+"\n", string(b))
}

func TestEncode_WithData(t *testing.T) {
	resp := NewResponse(true, MsgUpserted, map[string]interface{}{"cedula": "123", "saldo": 100.0})
	b, err := Encode(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"message":"Registro creado/actualizado","data":{"cedula":"123","saldo":100}}`, string(b))
	assert.Equal(t, byte('\n'), b[len(b)-1])
}

func TestDecode(t *testing.T) {
	resp, err := Decode(`{"ok":false,"message":"Saldo insuficiente","data":{"cedula":"123","nombres":"Ana","apellidos":"Ruiz"}}`)
	require.NoError(t, err)
	assert.False(t, resp.Ok)
	assert.Equal(t, MsgInsufficient, resp.Message)
	assert.Equal(t, "Ana", resp.Data["nombres"])
	assert.NotContains(t, resp.Data, "saldo")

	for _, raw := range []string{"", "hola", "[1,2]", `{"ok":`, `{"ok":true} {"ok":false}`} {
		_, err := Decode(raw)
		assert.True(t, errors.Is(err, helpers.ErrUpstreamProtocol), "raw %q", raw)
	}
}

func TestLineReader_Pipelined(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		// one write carrying two commands and the head of a third
		client.Write([]byte("GET:1\nGET:2\nADD:"))
		client.Write([]byte("3:50\n"))
		client.Write([]byte("SUB:3"))
		client.Close()
	}()

	lr := NewLineReader(server)
	for _, want := range []string{"GET:1", "GET:2", "ADD:3:50"} {
		line, err := lr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}

	line, err := lr.ReadLine()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "SUB:3", line)
}
