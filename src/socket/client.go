package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"ledger-socket/src/helpers"
	"ledger-socket/src/logger"
	"ledger-socket/src/models"
	"ledger-socket/src/protocol"
)

const retryBaseDelay = 100 * time.Millisecond

// -----------------------------------------------------------------------------
// Client talks to the command server. Send uses a fresh connection per call;
// Open keeps one connection for interactive use.
// -----------------------------------------------------------------------------

type Client struct {
	Config *models.MConfig
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MConfig, log *logger.Logger) *Client {
	return &Client{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Address is the gateway.socket_host:gateway.socket_port target.
func (c *Client) Address() string {
	return net.JoinHostPort(c.Config.Gateway.SocketHost, fmt.Sprint(c.Config.Gateway.SocketPort))
}

func (c *Client) requestTimeout() time.Duration {
	return time.Duration(c.Config.Gateway.RequestTimeout) * time.Second
}

// -----------------------------------------------------------------------------

// dial connects with gateway.dial_timeout per attempt, retrying refused or
// timed-out dials gateway.retries times with exponential backoff.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: time.Duration(c.Config.Gateway.DialTimeout) * time.Second}
	addr := c.Address()

	conn, err := helpers.RetryWithBackoff(ctx, c.Logger, "dial "+addr, c.Config.Gateway.MaxRetries, retryBaseDelay,
		func() (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		})
	if err != nil {
		return nil, helpers.NewNetworkError("connect to socket server "+addr, err)
	}
	return conn, nil
}

// -----------------------------------------------------------------------------

// Send performs one round trip: connect, write the command line, read one
// response line, close. If the server closes before a delimiter, whatever was
// received is returned as the line.
func (c *Client) Send(ctx context.Context, command string) (string, error) {
	if strings.ContainsAny(command, "\r\n") {
		return "", helpers.NewValidationError("command must be a single line", nil)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	return exchange(ctx, conn, protocol.NewLineReader(conn), command, c.requestTimeout())
}

// -----------------------------------------------------------------------------

// Open returns a Session over one persistent connection.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{
		conn:    conn,
		reader:  protocol.NewLineReader(conn),
		timeout: c.requestTimeout(),
	}, nil
}

// -----------------------------------------------------------------------------
// Session pipelines commands over a single connection, one at a time.
// -----------------------------------------------------------------------------

type Session struct {
	conn    net.Conn
	reader  *protocol.LineReader
	timeout time.Duration
}

func (s *Session) Send(ctx context.Context, command string) (string, error) {
	return exchange(ctx, s.conn, s.reader, command, s.timeout)
}

func (s *Session) Close() error {
	return s.conn.Close()
}

// -----------------------------------------------------------------------------

func exchange(ctx context.Context, conn net.Conn, reader *protocol.LineReader, command string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", helpers.NewNetworkError("set deadline", err)
	}

	// unblock the read if ctx is cancelled without a deadline
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := io.WriteString(conn, command+string(protocol.Delimiter)); err != nil {
		return "", helpers.NewNetworkError("send command", err)
	}

	line, err := reader.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return line, nil
		}
		if ctx.Err() != nil {
			return "", helpers.NewNetworkError("read response", ctx.Err())
		}
		return "", helpers.NewNetworkError("read response", err)
	}
	return line, nil
}
