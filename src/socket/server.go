package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"ledger-socket/src/ledger"
	"ledger-socket/src/logger"
	"ledger-socket/src/metrics"
	"ledger-socket/src/models"
	"ledger-socket/src/protocol"
)

// -----------------------------------------------------------------------------
// Server accepts TCP connections and hands each one to its own goroutine.
// Commands on one connection run in order; distinct connections run
// concurrently and rely on the store for atomicity.
// -----------------------------------------------------------------------------

type Server struct {
	Config *models.MConfig
	Ledger *ledger.Ledger
	Logger *logger.Logger

	listener net.Listener
	closing  atomic.Bool

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, l *ledger.Ledger, log *logger.Logger) *Server {
	return &Server{
		Config: cfg,
		Ledger: l,
		Logger: log,
		conns:  make(map[net.Conn]struct{}),
	}
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Listen binds server.host:server.port. Port 0 picks a free port, see Addr.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.Config.Server.Host, fmt.Sprint(s.Config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// -----------------------------------------------------------------------------

// Start listens and serves until Shutdown.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// -----------------------------------------------------------------------------

// Serve runs the accept loop on the bound listener. It returns nil once
// Shutdown closes the listener.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("socket server is not listening")
	}
	s.Logger.Info("Socket server listening on %s", s.listener.Addr())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.Logger.Warning("Accept timeout: %v", err)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		if !s.track(conn) {
			conn.Close()
			continue
		}
		go s.handleConn(conn)
	}
}

// -----------------------------------------------------------------------------

// Shutdown stops accepting and waits for open connections to finish. When
// ctx ends first the remaining connections are closed and ctx.Err returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// Connection Handling
// -----------------------------------------------------------------------------

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	metrics.ConnectionOpened()
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	metrics.ConnectionClosed()
	s.wg.Done()
}

// -----------------------------------------------------------------------------

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		conn.Close()
		s.untrack(conn)
	}()

	peer := conn.RemoteAddr().String()
	s.Logger.Info("Client connected from %s", peer)

	ctx := context.Background()
	reader := protocol.NewLineReader(conn)
	for {
		line, err := reader.ReadLine()
		if err != nil {
			// a fragment without delimiter at EOF is not a command
			if !errors.Is(err, io.EOF) && !s.closing.Load() {
				s.Logger.Warning("Read from %s failed: %v", peer, err)
			}
			break
		}

		line = strings.ToValidUTF8(line, "�")
		s.Logger.Debug("Request from %s: %s", peer, line)

		out, err := protocol.Encode(s.Ledger.Execute(ctx, line))
		if err != nil {
			s.Logger.Error("Encode response for %q failed: %v", line, err)
			out, _ = protocol.Encode(protocol.NewResponse(false, protocol.MsgStoreFailure, nil))
		}
		if _, err := conn.Write(out); err != nil {
			s.Logger.Warning("Write to %s failed: %v", peer, err)
			break
		}
	}

	s.Logger.Info("Client %s disconnected", peer)
}
