package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"ledger-socket/src/interfaces"
	"ledger-socket/src/logger"
	"ledger-socket/src/metrics"
	"ledger-socket/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// GatewayServer
// -----------------------------------------------------------------------------

type GatewayServer struct {
	Config *models.MConfig
	Logger *logger.Logger

	// Socket performs the one-line round trips to the command server.
	Socket interfaces.ICommandSender
	// Operations serves /operaciones straight from the store; may be nil.
	Operations interfaces.IOperationLog
	// Events receives mutation events; defaults to Hub.
	Events interfaces.IBroadcaster
	Hub    *Hub

	engine     *gin.Engine
	httpServer *http.Server
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewGatewayServer(cfg *models.MConfig, socket interfaces.ICommandSender, ops interfaces.IOperationLog, log *logger.Logger) *GatewayServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := NewHub(log)
	s := &GatewayServer{
		Config:     cfg,
		Logger:     log,
		Socket:     socket,
		Operations: ops,
		Events:     hub,
		Hub:        hub,
		engine:     gin.New(),
	}

	s.engine.Use(gin.Recovery(), metrics.GinMiddleware(), corsMiddleware())

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------

// corsMiddleware lets any browser origin call the gateway.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *GatewayServer) setupRoutes() {
	s.engine.GET("/health", s.getHealth)

	s.engine.GET("/clientes/:cedula", s.getCliente)
	s.engine.PUT("/clientes", s.putCliente)
	s.engine.POST("/clientes/:cedula/add", s.addSaldo)
	s.engine.POST("/clientes/:cedula/sub", s.subSaldo)

	s.engine.GET("/operaciones", s.listOperaciones)

	// Live updates
	s.engine.GET("/ws", s.handleWebSocket)

	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Handler exposes the router, mostly for httptest.
func (s *GatewayServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and serves HTTP on gateway.host:gateway.port until Stop.
func (s *GatewayServer) Start() error {
	addr := net.JoinHostPort(s.Config.Gateway.Host, fmt.Sprint(s.Config.Gateway.Port))
	s.Logger.Info("Starting gateway on %s", addr)

	go s.Hub.Run()

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop drains in-flight requests within ctx and disconnects subscribers.
func (s *GatewayServer) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.Hub.Stop()
	return err
}
