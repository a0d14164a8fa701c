package server

import (
	"fmt"
	"net/http"
	"strings"

	"market-depth/src/book"
	"market-depth/src/hub"
	"market-depth/src/logger"
	"market-depth/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server exposes the streaming endpoint plus a small REST surface: health,
// and the read-only book views polled by rendering consumers.
type Server struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Hub     *hub.Hub
	Tracker *book.Tracker

	engine    *gin.Engine
	queueSize int
	policy    hub.OverflowPolicy
}

// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, log *logger.Logger, h *hub.Hub, tracker *book.Tracker) *Server {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	queueSize := cfg.Hub.ClientQueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	s := &Server{
		Config:    cfg,
		Logger:    log,
		Hub:       h,
		Tracker:   tracker,
		engine:    gin.Default(),
		queueSize: queueSize,
		policy:    hub.ParseOverflowPolicy(cfg.Hub.OverflowPolicy),
	}

	// CORS for local dashboards
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/books", s.getBooks)
	s.engine.GET("/api/books/:instrument", s.getBook)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)
	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":      "ok",
		"feed_mode":   s.Config.Feed.Mode,
		"connections": s.Hub.ClientCount(),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getBooks(c *gin.Context) {
	c.JSON(200, gin.H{
		"instruments": s.Tracker.Instruments(),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getBook(c *gin.Context) {
	view, ok := s.Tracker.View(c.Param("instrument"))
	if !ok {
		c.JSON(404, gin.H{"error": "unknown instrument"})
		return
	}
	c.JSON(200, view)
}

// -----------------------------------------------------------------------------
// WebSocket Handler
// -----------------------------------------------------------------------------

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	session := &Session{
		id:     uuid.NewString(),
		hub:    s.Hub,
		conn:   conn,
		logger: s.Logger,
	}

	// Under the disconnect policy a saturated queue closes the socket, which
	// unwinds both pumps. The callback must not touch the hub directly: it
	// can fire inside a broadcast that already holds the hub lock.
	session.queue = hub.NewQueue(s.queueSize, s.policy, func() { conn.Close() })

	s.Hub.RegisterClient(session.id, session.queue)
	s.Logger.Info("Client %s connected from %s", session.id, c.ClientIP())

	go session.writePump()
	go session.readPump()
}
