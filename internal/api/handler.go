package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"momentum-core/internal/events"
	"momentum-core/internal/learning"
	"momentum-core/internal/position"
	"momentum-core/internal/risk"
	"momentum-core/pkg/db"
)

// Server wires the operator HTTP endpoints around the event bus.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Queries   *db.Queries
	RiskMgr   *risk.Manager
	Positions *position.Manager
	Learning  *learning.Store
	JWTSecret string
	Auth      OperatorAuth
	Meta      SystemMeta
}

// OperatorAuth holds the single operator credential.
type OperatorAuth struct {
	User     string
	PassHash string // bcrypt
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	DryRun      bool
	Gateway     string
	UseMockFeed bool
	Version     string
	StartedAt   time.Time
}

func NewServer(bus *events.Bus, database *db.Database, queries *db.Queries, riskMgr *risk.Manager,
	positions *position.Manager, store *learning.Store, auth OperatorAuth, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Queries:   queries,
		RiskMgr:   riskMgr,
		Positions: positions,
		Learning:  store,
		JWTSecret: jwtSecret,
		Auth:      auth,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.POST("/auth/login", s.login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/positions", s.getPositions)
			protected.GET("/positions/history", s.getPositionHistory)
			protected.GET("/signals", s.getSignals)
			protected.GET("/signals/stats", s.getSignalStats)
			protected.GET("/trades", s.getTrades)
			protected.GET("/patterns", s.getPatterns)
			protected.GET("/weights", s.getWeights)
			protected.GET("/weights/history", s.getWeightHistory)
			protected.GET("/thresholds", s.getThresholds)
			protected.GET("/risk", s.getRiskMetrics)
			protected.GET("/tickers/stats", s.getTickerStats)

			protected.POST("/risk/halt", s.haltTrading)
			protected.POST("/risk/resume", s.resumeTrading)
			protected.POST("/positions/liquidate", s.liquidateAll)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
