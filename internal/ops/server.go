package ops

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/canonical/maas-sub023/internal/observability"
	"github.com/canonical/maas-sub023/internal/tftp/session"
)

// Server exposes transfer status and metrics over HTTP.
type Server struct {
	addr     string
	router   *gin.Engine
	registry *session.Registry
	started  time.Time
}

func NewServer(addr string, corsOrigins []string, registry *session.Registry, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(logger))
	router.Use(observability.RequestMetricsMiddleware())
	if len(corsOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = corsOrigins
		router.Use(cors.New(corsCfg))
	}

	s := &Server{
		addr:     addr,
		router:   router,
		registry: registry,
		started:  time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"component": "tftp-ops",
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"uptime": time.Since(s.started).String(),
		})
	})

	s.router.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"count":    s.registry.Len(),
			"sessions": s.registry.List(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the listener fails.
func (s *Server) Run() error {
	return s.router.Run(s.addr)
}
