// Package statusapi is the read-only HTTP surface: health check, current
// session snapshot, and Prometheus metrics. There is no multi-role actor
// in this process — one bot runs one session — so no auth middleware or
// route-level RBAC applies here.
package statusapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/botcore/internal/capture"
	"github.com/example/botcore/internal/config"
)

type Server struct {
	cfg     *config.Config
	session *capture.Session
	router  *gin.Engine
}

func New(cfg *config.Config, session *capture.Session) *Server {
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg, session: session, router: gin.Default()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET"}
	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "botcore"})
	})

	s.router.GET("/session", func(c *gin.Context) {
		if s.session == nil {
			c.JSON(http.StatusOK, gin.H{"state": "unstarted"})
			return
		}
		snap := s.session.Snapshot()
		body := gin.H{
			"state":                snap.State.String(),
			"is_audio_only":        snap.IsAudioOnly,
			"recording_start_time": snap.RecordingStartTime,
			"meeting_start_time":   snap.MeetingStartTime,
			"grace_active":         snap.GraceActive,
		}
		if snap.LastError != nil {
			body["last_error"] = snap.LastError.Error()
		}
		c.JSON(http.StatusOK, body)
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run starts the status server on the configured address, blocking until it
// exits or the process is terminated.
func (s *Server) Run() error {
	return s.router.Run(s.cfg.Server.StatusAddr)
}
