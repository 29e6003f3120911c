// Package server exposes the platform's HTTP surface: event ingestion,
// dashboard queries, state-machine triggers, tracking callbacks, and
// scheduler control.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/securaware/platform/internal/ingest"
	"github.com/securaware/platform/internal/lifecycle"
	"github.com/securaware/platform/internal/mailer"
	"github.com/securaware/platform/internal/pipeline"
	"github.com/securaware/platform/internal/scheduler"
	"github.com/securaware/platform/internal/training"
)

// Server is the HTTP API server.
type Server struct {
	router    *gin.Engine
	logger    *zap.Logger
	events    *ingest.Store
	runner    *pipeline.Runner
	machine   *lifecycle.Machine
	campaign  *mailer.Campaign
	decider   *training.Decider
	scheduler *scheduler.Coordinator
}

// validTrigger accepts only trigger names the state machine understands.
func validTrigger(fl validator.FieldLevel) bool {
	return lifecycle.KnownTrigger(lifecycle.Trigger(fl.Field().String()))
}

// NewServer creates the API server with injected components.
func NewServer(
	logger *zap.Logger,
	events *ingest.Store,
	runner *pipeline.Runner,
	machine *lifecycle.Machine,
	campaign *mailer.Campaign,
	decider *training.Decider,
	sched *scheduler.Coordinator,
) *Server {
	s := &Server{
		logger:    logger,
		events:    events,
		runner:    runner,
		machine:   machine,
		campaign:  campaign,
		decider:   decider,
		scheduler: sched,
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("trigger", validTrigger)
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	s.router = router
	s.registerRoutes()
	return s
}

// Start runs the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/health", s.health)

		api.POST("/events", s.ingestEvents)
		api.GET("/events/stats", s.eventStats)

		api.GET("/risk-summary", s.riskSummary)
		api.GET("/training-status", s.trainingStatus)
		api.POST("/pipeline/run", s.runPipeline)
		api.GET("/pipeline/runs", s.pipelineRuns)

		api.POST("/state/:user/trigger", s.applyTrigger)
		api.GET("/state/:user", s.getState)
		api.GET("/state/:user/history", s.getHistory)
		api.GET("/states", s.allStates)
		api.GET("/states/distribution", s.stateDistribution)

		api.POST("/email/send/:user", s.sendEmail)
		api.GET("/email/history/:user", s.emailHistory)

		api.POST("/scheduler/start", s.startScheduler)
		api.POST("/scheduler/stop", s.stopScheduler)
		api.GET("/scheduler/status", s.schedulerStatus)
	}

	track := s.router.Group("/track")
	{
		track.GET("/open/:token", s.trackInteraction(mailer.InteractionOpen))
		track.GET("/click/:token", s.trackInteraction(mailer.InteractionClick))
		track.GET("/report/:token", s.trackInteraction(mailer.InteractionReport))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "securaware-backend"})
}
