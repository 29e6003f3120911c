package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/securaware/platform/internal/ingest"
	"github.com/securaware/platform/internal/lifecycle"
	"github.com/securaware/platform/internal/mailer"
	"github.com/securaware/platform/internal/pipeline"
	"github.com/securaware/platform/internal/training"
	"github.com/securaware/platform/pkg/errors"
	"github.com/securaware/platform/pkg/models"
)

type ingestRequest struct {
	UserID    string            `json:"user_id" binding:"required"`
	SessionID string            `json:"session_id" binding:"required"`
	Events    []ingest.RawEvent `json:"events" binding:"required,dive"`
}

func (s *Server) ingestEvents(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inserted, err := s.events.InsertEvents(c.Request.Context(),
		req.UserID, req.SessionID, req.Events, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": inserted})
}

func (s *Server) eventStats(c *gin.Context) {
	stats, err := s.events.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load event stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func tierFromScore(score float64) string {
	switch {
	case score >= training.ThresholdMandatory:
		return "High"
	case score >= training.ThresholdMicro:
		return "Medium"
	default:
		return "Low"
	}
}

func (s *Server) riskSummary(c *gin.Context) {
	records, err := s.runner.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "data not available"})
		return
	}

	payload := make([]gin.H, 0, len(records))
	for _, r := range records {
		decision, err := s.decider.Decide(r.User, r.FinalRiskScore)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected score format"})
			return
		}
		action := "No action"
		if decision.Action != models.TrainingNone {
			action = "Training triggered"
		}

		tags := []string{}
		for _, t := range strings.Split(r.RiskReason, ";") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}

		payload = append(payload, gin.H{
			"user":         r.User,
			"risk_score":   r.FinalRiskScore,
			"tier":         tierFromScore(r.FinalRiskScore),
			"reason_tags":  tags,
			"action_taken": action,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

func (s *Server) trainingStatus(c *gin.Context) {
	records, err := s.runner.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "data not available"})
		return
	}

	pairs := make([]training.UserScore, len(records))
	for i, r := range records {
		pairs[i] = training.UserScore{User: r.User, Score: r.FinalRiskScore}
	}
	decisions, err := s.decider.DecideBatch(pairs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decisions})
}

func (s *Server) runPipeline(c *gin.Context) {
	result, err := s.runner.Run(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.IsSchema(err), errors.IsValidation(err):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, pipeline.ErrRunInProgress):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":      result.RunID,
		"event_count": result.EventCount,
		"user_count":  result.UserCount,
	})
}

func (s *Server) pipelineRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	runs, err := s.runner.Runs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

type triggerRequest struct {
	Trigger string `json:"trigger" binding:"required,trigger"`
	Reason  string `json:"reason"`
}

func (s *Server) applyTrigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.machine.Apply(c.Request.Context(),
		c.Param("user"), lifecycle.Trigger(req.Trigger), req.Reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply transition"})
		return
	}
	// A rejected trigger is a normal outcome, not an HTTP error.
	c.JSON(http.StatusOK, result)
}

func (s *Server) getState(c *gin.Context) {
	state, err := s.machine.GetState(c.Request.Context(), c.Param("user"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load state"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("user"), "current_state": state})
}

func (s *Server) getHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := s.machine.GetHistory(c.Request.Context(), c.Param("user"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) allStates(c *gin.Context) {
	rows, err := s.machine.GetAllStates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load states"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) stateDistribution(c *gin.Context) {
	dist, err := s.machine.GetStateDistribution(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load distribution"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dist})
}

func (s *Server) trackInteraction(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.campaign.RecordInteraction(c.Request.Context(), c.Param("token"), kind)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if kind == mailer.InteractionOpen {
			// 1x1 pixel response for open tracking.
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type sendEmailRequest struct {
	RiskScore float64 `json:"risk_score"`
	Reason    string  `json:"reason"`
}

func (s *Server) sendEmail(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sent, err := s.campaign.Dispatch(c.Request.Context(), c.Param("user"), req.RiskScore, req.Reason)
	if err != nil {
		if errors.Is(err, mailer.ErrNotEligible) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to dispatch email"})
		return
	}
	c.JSON(http.StatusOK, sent)
}

func (s *Server) emailHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := s.campaign.History(c.Request.Context(), c.Param("user"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load email history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) startScheduler(c *gin.Context) {
	if err := s.scheduler.Start(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": true})
}

func (s *Server) stopScheduler(c *gin.Context) {
	if err := s.scheduler.Stop(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

func (s *Server) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.scheduler.GetStatus())
}
