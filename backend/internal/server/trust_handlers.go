package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"calibra/backend/internal/persona"
	"calibra/backend/internal/trust"
	"calibra/backend/pkg/errors"
)

type analyzeRequest struct {
	Question  string `json:"question"`
	Answer    string `json:"answer" binding:"required"`
	Reasoning string `json:"reasoning"`
	MessageID *uint  `json:"message_id"`
}

// handleAnalyze runs the judge over an assistant answer. The judge never
// fails hard, so this endpoint always answers 200 with an analysis.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	ctx := c.Request.Context()

	analysis := s.judge.Analyze(ctx, req.Question, req.Answer, req.Reasoning)

	// Persist when the caller tells us which message this analysis belongs
	// to; a failed write degrades to analysis-only.
	if req.MessageID != nil {
		if err := s.messages.UpdateTrustAnalysis(ctx, userID, req.MessageID, "", analysis); err != nil {
			s.logger.Warn("Failed to persist trust analysis",
				zap.Uint("message_id", *req.MessageID),
				zap.Error(err),
			)
		}
	}

	c.JSON(http.StatusOK, analysis)
}

type updateTrustRequest struct {
	MessageID *uint          `json:"message_id"`
	Content   string         `json:"content"`
	Analysis  trust.Analysis `json:"analysis" binding:"required"`
}

func (s *Server) handleUpdateTrustAnalysis(c *gin.Context) {
	var req updateTrustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MessageID == nil && req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_id or content is required"})
		return
	}

	userID := currentUserID(c)
	err := s.messages.UpdateTrustAnalysis(c.Request.Context(), userID, req.MessageID, req.Content, &req.Analysis)
	if err != nil {
		if errors.Is(err, errors.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		s.logger.Error("Failed to update trust analysis", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update trust analysis"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type verifyPersonaRequest struct {
	Role string `json:"role" binding:"required"`
}

func (s *Server) handleVerifyPersona(c *gin.Context) {
	var req verifyPersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	valid := persona.IsValidRole(req.Role)
	resp := gin.H{"valid": valid}
	if valid {
		resp["name"] = persona.RoleName(req.Role)
	}
	c.JSON(http.StatusOK, resp)
}
