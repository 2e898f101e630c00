package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"calibra/backend/internal/adapter"
	"calibra/backend/internal/persona"
	"calibra/backend/internal/store"
	"calibra/backend/internal/trust"
)

type chatRequest struct {
	Message     string                `json:"message" binding:"required"`
	History     []adapter.ChatMessage `json:"history"`
	PersonaRole string                `json:"persona_role"`
	PersonaTone string                `json:"persona_tone"`
	Context     string                `json:"context"`
}

// handleChat streams an assistant reply over SSE. Events: "reasoning" and
// "content" carry incremental deltas, "done" carries the stored message
// metadata, "error" ends a failed stream.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	ctx := c.Request.Context()

	if _, err := s.messages.Save(ctx, &store.Message{
		UserID:  userID,
		Role:    "user",
		Content: req.Message,
	}); err != nil {
		s.logger.Error("Failed to save user message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}

	role := req.PersonaRole
	if role == "" {
		role = "rational_analyst"
	}
	systemPrompt := persona.BuildSystemPrompt(role, req.PersonaTone, req.Context)
	messages := make([]adapter.ChatMessage, 0, len(req.History)+2)
	messages = append(messages, adapter.ChatMessage{Role: "system", Content: systemPrompt})
	messages = append(messages, req.History...)
	messages = append(messages, adapter.ChatMessage{Role: "user", Content: req.Message})

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	send := func(event string, payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	result, err := s.llm.Stream(ctx, s.cfg.ChatModel, messages, 0.3, 8000, func(d adapter.StreamDelta) error {
		if d.Reasoning != "" {
			send("reasoning", gin.H{"delta": d.Reasoning})
		}
		if d.Content != "" {
			send("content", gin.H{"delta": d.Content})
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Chat stream failed", zap.Error(err))
		send("error", gin.H{"error": "chat stream failed"})
		return
	}

	conf := trust.ScoreConfidence(result.Content)
	topic := trust.SimpleTopic(result.Content)

	assistantMsg := &store.Message{
		UserID:          userID,
		Role:            "assistant",
		Content:         result.Content,
		ConfidenceLabel: &conf.Label,
		ConfidenceScore: &conf.Score,
		Reasoning:       result.Reasoning,
	}
	msgID, err := s.messages.Save(ctx, assistantMsg)
	if err != nil {
		s.logger.Error("Failed to save assistant message", zap.Error(err))
		send("error", gin.H{"error": "failed to save message"})
		return
	}

	send("done", gin.H{
		"message_id": msgID,
		"confidence": conf,
		"topic":      topic,
	})
}
