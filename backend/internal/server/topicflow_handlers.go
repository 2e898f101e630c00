package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"calibra/backend/internal/store"
	"calibra/backend/internal/topicflow"
)

func (s *Server) handleConversation(c *gin.Context) {
	userID := currentUserID(c)
	ctx := c.Request.Context()

	messages, err := s.messages.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"topics":   s.recentTopics(c, userID),
	})
}

// recentTopics returns up to seven distinct top-level topic labels, most
// recently updated first. Failures degrade to an empty list.
func (s *Server) recentTopics(c *gin.Context, userID uint) []string {
	topics := []string{}
	snap, err := s.topicFlow.GetCurrent(c.Request.Context(), userID)
	if err != nil {
		s.logger.Warn("Failed to load topics for conversation", zap.Error(err))
		return topics
	}
	for _, node := range snap.Nodes {
		if node.Level != store.LevelTopic {
			continue
		}
		topics = append(topics, node.Label)
		if len(topics) == 7 {
			break
		}
	}
	return topics
}

// handleTopicFlowGet returns the current graph without triggering
// extraction. Storage failures degrade to an empty graph so the
// visualization never breaks the page.
func (s *Server) handleTopicFlowGet(c *gin.Context) {
	userID := currentUserID(c)

	snap, err := s.topicFlow.GetCurrent(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to load topic flow", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"nodes": []store.GraphNode{},
			"links": []store.GraphLink{},
			"stats": store.TopicStats{},
		})
		return
	}

	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleTopicFlowUpdate(c *gin.Context) {
	forceRecompute := c.Query("force_recompute") == "true"

	userID := currentUserID(c)
	ctx := c.Request.Context()

	messages, err := s.messages.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list messages for topic flow", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	raw := make([]topicflow.RawMessage, 0, len(messages))
	for _, m := range messages {
		raw = append(raw, topicflow.RawMessage{
			ID:      m.ID,
			Role:    m.Role,
			Content: m.Content,
		})
	}

	result, err := s.topicFlow.Update(ctx, raw, userID, forceRecompute)
	if err != nil {
		s.logger.Error("Topic flow update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "topic flow update failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTopicFlowReset(c *gin.Context) {
	userID := currentUserID(c)

	if err := s.topicFlow.Reset(c.Request.Context(), userID); err != nil {
		s.logger.Error("Topic flow reset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset topic flow"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "topic flow reset"})
}
