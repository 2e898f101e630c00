// Package server wires the HTTP API: routing, middleware, and handlers.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"calibra/backend/internal/adapter"
	"calibra/backend/internal/auth"
	"calibra/backend/internal/store"
	"calibra/backend/internal/topicflow"
	"calibra/backend/internal/trust"
	"calibra/backend/pkg/config"
	"calibra/backend/pkg/logger"
)

// Server holds the dependencies shared by all HTTP handlers
type Server struct {
	cfg       *config.Config
	llm       *adapter.LLMAdapter
	users     *store.UserStore
	messages  *store.MessageStore
	topicFlow *topicflow.Service
	judge     *trust.Judge
	tokens    *auth.TokenManager
	logger    *zap.Logger
}

func New(
	cfg *config.Config,
	llm *adapter.LLMAdapter,
	users *store.UserStore,
	messages *store.MessageStore,
	topicFlow *topicflow.Service,
	judge *trust.Judge,
	tokens *auth.TokenManager,
) *Server {
	return &Server{
		cfg:       cfg,
		llm:       llm,
		users:     users,
		messages:  messages,
		topicFlow: topicFlow,
		judge:     judge,
		tokens:    tokens,
		logger:    logger.Get().Named("server"),
	}
}

// Router builds the gin engine with middleware and all routes mounted
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestID())
	router.Use(requestLogger(s.logger))
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/register", s.handleRegister)
	router.POST("/login", s.handleLogin)

	protected := router.Group("/")
	protected.Use(s.requireAuth())
	{
		protected.POST("/chat", s.handleChat)
		protected.GET("/conversation", s.handleConversation)

		protected.GET("/topic-flow", s.handleTopicFlowGet)
		protected.POST("/topic-flow/update", s.handleTopicFlowUpdate)
		protected.POST("/topic-flow/reset", s.handleTopicFlowReset)

		protected.POST("/analyze", s.handleAnalyze)
		protected.POST("/update-trust-analysis", s.handleUpdateTrustAnalysis)
		protected.POST("/verify-persona", s.handleVerifyPersona)
	}

	return router
}
