package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"calibra/backend/internal/adapter"
	"calibra/backend/internal/auth"
	"calibra/backend/internal/server"
	"calibra/backend/internal/store"
	"calibra/backend/internal/topicflow"
	"calibra/backend/internal/trust"
	"calibra/backend/pkg/config"
	"calibra/backend/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Open database and run migrations
	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize dependencies
	llm := adapter.NewLLMAdapter(cfg.LLMBaseURL, cfg.LLMAPIKey)
	users := store.NewUserStore(db)
	messages := store.NewMessageStore(db)
	topics := store.NewTopicStore(db)

	oracleTimeout := time.Duration(cfg.OracleTimeoutSeconds) * time.Second
	oracle := topicflow.NewLLMOracle(llm, cfg.ExtractionModel, oracleTimeout)
	extractor := topicflow.NewExtractor(oracle, cfg.TopicBatchSize)
	topicFlow := topicflow.NewService(extractor, topics)

	judge := trust.NewJudge(llm, cfg.JudgeModel, oracleTimeout)
	tokens := auth.NewTokenManager(cfg.JWTSecret)

	srv := server.New(cfg, llm, users, messages, topicFlow, judge, tokens)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server started", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", zap.Error(err))
	}

	log.Info("Server exited")
}
