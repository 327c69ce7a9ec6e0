package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"melodia-go/internal/config"
	"melodia-go/internal/infra/database"
	infraES "melodia-go/internal/infra/elasticsearch"
	infraKafka "melodia-go/internal/infra/kafka"
	"melodia-go/internal/repository"
	"melodia-go/internal/service"
	"melodia-go/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.FilePath); err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	if err := database.Init(&cfg.Database, cfg.App.Mode); err != nil {
		logger.Fatal("Failed to init database", zap.Error(err))
	}
	defer database.Close()

	commentsIndex := cfg.Elasticsearch.IndexName("comments")
	if err := infraES.Init(&cfg.Elasticsearch); err != nil {
		logger.Warn("Elasticsearch init failed, index sync disabled", zap.Error(err))
	} else {
		defer infraES.Close()
		if err := infraES.InitIndexes(commentsIndex); err != nil {
			logger.Warn("Elasticsearch index init failed", zap.Error(err))
		}
	}

	db := database.DB
	commentRepo := repository.NewCommentRepository(db)
	commentService := service.NewCommentService(
		commentRepo,
		repository.NewCommentLikeRepository(db),
		repository.NewTransactor(db),
		cfg.Comment,
	)
	searchService := service.NewSearchService(commentRepo, commentService, commentsIndex)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号，优雅退出
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	topic := cfg.Kafka.Topic("comment_events")
	groupID := "melodia-go-comment-worker"

	logger.With(zap.String("topic", topic), zap.String("group", groupID)).
		Info("Comment worker started", zap.Bool("search_enabled", infraES.Enabled()))

	infraKafka.StartCommentEventConsumer(ctx, cfg.Kafka.Brokers, topic, groupID, service.NewCommentEventHandler(commentService, searchService))
}
