package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"melodia-go/internal/api/handler"
	"melodia-go/internal/api/middleware"
	"melodia-go/internal/api/router"
	"melodia-go/internal/config"
	"melodia-go/internal/infra/database"
	infraES "melodia-go/internal/infra/elasticsearch"
	infraKafka "melodia-go/internal/infra/kafka"
	infraMinio "melodia-go/internal/infra/minio"
	infraRedis "melodia-go/internal/infra/redis"
	"melodia-go/internal/repository"
	"melodia-go/internal/service"
	"melodia-go/pkg/logger"

	_ "melodia-go/api/openapi"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// @title Melodia-Go API
// @version 1.0
// @description 音乐站点评论与点赞服务
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@melodia.dev

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host 127.0.0.1:8000
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description 输入格式: Bearer {token}

func main() {
	// 加载配置文件
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 初始化日志系统
	if err := logger.Init(
		cfg.Log.Level,
		cfg.Log.Format,
		cfg.Log.Output,
		cfg.Log.FilePath,
	); err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	// 初始化数据库
	if err := database.Init(&cfg.Database, cfg.App.Mode); err != nil {
		logger.Fatal("Failed to init database", zap.Error(err))
	}
	defer database.Close()

	// 自动迁移数据库表（users 由账号服务维护，这里只保证本地开发可用）
	if err := database.MigrateCommentSchema(database.DB); err != nil {
		logger.Fatal("Failed to auto migrate", zap.Error(err))
	}

	db := database.DB
	commentRepo := repository.NewCommentRepository(db)
	likeRepo := repository.NewCommentLikeRepository(db)
	userRepo := repository.NewUserRepository(db)

	commentService := service.NewCommentService(commentRepo, likeRepo, repository.NewTransactor(db), cfg.Comment)

	// 初始化Redis（可选，失败则点赞只依赖数据库事务）
	if err := infraRedis.Init(&cfg.Redis); err != nil {
		logger.Warn("Redis init failed, comment like lock disabled", zap.Error(err))
	} else {
		defer infraRedis.Close()
		commentService.WithLocker(infraRedis.LikeLocker(cfg.Comment.LockTTL(), cfg.Comment.LockWait()))
	}

	// 初始化MinIO（可选，失败则头像原样返回）
	if err := infraMinio.Init(&cfg.MinIO); err != nil {
		logger.Warn("MinIO init failed, avatars returned as stored", zap.Error(err))
	} else {
		commentService.WithAvatarResolver(infraMinio.NewAvatarResolver(cfg.Comment.AvatarBucket, cfg.Comment.AvatarExpiry()))
	}

	// 初始化Kafka生产者
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := infraKafka.NewPublisher(&cfg.Kafka)
		defer publisher.Close()
		commentService.WithPublisher(publisher)
	}

	// 初始化 Elasticsearch（可选，失败则搜索降级到 DB）
	commentsIndex := cfg.Elasticsearch.IndexName("comments")
	if err := infraES.Init(&cfg.Elasticsearch); err != nil {
		logger.Warn("Elasticsearch init failed, search will fallback to DB", zap.Error(err))
	} else {
		defer infraES.Close()
		if err := infraES.InitIndexes(commentsIndex); err != nil {
			logger.Warn("Elasticsearch index init failed", zap.Error(err))
		}
	}

	searchService := service.NewSearchService(commentRepo, commentService, commentsIndex)

	gin.SetMode(cfg.App.Mode)
	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())

	commentHandler := handler.NewCommentHandler(commentService)
	searchHandler := handler.NewSearchHandler(searchService)
	adminHandler := handler.NewAdminHandler(commentService, searchService)

	// 管理员中间件（需要查数据库获取角色）
	adminMiddleware := middleware.AdminRequired(userRepo.GetRole)

	// 注册基础路由
	r.GET("/healthz", healthCheckHandler)
	r.GET("/", rootHandler)

	// Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 注册业务路由
	writeLimiter := middleware.NewWriteLimiter(cfg.Comment.WriteRPS, cfg.Comment.WriteBurst)
	router.Setup(r, commentHandler, searchHandler, adminHandler, adminMiddleware, writeLimiter.Middleware())

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	logger.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("mode", cfg.App.Mode),
		zap.String("addr", addr),
	)
	logger.Info("Configuration loaded",
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)),
		zap.String("redis", cfg.Redis.Addr()),
		zap.String("minio", cfg.MinIO.Endpoint),
		zap.Bool("strict_parent", cfg.Comment.StrictParent),
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 收到退出信号后停止接收新请求，等待进行中的请求完成
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}
}

// healthCheckHandler 健康检查接口
func healthCheckHandler(c *gin.Context) {
	cfg := config.Get()

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "Service is healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   cfg.App.Name,
		"version":   cfg.App.Version,
		"mode":      cfg.App.Mode,
		"search":    infraES.Enabled(),
		"like_lock": infraRedis.Enabled(),
	})
}

// rootHandler 根路径处理器
func rootHandler(c *gin.Context) {
	cfg := config.Get()

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Welcome to %s API", cfg.App.Name),
		"project": cfg.App.Name,
		"version": cfg.App.Version,
		"mode":    cfg.App.Mode,
		"docs":    fmt.Sprintf("http://localhost:%d/swagger/index.html", cfg.App.Port),
	})
}
