package database

import (
	"fmt"
	"time"

	"melodia-go/internal/config"
	"melodia-go/internal/model"
	"melodia-go/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// 慢 SQL 阈值，点赞切换在行锁上排队时会先在这里露出来
const slowQueryThreshold = 200 * time.Millisecond

// Init 连接评论库（PostgreSQL）
func Init(cfg *config.DatabaseConfig, mode string) error {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), GormConfig(mode))
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	logger.Info("Comment database connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("dbname", cfg.DBName),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return nil
}

// GormConfig 评论库的 gorm 配置。SQL 日志走全局 zap；
// 评论不存在或已删除是正常分支，不记 record not found。
func GormConfig(mode string) *gorm.Config {
	level := gormlogger.Warn
	if mode == "debug" {
		level = gormlogger.Info
	}
	return &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(logger.Logger), gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		// users 表由外部账号服务维护，不建跨服务外键
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// MigrateCommentSchema 迁移评论、点赞流水以及只读的用户表
func MigrateCommentSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Comment{}, &model.CommentLike{}); err != nil {
		return fmt.Errorf("failed to migrate comment schema: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	logger.Info("Comment database closed")
	return sqlDB.Close()
}
