package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"melodia-go/internal/config"
	"melodia-go/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

var client *minio.Client

// Init 初始化 MinIO 客户端并确保所有 Bucket 存在
func Init(cfg *config.MinIOConfig) error {
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, bucket := range cfg.Buckets {
		exists, err := c.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := c.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
			logger.Info("MinIO bucket created", zap.String("bucket", bucket))
		}
	}

	client = c
	logger.Info("MinIO connected",
		zap.String("endpoint", cfg.Endpoint),
		zap.Int("buckets", len(cfg.Buckets)),
	)

	return nil
}

// GetPresignedURL 生成预签名下载 URL
func GetPresignedURL(ctx context.Context, bucket, objectName string, expiry time.Duration) (string, error) {
	if client == nil {
		return "", fmt.Errorf("minio client not initialized")
	}
	presignedURL, err := client.PresignedGetObject(ctx, bucket, objectName, expiry, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned url: %w", err)
	}
	return presignedURL.String(), nil
}

// IsObjectKey 头像字段是否为对象存储 key（而非完整 URL）
func IsObjectKey(avatar string) bool {
	if avatar == "" {
		return false
	}
	lower := strings.ToLower(avatar)
	return !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://")
}

// AvatarResolver 将头像对象 key 转换为可访问的 URL
type AvatarResolver struct {
	bucket string
	expiry time.Duration
}

func NewAvatarResolver(bucket string, expiry time.Duration) *AvatarResolver {
	return &AvatarResolver{bucket: bucket, expiry: expiry}
}

// ResolveAvatar 完整 URL 原样返回；对象 key 生成预签名 URL，失败时返回原值
func (r *AvatarResolver) ResolveAvatar(ctx context.Context, avatar string) string {
	if !IsObjectKey(avatar) {
		return avatar
	}
	signed, err := GetPresignedURL(ctx, r.bucket, strings.TrimPrefix(avatar, "/"), r.expiry)
	if err != nil {
		logger.Warn("Resolve avatar failed", zap.String("avatar", avatar), zap.Error(err))
		return avatar
	}
	return signed
}
