package elasticsearch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"melodia-go/pkg/logger"

	"go.uber.org/zap"
)

// CommentsIndexMapping comments 索引 mapping（含 IK 中文分词）
const CommentsIndexMapping = `{
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	},
	"mappings": {
		"properties": {
			"id": {"type": "long"},
			"user_id": {"type": "long"},
			"username": {"type": "keyword"},
			"target_id": {"type": "long"},
			"target_type": {"type": "keyword"},
			"parent_id": {"type": "long"},
			"content": {
				"type": "text",
				"analyzer": "ik_max_word",
				"search_analyzer": "ik_smart"
			},
			"like_count": {"type": "long"},
			"created_at": {"type": "date", "format": "strict_date_optional_time||epoch_millis"}
		}
	}
}`

// EnsureIndex 确保索引存在，不存在则创建
func EnsureIndex(ctx context.Context, indexName, mapping string) error {
	exists, err := IndicesExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	if exists {
		logger.Info("Elasticsearch index already exists", zap.String("index", indexName))
		return nil
	}

	resp, err := IndicesCreate(ctx, indexName, bytes.NewReader([]byte(mapping)))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("create index failed: %s", resp.String())
	}

	logger.Info("Elasticsearch index created", zap.String("index", indexName))
	return nil
}

// InitIndexes 初始化所有索引（启动时调用）
func InitIndexes(commentsIndex string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return EnsureIndex(ctx, commentsIndex, CommentsIndexMapping)
}
