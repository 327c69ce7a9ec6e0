package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"melodia-go/internal/model"
	"melodia-go/pkg/logger"

	"go.uber.org/zap"
)

// ESCommentDoc ES 评论文档结构
type ESCommentDoc struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	TargetID   int64  `json:"target_id"`
	TargetType string `json:"target_type"`
	ParentID   *int64 `json:"parent_id,omitempty"`
	Content    string `json:"content"`
	LikeCount  int64  `json:"like_count"`
	CreatedAt  string `json:"created_at"`
}

// CommentToESDoc 将评论转换为 ES 文档
func CommentToESDoc(c *model.Comment) *ESCommentDoc {
	return &ESCommentDoc{
		ID:         c.ID,
		UserID:     c.UserID,
		Username:   c.User.UserName,
		TargetID:   c.TargetID,
		TargetType: string(c.TargetType),
		ParentID:   c.ParentID,
		Content:    c.Content,
		LikeCount:  c.LikeCount,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
}

// SyncComment 同步单条评论到 ES
func SyncComment(ctx context.Context, indexName string, c *model.Comment) error {
	body, err := json.Marshal(CommentToESDoc(c))
	if err != nil {
		return err
	}

	resp, err := Index(ctx, indexName, fmt.Sprintf("%d", c.ID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return fmt.Errorf("index document failed: %s", resp.String())
	}

	logger.Debug("Comment synced to ES", zap.Int64("comment_id", c.ID))
	return nil
}

// DeleteComment 从 ES 删除评论
func DeleteComment(ctx context.Context, indexName string, commentID int64) error {
	resp, err := Delete(ctx, indexName, fmt.Sprintf("%d", commentID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() && resp.StatusCode != 404 {
		return fmt.Errorf("delete document failed: %s", resp.String())
	}
	return nil
}
