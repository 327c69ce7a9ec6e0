package service

import (
	"context"

	infraES "melodia-go/internal/infra/elasticsearch"
	infraKafka "melodia-go/internal/infra/kafka"
	"melodia-go/pkg/logger"

	"go.uber.org/zap"
)

// NewCommentEventHandler 评论事件落地：维护搜索索引，点赞事件顺带做一次计数对账
func NewCommentEventHandler(comments *CommentService, search *SearchService) infraKafka.EventHandler {
	return func(ctx context.Context, evt *infraKafka.CommentEvent) error {
		switch evt.Type {
		case infraKafka.EventCommentCreated:
			if !infraES.Enabled() {
				return nil
			}
			return search.SyncCommentToES(ctx, evt.CommentID)

		case infraKafka.EventCommentDeleted:
			if !infraES.Enabled() {
				return nil
			}
			return search.RemoveCommentFromES(ctx, evt.CommentID)

		case infraKafka.EventCommentLiked, infraKafka.EventCommentUnliked:
			count, err := comments.ReconcileLikeCount(ctx, evt.CommentID)
			if err != nil {
				return err
			}
			logger.Debug("Comment like count confirmed",
				zap.Int64("comment_id", evt.CommentID),
				zap.Int64("like_count", count),
			)
			if !infraES.Enabled() {
				return nil
			}
			return search.SyncCommentToES(ctx, evt.CommentID)

		default:
			logger.Warn("Unknown comment event type", zap.String("type", evt.Type))
			return nil
		}
	}
}
