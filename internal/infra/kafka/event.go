package kafka

import (
	"encoding/json"
	"fmt"
	"time"
)

// 评论事件类型
const (
	EventCommentCreated = "comment.created"
	EventCommentDeleted = "comment.deleted"
	EventCommentLiked   = "comment.liked"
	EventCommentUnliked = "comment.unliked"
)

// CommentEvent 评论事件消息体
type CommentEvent struct {
	Type       string    `json:"type"`
	CommentID  int64     `json:"comment_id"`
	UserID     int64     `json:"user_id"`
	TargetID   int64     `json:"target_id,omitempty"`
	TargetType string    `json:"target_type,omitempty"`
	ParentID   *int64    `json:"parent_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Key 同一评论的事件落到同一分区，保证顺序
func (e *CommentEvent) Key() string {
	return fmt.Sprintf("comment-%d", e.CommentID)
}

// DecodeCommentEvent 解析并校验事件
func DecodeCommentEvent(value []byte) (*CommentEvent, error) {
	var evt CommentEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		return nil, fmt.Errorf("unmarshal comment event: %w", err)
	}
	switch evt.Type {
	case EventCommentCreated, EventCommentDeleted, EventCommentLiked, EventCommentUnliked:
	default:
		return nil, fmt.Errorf("unknown comment event type %q", evt.Type)
	}
	if evt.CommentID <= 0 {
		return nil, fmt.Errorf("comment event without comment_id")
	}
	return &evt, nil
}
