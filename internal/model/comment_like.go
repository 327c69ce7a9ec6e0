package model

import "time"

// CommentLike 评论点赞记录，(comment_id, user_id) 唯一
type CommentLike struct {
	CommentID int64     `gorm:"primaryKey;autoIncrement:false;comment:评论ID" json:"comment_id"`
	UserID    int64     `gorm:"primaryKey;autoIncrement:false;index:idx_comment_likes_user_id;comment:点赞用户ID" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime;comment:点赞时间" json:"created_at"`
}

func (CommentLike) TableName() string {
	return "comment_likes"
}
