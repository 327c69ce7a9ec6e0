package model

import "time"

// 评论状态
const (
	CommentStatusActive  = "active"
	CommentStatusDeleted = "deleted"
)

// TargetType 评论目标类型
type TargetType string

const (
	TargetSong     TargetType = "song"
	TargetPlaylist TargetType = "playlist"
)

// Valid 是否为支持的目标类型
func (t TargetType) Valid() bool {
	switch t {
	case TargetSong, TargetPlaylist:
		return true
	}
	return false
}

// Comment 评论模型
type Comment struct {
	ID         int64      `gorm:"primaryKey;autoIncrement;comment:评论ID" json:"id"`
	UserID     int64      `gorm:"not null;index:idx_comments_user_id;comment:评论用户ID" json:"user_id"`
	TargetID   int64      `gorm:"not null;index:idx_comments_target,priority:1;comment:评论目标ID" json:"target_id"`
	TargetType TargetType `gorm:"size:20;not null;index:idx_comments_target,priority:2;comment:评论目标类型" json:"target_type"`
	Content    string     `gorm:"type:text;not null;comment:评论内容" json:"content"`
	ParentID   *int64     `gorm:"index:idx_comments_parent_id;comment:父评论ID" json:"parent_id"`
	LikeCount  int64      `gorm:"not null;default:0;comment:评论点赞数" json:"like_count"`
	Status     string     `gorm:"size:20;not null;default:'active';index:idx_comments_target,priority:3;comment:评论状态" json:"status"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;comment:评论时间" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime;comment:更新时间" json:"updated_at"`

	// 关联关系
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Comment) TableName() string {
	return "comments"
}
