package dto

import "time"

// CommentCreateRequest 发表评论请求
type CommentCreateRequest struct {
	TargetID   int64  `json:"target_id" binding:"required"`
	TargetType string `json:"target_type" binding:"required"`
	Content    string `json:"content" binding:"required"`
	ParentID   *int64 `json:"parent_id"`
}

// CommentListQuery 评论列表查询参数
type CommentListQuery struct {
	TargetID   int64  `form:"target_id" binding:"required"`
	TargetType string `form:"target_type" binding:"required"`
}

// CommentInfo 评论信息，username/user_avatar/is_liked 为按当前用户计算的投影
type CommentInfo struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	TargetID   int64     `json:"target_id"`
	TargetType string    `json:"target_type"`
	Content    string    `json:"content"`
	ParentID   *int64    `json:"parent_id"`
	LikeCount  int64     `json:"like_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Username   *string   `json:"username"`
	UserAvatar *string   `json:"user_avatar"`
	IsLiked    bool      `json:"is_liked"`
}

// CommentListData 评论列表数据（平铺，按创建顺序）
type CommentListData struct {
	Comments []CommentInfo `json:"comments"`
	Total    int           `json:"total"`
}

// CommentLikeData 点赞切换结果
type CommentLikeData struct {
	CommentID int64 `json:"comment_id"`
	Liked     bool  `json:"liked"`
}

// CommentReconcileData 点赞数对账结果
type CommentReconcileData struct {
	CommentID int64 `json:"comment_id"`
	LikeCount int64 `json:"like_count"`
}
