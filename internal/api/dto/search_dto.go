package dto

// SearchCommentRequest 评论搜索参数
type SearchCommentRequest struct {
	Keyword    string `form:"keyword"`
	TargetID   *int64 `form:"target_id"`
	TargetType string `form:"target_type"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// SearchCommentData 评论搜索结果
type SearchCommentData struct {
	Comments   []CommentInfo `json:"comments"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int64         `json:"total_pages"`
	Source     string        `json:"source"` // es 或 db
}
