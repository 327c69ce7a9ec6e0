package repository

import (
	"context"

	"melodia-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentLikeRepository 评论点赞流水，唯一键 (comment_id, user_id)
type CommentLikeRepository struct {
	db *gorm.DB
}

func NewCommentLikeRepository(db *gorm.DB) *CommentLikeRepository {
	return &CommentLikeRepository{db: db}
}

func (r *CommentLikeRepository) Exists(ctx context.Context, commentID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CommentLike{}).
		Where("comment_id = ? AND user_id = ?", commentID, userID).Count(&count).Error
	return count > 0, err
}

// Add 插入点赞记录，已存在时不做任何事，返回是否实际插入
func (r *CommentLikeRepository) Add(ctx context.Context, commentID, userID int64) (bool, error) {
	like := &model.CommentLike{CommentID: commentID, UserID: userID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "comment_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(like)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Remove 删除点赞记录，不存在时为空操作，返回是否实际删除
func (r *CommentLikeRepository) Remove(ctx context.Context, commentID, userID int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Delete(&model.CommentLike{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountByComment 统计评论的点赞记录数
func (r *CommentLikeRepository) CountByComment(ctx context.Context, commentID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CommentLike{}).
		Where("comment_id = ?", commentID).Count(&count).Error
	return count, err
}

// BatchCheckLiked 批量查询用户对评论的点赞状态
func (r *CommentLikeRepository) BatchCheckLiked(ctx context.Context, userID int64, commentIDs []int64) (map[int64]bool, error) {
	if len(commentIDs) == 0 {
		return map[int64]bool{}, nil
	}

	var likedIDs []int64
	err := r.db.WithContext(ctx).Model(&model.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &likedIDs).Error
	if err != nil {
		return nil, err
	}

	likedSet := make(map[int64]bool, len(likedIDs))
	for _, id := range likedIDs {
		likedSet[id] = true
	}

	result := make(map[int64]bool, len(commentIDs))
	for _, id := range commentIDs {
		result[id] = likedSet[id]
	}
	return result, nil
}
