package repository

import (
	"context"
	"strings"
	"time"

	"melodia-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// GetByID 按主键查询，包含已删除的评论
func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// LockByID 在事务内按主键查询并加行锁（SELECT ... FOR UPDATE），包含已删除的评论
func (r *CommentRepository) LockByID(ctx context.Context, id int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// LockActiveByID 在事务内查询未删除的评论并加行锁
func (r *CommentRepository) LockActiveByID(ctx context.Context, id int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND status = ?", id, model.CommentStatusActive).
		First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetActiveByID 查询未删除的评论
func (r *CommentRepository) GetActiveByID(ctx context.Context, id int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, model.CommentStatusActive).
		First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetActiveByIDWithUser 查询未删除的评论（含作者信息）
func (r *CommentRepository) GetActiveByIDWithUser(ctx context.Context, id int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).Preload("User").
		Where("id = ? AND status = ?", id, model.CommentStatusActive).
		First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetByIDsWithUser 批量查询未删除的评论（含作者信息）
func (r *CommentRepository) GetByIDsWithUser(ctx context.Context, ids []int64) ([]model.Comment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var comments []model.Comment
	err := r.db.WithContext(ctx).Preload("User").
		Where("id IN ? AND status = ?", ids, model.CommentStatusActive).
		Find(&comments).Error
	return comments, err
}

// SoftDelete 软删除评论（仅作者本人），返回是否命中
func (r *CommentRepository) SoftDelete(ctx context.Context, commentID, userID int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ? AND user_id = ? AND status = ?", commentID, userID, model.CommentStatusActive).
		Updates(map[string]interface{}{
			"status":     model.CommentStatusDeleted,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementLikeCount 点赞数 +1
func (r *CommentRepository) IncrementLikeCount(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"like_count": gorm.Expr("like_count + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecrementLikeCount 点赞数 -1（不低于 0），返回是否实际扣减
func (r *CommentRepository) DecrementLikeCount(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ? AND like_count > 0", id).
		Updates(map[string]interface{}{
			"like_count": gorm.Expr("like_count - 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RecountLikeCount 以点赞流水行数覆盖点赞数，单条语句完成计数与写入（对账用）
func (r *CommentRepository) RecountLikeCount(ctx context.Context, id int64) error {
	ledger := r.db.Session(&gorm.Session{NewDB: true}).Model(&model.CommentLike{}).
		Select("COUNT(*)").Where("comment_id = ?", id)
	result := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"like_count": ledger,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByTarget 获取目标下全部未删除评论，按创建顺序排列
func (r *CommentRepository) ListByTarget(ctx context.Context, targetID int64, targetType model.TargetType) ([]model.Comment, error) {
	var comments []model.Comment
	err := r.db.WithContext(ctx).Preload("User").
		Where("target_id = ? AND target_type = ? AND status = ?", targetID, targetType, model.CommentStatusActive).
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// Search 按关键词检索未删除评论（ES 不可用时的降级路径）
func (r *CommentRepository) Search(ctx context.Context, keyword string, targetID *int64, targetType *model.TargetType, skip, limit int) ([]model.Comment, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Comment{}).Where("status = ?", model.CommentStatusActive)

	if kw := strings.TrimSpace(keyword); kw != "" {
		query = query.Where("LOWER(content) LIKE ?", "%"+strings.ToLower(kw)+"%")
	}
	if targetID != nil {
		query = query.Where("target_id = ?", *targetID)
	}
	if targetType != nil {
		query = query.Where("target_type = ?", *targetType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []model.Comment
	err := query.Preload("User").Order("id DESC").
		Offset(skip).Limit(limit).Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}

	return comments, total, nil
}
