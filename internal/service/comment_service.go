package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"melodia-go/internal/api/dto"
	"melodia-go/internal/config"
	infraKafka "melodia-go/internal/infra/kafka"
	infraRedis "melodia-go/internal/infra/redis"
	"melodia-go/internal/model"
	"melodia-go/internal/repository"
	"melodia-go/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUnauthenticated      = errors.New("请先登录")
	ErrValidationFailed     = errors.New("参数校验失败")
	ErrInvalidContent       = fmt.Errorf("%w: 评论内容不能为空", ErrValidationFailed)
	ErrContentTooLong       = fmt.Errorf("%w: 评论内容过长", ErrValidationFailed)
	ErrInvalidTarget        = fmt.Errorf("%w: 评论目标无效", ErrValidationFailed)
	ErrCommentNotFound      = errors.New("评论不存在")
	ErrCommentDeleteDenied  = errors.New("评论不存在或无权删除")
	ErrParentNotFound       = errors.New("父评论不存在")
	ErrParentTargetMismatch = errors.New("父评论不属于该目标")
	ErrOperationFailed      = errors.New("操作失败，请稍后重试")
)

// PairLocker 按 key 加互斥锁，返回释放函数
type PairLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// EventPublisher 评论事件发布
type EventPublisher interface {
	PublishCommentEvent(ctx context.Context, evt *infraKafka.CommentEvent) error
}

// AvatarResolver 将头像存储值转换为可访问地址
type AvatarResolver interface {
	ResolveAvatar(ctx context.Context, avatar string) string
}

type CommentService struct {
	commentRepo *repository.CommentRepository
	likeRepo    *repository.CommentLikeRepository
	tx          *repository.Transactor
	cfg         config.CommentConfig

	locker    PairLocker
	publisher EventPublisher
	avatars   AvatarResolver
}

func NewCommentService(
	commentRepo *repository.CommentRepository,
	likeRepo *repository.CommentLikeRepository,
	tx *repository.Transactor,
	cfg config.CommentConfig,
) *CommentService {
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = config.DefaultCommentConfig().MaxContentLength
	}
	return &CommentService{
		commentRepo: commentRepo,
		likeRepo:    likeRepo,
		tx:          tx,
		cfg:         cfg,
	}
}

// WithLocker 设置 (评论, 用户) 维度的点赞互斥锁
func (s *CommentService) WithLocker(l PairLocker) *CommentService {
	s.locker = l
	return s
}

// WithPublisher 设置评论事件发布器
func (s *CommentService) WithPublisher(p EventPublisher) *CommentService {
	s.publisher = p
	return s
}

// WithAvatarResolver 设置头像地址解析器
func (s *CommentService) WithAvatarResolver(r AvatarResolver) *CommentService {
	s.avatars = r
	return s
}

// ListByTarget 获取目标下的评论（平铺、按创建顺序、不含已删除）
func (s *CommentService) ListByTarget(ctx context.Context, targetID int64, targetType string, viewerID int64) (*dto.CommentListData, error) {
	if viewerID <= 0 {
		return nil, ErrUnauthenticated
	}
	tt, err := validateTarget(targetID, targetType)
	if err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.ListByTarget(ctx, targetID, tt)
	if err != nil {
		return nil, s.failed("list comments", err, zap.Int64("target_id", targetID), zap.String("target_type", targetType))
	}

	items, err := s.buildCommentInfos(ctx, comments, viewerID)
	if err != nil {
		return nil, err
	}

	return &dto.CommentListData{Comments: items, Total: len(items)}, nil
}

// Create 发表评论或回复
func (s *CommentService) Create(ctx context.Context, authorID int64, req *dto.CommentCreateRequest) (*dto.CommentInfo, error) {
	if authorID <= 0 {
		return nil, ErrUnauthenticated
	}

	content, err := s.validateContent(req.Content)
	if err != nil {
		return nil, err
	}
	tt, err := validateTarget(req.TargetID, req.TargetType)
	if err != nil {
		return nil, err
	}

	if req.ParentID != nil && s.cfg.StrictParent {
		if err := s.checkParent(ctx, *req.ParentID, req.TargetID, tt); err != nil {
			return nil, err
		}
	}

	comment := &model.Comment{
		UserID:     authorID,
		TargetID:   req.TargetID,
		TargetType: tt,
		Content:    content,
		ParentID:   req.ParentID,
		LikeCount:  0,
		Status:     model.CommentStatusActive,
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, s.failed("create comment", err, zap.Int64("user_id", authorID))
	}

	// 重新查询以带上作者信息，保证与列表接口返回一致
	stored, err := s.commentRepo.GetActiveByIDWithUser(ctx, comment.ID)
	if err != nil {
		return nil, s.failed("reload comment", err, zap.Int64("comment_id", comment.ID))
	}

	s.publish(ctx, &infraKafka.CommentEvent{
		Type:       infraKafka.EventCommentCreated,
		CommentID:  stored.ID,
		UserID:     authorID,
		TargetID:   stored.TargetID,
		TargetType: string(stored.TargetType),
		ParentID:   stored.ParentID,
	})

	return s.toCommentInfo(ctx, stored, false), nil
}

// Delete 软删除评论，仅作者本人可删除。
// 评论不存在与无权删除返回同一个错误，调用方无法区分。
func (s *CommentService) Delete(ctx context.Context, commentID, userID int64) error {
	if userID <= 0 {
		return ErrUnauthenticated
	}

	deleted, err := s.commentRepo.SoftDelete(ctx, commentID, userID)
	if err != nil {
		return s.failed("delete comment", err, zap.Int64("comment_id", commentID), zap.Int64("user_id", userID))
	}
	if !deleted {
		return ErrCommentDeleteDenied
	}

	s.publish(ctx, &infraKafka.CommentEvent{
		Type:      infraKafka.EventCommentDeleted,
		CommentID: commentID,
		UserID:    userID,
	})
	return nil
}

// ToggleLike 切换点赞状态，返回切换后的状态（true 为已点赞）。
// 事务先锁评论行，点赞流水与计数在同一事务内修改，计数增减由流水实际影响的行数决定。
func (s *CommentService) ToggleLike(ctx context.Context, commentID, userID int64) (bool, error) {
	if userID <= 0 {
		return false, ErrUnauthenticated
	}

	unlock, err := s.lockPair(ctx, commentID, userID)
	if err != nil {
		return false, err
	}
	defer unlock()

	var liked bool
	err = s.tx.Do(ctx, func(tx *repository.TxRepos) error {
		if _, err := tx.Comments.LockActiveByID(ctx, commentID); err != nil {
			return err
		}

		exists, err := tx.Likes.Exists(ctx, commentID, userID)
		if err != nil {
			return err
		}

		if exists {
			removed, err := tx.Likes.Remove(ctx, commentID, userID)
			if err != nil {
				return err
			}
			if removed {
				decremented, err := tx.Comments.DecrementLikeCount(ctx, commentID)
				if err != nil {
					return err
				}
				if !decremented {
					logger.Warn("Comment like_count already zero while removing a like",
						zap.Int64("comment_id", commentID),
						zap.Int64("user_id", userID),
					)
				}
			}
			liked = false
			return nil
		}

		added, err := tx.Likes.Add(ctx, commentID, userID)
		if err != nil {
			return err
		}
		if added {
			if err := tx.Comments.IncrementLikeCount(ctx, commentID); err != nil {
				return err
			}
		}
		liked = true
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrCommentNotFound
		}
		return false, s.failed("toggle comment like", err, zap.Int64("comment_id", commentID), zap.Int64("user_id", userID))
	}

	evtType := infraKafka.EventCommentUnliked
	if liked {
		evtType = infraKafka.EventCommentLiked
	}
	s.publish(ctx, &infraKafka.CommentEvent{
		Type:      evtType,
		CommentID: commentID,
		UserID:    userID,
	})

	return liked, nil
}

// GetByID 获取单条评论详情
func (s *CommentService) GetByID(ctx context.Context, commentID, viewerID int64) (*dto.CommentInfo, error) {
	if viewerID <= 0 {
		return nil, ErrUnauthenticated
	}

	comment, err := s.commentRepo.GetActiveByIDWithUser(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, s.failed("get comment", err, zap.Int64("comment_id", commentID))
	}

	liked, err := s.likeRepo.Exists(ctx, commentID, viewerID)
	if err != nil {
		return nil, s.failed("check comment like", err, zap.Int64("comment_id", commentID))
	}

	return s.toCommentInfo(ctx, comment, liked), nil
}

// ReconcileLikeCount 以点赞流水为准重算评论点赞数，返回修正后的值。
// 先锁评论行再重算，并发的点赞切换要么在重算前提交，要么等待重算结束。
func (s *CommentService) ReconcileLikeCount(ctx context.Context, commentID int64) (int64, error) {
	var count int64
	err := s.tx.Do(ctx, func(tx *repository.TxRepos) error {
		before, err := tx.Comments.LockByID(ctx, commentID)
		if err != nil {
			return err
		}

		if err := tx.Comments.RecountLikeCount(ctx, commentID); err != nil {
			return err
		}
		after, err := tx.Comments.GetByID(ctx, commentID)
		if err != nil {
			return err
		}
		count = after.LikeCount

		if before.LikeCount != count {
			logger.Warn("Comment like_count drift corrected",
				zap.Int64("comment_id", commentID),
				zap.Int64("stored", before.LikeCount),
				zap.Int64("ledger", count),
			)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCommentNotFound
		}
		return 0, s.failed("reconcile like count", err, zap.Int64("comment_id", commentID))
	}
	return count, nil
}

func (s *CommentService) validateContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", ErrInvalidContent
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxContentLength {
		return "", fmt.Errorf("%w（最多 %d 字）", ErrContentTooLong, s.cfg.MaxContentLength)
	}
	return content, nil
}

func validateTarget(targetID int64, targetType string) (model.TargetType, error) {
	tt := model.TargetType(strings.TrimSpace(targetType))
	if targetID <= 0 || !tt.Valid() {
		return "", ErrInvalidTarget
	}
	return tt, nil
}

func (s *CommentService) checkParent(ctx context.Context, parentID, targetID int64, targetType model.TargetType) error {
	parent, err := s.commentRepo.GetActiveByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParentNotFound
		}
		return s.failed("get parent comment", err, zap.Int64("parent_id", parentID))
	}
	if parent.TargetID != targetID || parent.TargetType != targetType {
		return ErrParentTargetMismatch
	}
	return nil
}

// lockPair 获取 (评论, 用户) 锁；Redis 不可用时降级为仅依赖数据库事务
func (s *CommentService) lockPair(ctx context.Context, commentID, userID int64) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	unlock, err := s.locker.Lock(ctx, infraRedis.CommentLikeLockKey(commentID, userID))
	if err == nil {
		return unlock, nil
	}
	if errors.Is(err, infraRedis.ErrLockTimeout) || ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}

	logger.Warn("Comment like lock unavailable, relying on db transaction",
		zap.Int64("comment_id", commentID),
		zap.Int64("user_id", userID),
		zap.Error(err),
	)
	return noop, nil
}

func (s *CommentService) publish(ctx context.Context, evt *infraKafka.CommentEvent) {
	if s.publisher == nil {
		return
	}
	evt.OccurredAt = time.Now()

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	if err := s.publisher.PublishCommentEvent(pubCtx, evt); err != nil {
		logger.Warn("Publish comment event failed",
			zap.String("type", evt.Type),
			zap.Int64("comment_id", evt.CommentID),
			zap.Error(err),
		)
	}
}

// failed 记录存储层错误并统一包装为 ErrOperationFailed
func (s *CommentService) failed(op string, err error, fields ...zap.Field) error {
	logger.Error("Comment operation failed", append(fields, zap.String("op", op), zap.Error(err))...)
	return fmt.Errorf("%w: %s: %v", ErrOperationFailed, op, err)
}

func (s *CommentService) buildCommentInfos(ctx context.Context, comments []model.Comment, viewerID int64) ([]dto.CommentInfo, error) {
	ids := make([]int64, 0, len(comments))
	for i := range comments {
		ids = append(ids, comments[i].ID)
	}

	liked, err := s.likeRepo.BatchCheckLiked(ctx, viewerID, ids)
	if err != nil {
		return nil, s.failed("batch check likes", err, zap.Int64("viewer_id", viewerID))
	}

	items := make([]dto.CommentInfo, 0, len(comments))
	for i := range comments {
		items = append(items, *s.toCommentInfo(ctx, &comments[i], liked[comments[i].ID]))
	}
	return items, nil
}

func (s *CommentService) toCommentInfo(ctx context.Context, c *model.Comment, liked bool) *dto.CommentInfo {
	info := &dto.CommentInfo{
		ID:         c.ID,
		UserID:     c.UserID,
		TargetID:   c.TargetID,
		TargetType: string(c.TargetType),
		Content:    c.Content,
		ParentID:   c.ParentID,
		LikeCount:  c.LikeCount,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		IsLiked:    liked,
	}

	if c.User.ID != 0 {
		username := c.User.UserName
		info.Username = &username
		if c.User.Avatar != nil {
			avatar := *c.User.Avatar
			if s.avatars != nil {
				avatar = s.avatars.ResolveAvatar(ctx, avatar)
			}
			info.UserAvatar = &avatar
		}
	}

	return info
}
