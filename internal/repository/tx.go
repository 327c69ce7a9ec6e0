package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxRepos 绑定同一事务的评论与点赞 Repository
type TxRepos struct {
	Comments *CommentRepository
	Likes    *CommentLikeRepository
}

// Transactor 在单个数据库事务内执行评论相关的读写
type Transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// Do 开启事务执行 fn，fn 返回错误时整体回滚
func (t *Transactor) Do(ctx context.Context, fn func(tx *TxRepos) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TxRepos{
			Comments: NewCommentRepository(tx),
			Likes:    NewCommentLikeRepository(tx),
		})
	})
}
