package handler

import (
	"melodia-go/internal/api/dto"
	"melodia-go/internal/api/response"
	"melodia-go/internal/service"
	"melodia-go/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	commentService *service.CommentService
	searchService  *service.SearchService
}

func NewAdminHandler(commentService *service.CommentService, searchService *service.SearchService) *AdminHandler {
	return &AdminHandler{commentService: commentService, searchService: searchService}
}

// ReconcileLikeCount 按点赞流水修正评论点赞数
// @Summary 修正评论点赞数
// @Description 以 comment_likes 记录数为准重写 like_count，并刷新搜索索引
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "评论ID"
// @Success 200 {object} response.Response{data=dto.CommentReconcileData} "修正成功"
// @Failure 403 {object} response.ErrorResponse "需要管理员权限"
// @Failure 404 {object} response.ErrorResponse "评论不存在"
// @Router /admin/comments/{id}/reconcile [post]
func (h *AdminHandler) ReconcileLikeCount(c *gin.Context) {
	commentID, err := parseIDParam(c)
	if err != nil {
		response.BadRequest(c, "无效的评论ID")
		return
	}

	count, err := h.commentService.ReconcileLikeCount(c.Request.Context(), commentID)
	if err != nil {
		handleCommentError(c, err)
		return
	}

	if h.searchService != nil {
		if err := h.searchService.SyncCommentToES(c.Request.Context(), commentID); err != nil {
			logger.Warn("Refresh comment index after reconcile failed",
				zap.Int64("comment_id", commentID), zap.Error(err))
		}
	}

	response.OK(c, "修正成功", dto.CommentReconcileData{CommentID: commentID, LikeCount: count})
}
