package handler

import (
	"errors"

	"melodia-go/internal/api/dto"
	"melodia-go/internal/api/middleware"
	"melodia-go/internal/api/response"
	"melodia-go/internal/service"
	"melodia-go/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CommentHandler struct {
	commentService *service.CommentService
}

func NewCommentHandler(commentService *service.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// List 获取目标下的评论
// @Summary 获取评论列表
// @Description 按目标（歌曲/歌单）获取评论，平铺返回，按发表顺序排列，不含已删除评论
// @Tags 评论
// @Produce json
// @Security BearerAuth
// @Param target_id query int true "目标ID"
// @Param target_type query string true "目标类型: song, playlist"
// @Success 200 {object} response.Response{data=dto.CommentListData} "获取成功"
// @Failure 400 {object} response.ErrorResponse "请求参数无效"
// @Failure 401 {object} response.ErrorResponse "未登录"
// @Router /comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	var query dto.CommentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	userID, _ := middleware.GetCurrentUserID(c)

	data, err := h.commentService.ListByTarget(c.Request.Context(), query.TargetID, query.TargetType, userID)
	if err != nil {
		handleCommentError(c, err)
		return
	}

	response.OK(c, "获取评论列表成功", data)
}

// Create 发表评论或回复
// @Summary 发表评论
// @Description 对歌曲或歌单发表评论，parent_id 不为空时为回复
// @Tags 评论
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CommentCreateRequest true "评论内容"
// @Success 200 {object} response.Response{data=dto.CommentInfo} "发表成功"
// @Failure 400 {object} response.ErrorResponse "请求参数无效"
// @Failure 401 {object} response.ErrorResponse "未登录"
// @Failure 404 {object} response.ErrorResponse "父评论不存在"
// @Router /comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	var req dto.CommentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	userID, _ := middleware.GetCurrentUserID(c)

	info, err := h.commentService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handleCommentError(c, err)
		return
	}

	response.OK(c, "发表评论成功", info)
}

// GetByID 获取评论详情
// @Summary 获取评论详情
// @Tags 评论
// @Produce json
// @Security BearerAuth
// @Param id path int true "评论ID"
// @Success 200 {object} response.Response{data=dto.CommentInfo} "获取成功"
// @Failure 404 {object} response.ErrorResponse "评论不存在"
// @Router /comments/{id} [get]
func (h *CommentHandler) GetByID(c *gin.Context) {
	commentID, err := parseIDParam(c)
	if err != nil {
		response.BadRequest(c, "无效的评论ID")
		return
	}

	userID, _ := middleware.GetCurrentUserID(c)

	info, err := h.commentService.GetByID(c.Request.Context(), commentID, userID)
	if err != nil {
		handleCommentError(c, err)
		return
	}

	response.OK(c, "获取评论成功", info)
}

// Delete 删除评论
// @Summary 删除评论
// @Description 软删除，仅作者本人可删除
// @Tags 评论
// @Produce json
// @Security BearerAuth
// @Param id path int true "评论ID"
// @Success 200 {object} response.Response "删除成功"
// @Failure 403 {object} response.ErrorResponse "评论不存在或无权删除"
// @Router /comments/{id} [delete]
func (h *CommentHandler) Delete(c *gin.Context) {
	commentID, err := parseIDParam(c)
	if err != nil {
		response.BadRequest(c, "无效的评论ID")
		return
	}

	userID, _ := middleware.GetCurrentUserID(c)

	if err := h.commentService.Delete(c.Request.Context(), commentID, userID); err != nil {
		handleCommentError(c, err)
		return
	}

	response.OK(c, "删除评论成功", nil)
}

// ToggleLike 点赞/取消点赞
// @Summary 切换评论点赞
// @Description 未点赞则点赞，已点赞则取消，返回切换后的状态
// @Tags 评论
// @Produce json
// @Security BearerAuth
// @Param id path int true "评论ID"
// @Success 200 {object} response.Response{data=dto.CommentLikeData} "操作成功"
// @Failure 404 {object} response.ErrorResponse "评论不存在"
// @Router /comments/{id}/like [post]
func (h *CommentHandler) ToggleLike(c *gin.Context) {
	commentID, err := parseIDParam(c)
	if err != nil {
		response.BadRequest(c, "无效的评论ID")
		return
	}

	userID, _ := middleware.GetCurrentUserID(c)

	liked, err := h.commentService.ToggleLike(c.Request.Context(), commentID, userID)
	if err != nil {
		handleCommentError(c, err)
		return
	}

	msg := "取消点赞成功"
	if liked {
		msg = "点赞成功"
	}
	response.OK(c, msg, dto.CommentLikeData{CommentID: commentID, Liked: liked})
}

func handleCommentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrValidationFailed):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrCommentNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrCommentDeleteDenied):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrParentNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrParentTargetMismatch):
		response.BadRequest(c, err.Error())
	default:
		logger.Error("Comment request failed", zap.Error(err), zap.String("path", c.FullPath()))
		response.InternalError(c, service.ErrOperationFailed.Error())
	}
}
