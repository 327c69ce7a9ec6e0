package handler

import (
	"melodia-go/internal/api/dto"
	"melodia-go/internal/api/middleware"
	"melodia-go/internal/api/response"
	"melodia-go/internal/service"

	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	searchService *service.SearchService
}

func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// SearchComments 搜索评论
// @Summary 搜索评论
// @Description 根据关键词搜索评论，Elasticsearch 不可用时降级为数据库模糊查询
// @Tags 搜索
// @Produce json
// @Security BearerAuth
// @Param keyword query string false "搜索关键词"
// @Param target_id query int false "目标ID"
// @Param target_type query string false "目标类型: song, playlist"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=dto.SearchCommentData} "搜索成功"
// @Failure 400 {object} response.ErrorResponse "请求参数无效"
// @Router /comments/search [get]
func (h *SearchHandler) SearchComments(c *gin.Context) {
	var req dto.SearchCommentRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}
	req.Page, req.PageSize = parsePagination(c)

	userID, _ := middleware.GetCurrentUserID(c)

	data, err := h.searchService.SearchComments(c.Request.Context(), userID, &req)
	if err != nil {
		handleCommentError(c, err)
		return
	}

	response.OK(c, "搜索成功", data)
}
