package router

import (
	"melodia-go/internal/api/handler"
	"melodia-go/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

// Setup 注册所有业务路由
func Setup(
	r *gin.Engine,
	commentHandler *handler.CommentHandler,
	searchHandler *handler.SearchHandler,
	adminHandler *handler.AdminHandler,
	adminMiddleware gin.HandlerFunc,
	writeLimit gin.HandlerFunc,
) {
	v1 := r.Group("/api/v1")

	// --- 评论模块 ---
	comments := v1.Group("/comments", middleware.AuthRequired())
	{
		comments.GET("", commentHandler.List)
		comments.POST("", writeLimit, commentHandler.Create)
		comments.GET("/search", searchHandler.SearchComments)
		comments.GET("/:id", commentHandler.GetByID)
		comments.DELETE("/:id", commentHandler.Delete)
		comments.POST("/:id/like", writeLimit, commentHandler.ToggleLike)
	}

	// --- 管理接口 ---
	admin := v1.Group("/admin", middleware.AuthRequired(), adminMiddleware)
	{
		admin.POST("/comments/:id/reconcile", adminHandler.ReconcileLikeCount)
	}
}
