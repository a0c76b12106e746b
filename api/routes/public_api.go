package routes

import (
	"socialfeed/api/handlers"
	"socialfeed/api/middleware"

	"github.com/gin-gonic/gin"
)

func PublicApi(router *gin.Engine, h *handlers.Handlers) *gin.RouterGroup {
	publicEndpoints := router.Group("/api/v1/")

	// чтение доступно и анонимно
	optional := publicEndpoints.Group("", middleware.OptionalAuthMiddleware())
	{
		optional.GET("feed/explore", h.GetExploreFeed)
		optional.GET("posts/:post_id", h.GetPost)
		optional.GET("posts/:post_id/likes", h.GetLikes)
		optional.GET("users/:user_id", h.GetProfile)
	}

	authorized := publicEndpoints.Group("", middleware.AuthMiddleware())
	{
		authorized.GET("feed", h.GetHomeFeed)

		// Посты
		authorized.POST("posts", h.CreatePost)
		authorized.PUT("posts/:post_id", h.UpdatePost)
		authorized.DELETE("posts/:post_id", h.DeletePost)

		// Лайки
		authorized.POST("posts/:post_id/like", h.LikePost)
		authorized.DELETE("posts/:post_id/like", h.UnlikePost)

		// Подписки
		authorized.POST("users/:user_id/follow", h.Follow)
		authorized.DELETE("users/:user_id/follow", h.Unfollow)
	}
	return publicEndpoints
}
