package routes

import (
	"socialfeed/api/handlers"

	"github.com/gin-gonic/gin"
)

// AdminApi - служебные ручки; снаружи закрываются на уровне сети
func AdminApi(router *gin.Engine, h *handlers.Handlers) *gin.RouterGroup {
	adminEndpoints := router.Group("/api/v1/admin/")
	{
		adminEndpoints.POST("feed/:user_id/invalidate", h.InvalidateUserFeed)
		adminEndpoints.POST("jobs/:job", h.EnqueueJob)
		adminEndpoints.GET("queue/stats", h.QueueStats)
	}
	return adminEndpoints
}
