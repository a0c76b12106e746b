package handlers

import (
	"net/http"
	"strconv"

	"socialfeed/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InvalidateUserFeed сбрасывает кеш ленты пользователя (админский эндпоинт)
func (h *Handlers) InvalidateUserFeed(c *gin.Context) {
	userID, ok := idParam(c, "user_id")
	if !ok {
		return
	}

	deleted := h.Invalidator.InvalidateUserFeed(c.Request.Context(), userID)
	h.logger().Info("feed invalidated by admin", zap.Int64("user_id", userID), zap.Int64("keys", deleted))

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "deleted_keys": deleted})
}

// EnqueueJob ставит фоновую задачу в очередь; для invalidate_ranked_feed нужен ?user_id=
func (h *Handlers) EnqueueJob(c *gin.Context) {
	jobType, err := services.ParseJobType(c.Param("job"))
	if err != nil {
		h.respondError(c, "enqueue job", err)
		return
	}

	var userID int64
	if raw := c.Query("user_id"); raw != "" {
		userID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
			return
		}
	}

	job, err := h.Jobs.Enqueue(c.Request.Context(), jobType, userID)
	if err != nil {
		h.respondError(c, "enqueue job", err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (h *Handlers) QueueStats(c *gin.Context) {
	stats, err := h.Jobs.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, "get queue stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
