package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"socialfeed/api/middleware"
	"socialfeed/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JobQueue - постановка фоновых задач из админских ручек
type JobQueue interface {
	Enqueue(ctx context.Context, jobType services.JobType, userID int64) (services.Job, error)
	Stats(ctx context.Context) (services.QueueStats, error)
}

// Handlers держит сервисы, нужные HTTP слою
type Handlers struct {
	Feeds       *services.FeedAssembler
	Posts       *services.PostService
	Likes       *services.LikeService
	Follows     *services.FollowService
	Profiles    *services.ProfileService
	Activity    *services.ActivityTracker
	Invalidator *services.CacheInvalidator
	Jobs        JobQueue
	Logger      *zap.Logger
}

func (h *Handlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// currentUser достает вызывающего; false означает, что ответ уже отправлен
func currentUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return userID, true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// pageParams читает page/per_page; мусор превращается в 0 и нормализуется сборщиком ленты
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return page, perPage
}

// errorStatus сопоставляет доменные ошибки с HTTP кодом и меткой для метрик
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrSelfFollow):
		return http.StatusBadRequest, "self_follow"
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, services.ErrUnknownJob):
		return http.StatusBadRequest, "unknown_job"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handlers) respondError(c *gin.Context, operation string, err error) {
	status, _ := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed",
			zap.String("operation", operation),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Failed to " + operation})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// observe пишет метрику записи; вызывать через defer с указателем на err
func observe(write middleware.FeedWrite, start time.Time, err *error) {
	reason := ""
	if *err != nil {
		_, reason = errorStatus(*err)
	}
	middleware.RecordFeedWrite(write, time.Since(start), reason)
}
