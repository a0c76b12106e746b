package handlers

import (
	"net/http"

	"socialfeed/api/middleware"

	"github.com/gin-gonic/gin"
)

// GetHomeFeed отдает ранжированную ленту подписок текущего пользователя
func (h *Handlers) GetHomeFeed(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	page, perPage := pageParams(c)
	feed, err := h.Feeds.GetHomeFeed(c.Request.Context(), userID, page, perPage)
	if err != nil {
		h.respondError(c, "get feed", err)
		return
	}
	h.Activity.Touch(c.Request.Context(), userID)
	middleware.RecordFeedPage(middleware.FeedHome, len(feed.Items))

	c.JSON(http.StatusOK, feed)
}

// GetExploreFeed отдает глобальную ленту; одинакова для всех пользователей
func (h *Handlers) GetExploreFeed(c *gin.Context) {
	page, perPage := pageParams(c)
	feed, err := h.Feeds.GetExploreFeed(c.Request.Context(), page, perPage)
	if err != nil {
		h.respondError(c, "get explore feed", err)
		return
	}
	if userID, ok := middleware.UserID(c); ok {
		h.Activity.Touch(c.Request.Context(), userID)
	}
	middleware.RecordFeedPage(middleware.FeedExplore, len(feed.Items))

	c.JSON(http.StatusOK, feed)
}
