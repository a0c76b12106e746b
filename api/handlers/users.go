package handlers

import (
	"net/http"
	"time"

	"socialfeed/api/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) Follow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := idParam(c, "user_id")
	if !ok {
		return
	}

	var err error
	defer observe(middleware.WriteUserFollowed, time.Now(), &err)

	created, err := h.Follows.Follow(c.Request.Context(), userID, targetID)
	if err != nil {
		h.respondError(c, "follow user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": targetID, "following": true, "changed": created})
}

func (h *Handlers) Unfollow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := idParam(c, "user_id")
	if !ok {
		return
	}

	var err error
	defer observe(middleware.WriteUserUnfollowed, time.Now(), &err)

	removed, err := h.Follows.Unfollow(c.Request.Context(), userID, targetID)
	if err != nil {
		h.respondError(c, "unfollow user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": targetID, "following": false, "changed": removed})
}

// GetProfile отдает профиль; просмотр чужого профиля поднимает аффинитет зрителя
func (h *Handlers) GetProfile(c *gin.Context) {
	targetID, ok := idParam(c, "user_id")
	if !ok {
		return
	}
	viewerID, _ := middleware.UserID(c)

	profile, err := h.Profiles.GetProfile(c.Request.Context(), viewerID, targetID)
	if err != nil {
		h.respondError(c, "get profile", err)
		return
	}

	c.JSON(http.StatusOK, profile)
}
