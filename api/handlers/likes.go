package handlers

import (
	"net/http"
	"time"

	"socialfeed/api/middleware"

	"github.com/gin-gonic/gin"
)

// LikePost ставит лайк; повторный лайк не меняет счетчик
func (h *Handlers) LikePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}

	var err error
	defer observe(middleware.WritePostLiked, time.Now(), &err)

	created, err := h.Likes.LikePost(c.Request.Context(), userID, postID)
	if err != nil {
		h.respondError(c, "like post", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post_id": postID, "liked": true, "changed": created})
}

func (h *Handlers) UnlikePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}

	var err error
	defer observe(middleware.WritePostUnliked, time.Now(), &err)

	removed, err := h.Likes.UnlikePost(c.Request.Context(), userID, postID)
	if err != nil {
		h.respondError(c, "unlike post", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post_id": postID, "liked": false, "changed": removed})
}

// GetLikes возвращает число лайков и, для авторизованного, стоит ли его лайк
func (h *Handlers) GetLikes(c *gin.Context) {
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}

	count, err := h.Likes.GetLikeCount(c.Request.Context(), postID)
	if err != nil {
		h.respondError(c, "get likes", err)
		return
	}

	response := gin.H{"post_id": postID, "likes_count": count}
	if userID, ok := middleware.UserID(c); ok {
		liked, err := h.Likes.IsLiked(c.Request.Context(), userID, postID)
		if err != nil {
			h.respondError(c, "get likes", err)
			return
		}
		response["liked"] = liked
	}

	c.JSON(http.StatusOK, response)
}
