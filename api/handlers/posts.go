package handlers

import (
	"net/http"
	"time"

	"socialfeed/api/middleware"

	"github.com/gin-gonic/gin"
)

type postRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreatePost создает новый пост
func (h *Handlers) CreatePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var err error
	defer observe(middleware.WritePostCreated, time.Now(), &err)

	post, err := h.Posts.CreatePost(c.Request.Context(), userID, req.Content)
	if err != nil {
		h.respondError(c, "create post", err)
		return
	}

	c.JSON(http.StatusCreated, post)
}

func (h *Handlers) GetPost(c *gin.Context) {
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}

	post, err := h.Posts.GetPost(c.Request.Context(), postID)
	if err != nil {
		h.respondError(c, "get post", err)
		return
	}

	c.JSON(http.StatusOK, post)
}

// UpdatePost меняет текст поста; доступно только автору
func (h *Handlers) UpdatePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var err error
	defer observe(middleware.WritePostUpdated, time.Now(), &err)

	post, err := h.Posts.UpdatePost(c.Request.Context(), userID, postID, req.Content)
	if err != nil {
		h.respondError(c, "update post", err)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (h *Handlers) DeletePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "post_id")
	if !ok {
		return
	}

	var err error
	defer observe(middleware.WritePostDeleted, time.Now(), &err)

	if err = h.Posts.DeletePost(c.Request.Context(), userID, postID); err != nil {
		h.respondError(c, "delete post", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}
