package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/social-feed/social-feed/internal/config"
	"github.com/social-feed/social-feed/internal/middleware"
	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/services"
	"github.com/social-feed/social-feed/pkg/logger"
)

type FeedHandler struct {
	feedService *services.FeedService
	social      *SocialHandler
	config      *config.FeedConfig
	logger      *logger.Logger
}

func NewFeedHandler(feedService *services.FeedService, social *SocialHandler, config *config.FeedConfig, logger *logger.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		social:      social,
		config:      config,
		logger:      logger,
	}
}

// RegisterRoutes mounts the post endpoints; every one requires auth.
func (h *FeedHandler) RegisterRoutes(r *gin.RouterGroup, auth gin.HandlerFunc) {
	posts := r.Group("/post", auth)
	{
		posts.POST("/create", h.CreatePost)
		posts.PUT("/update/:post_id", h.UpdatePost)
		posts.DELETE("/:post_id", h.DeletePost)
		posts.DELETE("/:post_id/image/:filename", h.RemoveImage)
		posts.GET("/get-all", h.GetOwnPosts)
		posts.GET("/get-posts", h.GetFeed)
		posts.GET("/get-posts/:user_id", h.GetUserPosts)
		posts.GET("/:post_id", h.GetPost)

		h.social.RegisterTargetRoutes(posts, models.TargetPost)
	}
}

// CreatePost takes the text as multipart form fields alongside any number of
// "files", or as a JSON body when there are no files.
func (h *FeedHandler) CreatePost(c *gin.Context) {
	var req services.CreatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, "body", err)
		return
	}

	uploads, closeUploads, err := formUploads(c, "files")
	if err != nil {
		uploadError(c, "files", err)
		return
	}
	defer closeUploads()

	post, err := h.feedService.CreatePost(c.Request.Context(), middleware.GetUserID(c), &req, uploads)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *FeedHandler) UpdatePost(c *gin.Context) {
	postID, ok := pathID(c, "post_id")
	if !ok {
		return
	}
	var req services.UpdatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBindError(c, "body", err)
		return
	}

	uploads, closeUploads, err := formUploads(c, "files")
	if err != nil {
		uploadError(c, "files", err)
		return
	}
	defer closeUploads()

	post, err := h.feedService.UpdatePost(c.Request.Context(), middleware.GetUserID(c), postID, &req, uploads)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *FeedHandler) DeletePost(c *gin.Context) {
	postID, ok := pathID(c, "post_id")
	if !ok {
		return
	}

	if err := h.feedService.DeletePost(c.Request.Context(), middleware.GetUserID(c), postID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Post has been deleted."})
}

func (h *FeedHandler) RemoveImage(c *gin.Context) {
	postID, ok := pathID(c, "post_id")
	if !ok {
		return
	}

	if err := h.feedService.RemoveImage(c.Request.Context(), middleware.GetUserID(c), postID, c.Param("filename")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Image has been deleted."})
}

func (h *FeedHandler) GetPost(c *gin.Context) {
	postID, ok := pathID(c, "post_id")
	if !ok {
		return
	}

	post, err := h.feedService.GetPost(c.Request.Context(), postID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *FeedHandler) GetOwnPosts(c *gin.Context) {
	posts, err := h.feedService.ListOwnPosts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *FeedHandler) pageParams(c *gin.Context) (int, int, bool) {
	page, ok := queryInt(c, "page", 1, 1, 1<<31-1)
	if !ok {
		return 0, 0, false
	}
	size, ok := queryInt(c, "size", h.config.DefaultPageSize, 1, h.config.MaxPageSize)
	if !ok {
		return 0, 0, false
	}
	return page, size, true
}

// GetFeed returns the caller's own posts merged with posts of followed users.
func (h *FeedHandler) GetFeed(c *gin.Context) {
	page, size, ok := h.pageParams(c)
	if !ok {
		return
	}

	result, err := h.feedService.GetFeed(c.Request.Context(), middleware.GetUserID(c), page, size)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *FeedHandler) GetUserPosts(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	page, size, ok := h.pageParams(c)
	if !ok {
		return
	}

	result, err := h.feedService.GetUserPosts(c.Request.Context(), userID, page, size)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
