package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/social-feed/social-feed/internal/middleware"
	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/services"
	"github.com/social-feed/social-feed/pkg/logger"
)

// SocialHandler serves comments and likes for any target kind. Each kind
// mounts the same routes under its own prefix.
type SocialHandler struct {
	commentService *services.CommentService
	likeService    *services.LikeService
	logger         *logger.Logger
}

func NewSocialHandler(commentService *services.CommentService, likeService *services.LikeService, logger *logger.Logger) *SocialHandler {
	return &SocialHandler{
		commentService: commentService,
		likeService:    likeService,
		logger:         logger,
	}
}

func (h *SocialHandler) RegisterTargetRoutes(r *gin.RouterGroup, targetType models.TargetType) {
	t := &targetRoutes{h: h, targetType: targetType, param: string(targetType) + "_id"}
	idPath := "/:" + t.param

	r.POST(idPath+"/comment", t.createComment)
	r.GET(idPath+"/comment", t.listComments)
	r.GET(idPath+"/comments", t.listComments)
	r.PUT(idPath+"/comment/:comment_id", t.updateComment)
	r.DELETE(idPath+"/comment/:comment_id", t.deleteComment)
	r.GET("/comment/:comment_id", t.getComment)

	r.POST(idPath+"/like", t.like)
	r.DELETE(idPath+"/like", t.unlike)
	r.GET(idPath+"/likes-count", t.likesCount)
}

type targetRoutes struct {
	h          *SocialHandler
	targetType models.TargetType
	param      string
}

func (t *targetRoutes) ref(c *gin.Context) (models.TargetRef, bool) {
	id, ok := pathID(c, t.param)
	if !ok {
		return models.TargetRef{}, false
	}
	return models.TargetRef{Type: t.targetType, ID: id}, true
}

// commentOf loads the comment and checks that it hangs off the target in the path.
func (t *targetRoutes) commentOf(c *gin.Context, ref models.TargetRef) (uint, bool) {
	commentID, ok := pathID(c, "comment_id")
	if !ok {
		return 0, false
	}
	comment, err := t.h.commentService.Get(c.Request.Context(), commentID)
	if err != nil {
		respondError(c, t.h.logger, err)
		return 0, false
	}
	if comment.Target() != ref {
		respondError(c, t.h.logger, services.NotFound("path.comment_id", "The comment with this id does not exist"))
		return 0, false
	}
	return commentID, true
}

func (t *targetRoutes) createComment(c *gin.Context) {
	ref, ok := t.ref(c)
	if !ok {
		return
	}
	var req services.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "body", err)
		return
	}

	comment, err := t.h.commentService.Create(c.Request.Context(), middleware.GetUserID(c), ref, &req)
	if err != nil {
		respondError(c, t.h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (t *targetRoutes) listComments(c *gin.Context) {
	ref, ok := t.ref(c)
	if !ok {
		return
	}

	comments, err := t.h.commentService.ListTopLevel(c.Request.Context(), ref)
	if err != nil {
		respondError(c, t.h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (t *targetRoutes) getComment(c *gin.Context) {
	commentID, ok := pathID(c, "comment_id")
	if !ok {
		return
	}

	comment, err := t.h.commentService.Get(c.Request.Context(), commentID)
	if err != nil {
		respondError(c, t.h.logger, err)
		return
	}
	if comment.CommentableType != t.targetType {
		respondError(c, t.h.logger, services.NotFound("path.comment_id", "The comment with this id does not exist"))
		return
	}
	// the target must still exist; a dangling one is an integrity fault
	if _, err := t.h.commentService.Target(c.Request.Context(), comment); err != nil {
		respondError(c, t.h.logger, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (t *targetRoutes) updateComment(c *gin.Context) {
	ref, ok := t.ref(c)
	if !ok {
		return
	}
	var req services.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "body", err)
		return
	}
	commentID, ok := t.commentOf(c, ref)
	if !ok {
		return
	}

	comment, err := t.h.commentService.Update(c.Request.Context(), middleware.GetUserID(c), commentID, &req)
	if err != nil {
		respondError(c, t.h.logger, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (t *targetRoutes) deleteComment(c *gin.Context) {
	ref, ok := t.ref(c)
	if !ok {
		return
	}
	commentID, ok := t.commentOf(c, ref)
	if !ok {
		return
	}

	if err := t.h.commentService.Remove(c.Request.Context(), middleware.GetUserID(c), commentID); err != nil {
		respondError(c, t.h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Comment has been deleted."})
}

func (t *targetRoutes) like(c *gin.Context) {
	ref, ok := t.ref(c)
	if !ok {
		return
	}

	like, err := t.h.likeService.Create(c.Request.Context(), middleware.GetUserID(c), ref)
	if err != nil {
		respondError(c, t.h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, like)
}

func (t *targetRoutes) unlike(c *gin.Context) {
	ref, ok := t.ref(c)
	if !ok {
		return
	}

	if err := t.h.likeService.Remove(c.Request.Context(), middleware.GetUserID(c), ref); err != nil {
		respondError(c, t.h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "Like has been deleted."})
}

func (t *targetRoutes) likesCount(c *gin.Context) {
	ref, ok := t.ref(c)
	if !ok {
		return
	}

	count, err := t.h.likeService.Count(c.Request.Context(), ref)
	if err != nil {
		respondError(c, t.h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
