package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/social-feed/social-feed/internal/middleware"
	"github.com/social-feed/social-feed/internal/services"
	"github.com/social-feed/social-feed/pkg/logger"
)

const refreshCookie = "refresh_token"

type UserHandler struct {
	userService   *services.UserService
	searchService *services.SearchService
	tokens        *middleware.TokenManager
	searchLimit   int
	logger        *logger.Logger
}

func NewUserHandler(userService *services.UserService, searchService *services.SearchService, tokens *middleware.TokenManager, searchLimit int, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		userService:   userService,
		searchService: searchService,
		tokens:        tokens,
		searchLimit:   searchLimit,
		logger:        logger,
	}
}

// RegisterRoutes mounts the account, auth and search endpoints.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup, auth gin.HandlerFunc) {
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)
	r.POST("/password-recovery/:email", h.RecoverPassword)
	r.POST("/reset-password", h.ResetPassword)
	r.POST("/search", auth, h.Search)

	users := r.Group("/user")
	{
		users.POST("/signup", h.Signup)

		protected := users.Group("", auth)
		protected.GET("/me", h.Me)
		protected.PUT("/update", h.Update)
		protected.DELETE("/delete", h.Delete)
		protected.POST("/follow/:user_id", h.Follow)
		protected.POST("/unfollow/:user_id", h.Unfollow)
		protected.GET("/get-followers/:user_id", h.GetFollowers)
		protected.GET("/get-followed/:user_id", h.GetFollowed)
		protected.GET("/:user_id", h.GetUser)
	}
}

func (h *UserHandler) Signup(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "body", err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login accepts the OAuth2 password form (username, password) or the same
// fields as JSON. The refresh token goes into an http-only cookie.
func (h *UserHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	var err error
	if strings.HasPrefix(c.ContentType(), binding.MIMEJSON) {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBindWith(&req, binding.Form)
	}
	if err != nil {
		respondBindError(c, "body", err)
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	access, err := h.tokens.NewAccessToken(user.ID)
	if err != nil {
		respondError(c, h.logger, services.Internal("failed to sign access token", err))
		return
	}
	refresh, err := h.tokens.NewRefreshToken(user.ID)
	if err != nil {
		respondError(c, h.logger, services.Internal("failed to sign refresh token", err))
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookie, refresh, 0, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"access_token": access,
		"token_type":   "bearer",
	})
}

func (h *UserHandler) Refresh(c *gin.Context) {
	raw, err := c.Cookie(refreshCookie)
	if err != nil || raw == "" {
		respondError(c, h.logger, services.Unauthorized("Could not validate credentials"))
		return
	}

	userID, err := h.tokens.ParseRefreshToken(raw)
	if err != nil {
		respondError(c, h.logger, services.Unauthorized("Could not validate credentials"))
		return
	}
	if _, err := h.userService.GetByID(c.Request.Context(), userID); err != nil {
		respondError(c, h.logger, services.Unauthorized("Could not validate credentials"))
		return
	}

	access, err := h.tokens.NewAccessToken(userID)
	if err != nil {
		respondError(c, h.logger, services.Internal("failed to sign access token", err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"access_token": access,
		"token_type":   "bearer",
	})
}

func (h *UserHandler) RecoverPassword(c *gin.Context) {
	if err := h.userService.RecoverPassword(c.Request.Context(), c.Param("email")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Password recovery email sent"})
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req services.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "body", err)
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Password updated successfully"})
}

func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userService.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Update(c *gin.Context) {
	var req services.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "body", err)
		return
	}

	user, err := h.userService.Update(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.userService.Delete(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.SetCookie(refreshCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": "User has been deleted."})
}

func (h *UserHandler) Follow(c *gin.Context) {
	h.changeFollow(c, h.userService.Follow)
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	h.changeFollow(c, h.userService.Unfollow)
}

// changeFollow runs a follow mutation and answers with the caller's profile.
func (h *UserHandler) changeFollow(c *gin.Context, mutate func(ctx context.Context, followerID, followedID uint) error) {
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	currentID := middleware.GetUserID(c)

	if err := mutate(c.Request.Context(), currentID, targetID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), currentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) GetFollowers(c *gin.Context) {
	h.followList(c, h.userService.Followers, "followers")
}

func (h *UserHandler) GetFollowed(c *gin.Context) {
	h.followList(c, h.userService.Followed, "followed")
}

func (h *UserHandler) followList(c *gin.Context, list func(ctx context.Context, userID uint, offset, limit int) (*services.FollowList, error), field string) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0, 0, 1<<31-1)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 100, 1, 1000)
	if !ok {
		return
	}

	result, err := list(c.Request.Context(), userID, offset, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  result.User,
		field:   result.Users,
		"total": result.Total,
	})
}

func (h *UserHandler) Search(c *gin.Context) {
	text := strings.TrimSpace(c.Query("text"))
	if text == "" {
		abortWithDetail(c, http.StatusUnprocessableEntity, ErrorDetail{
			Loc:  []string{"query", "text"},
			Msg:  "field required",
			Type: "value_error.missing",
		})
		return
	}
	limit, ok := queryInt(c, "limit", h.searchLimit, 1, 1000)
	if !ok {
		return
	}

	hits, err := h.searchService.SearchLimit(c.Request.Context(), text, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}
