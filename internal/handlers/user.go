package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/habit-tracker-api/internal/constants"
	"github.com/yukikurage/habit-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/habit-tracker-api/internal/errors"
	"github.com/yukikurage/habit-tracker-api/internal/middleware"
	"github.com/yukikurage/habit-tracker-api/internal/services"
	"go.uber.org/zap"
)

// UserHandler serves signup, login and profile endpoints.
type UserHandler struct {
	authService *services.AuthService
	userService *services.UserService
	log         *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService *services.AuthService, userService *services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{
		authService: authService,
		userService: userService,
		log:         log,
	}
}

// ListUsers returns users in ID order, paged by ?after=<id>&limit=<n>. The
// total is sent in X-Total-Count and, when the page is full, the cursor for
// the next page in X-Next-After.
func (h *UserHandler) ListUsers(c *gin.Context) {
	type ListUsersQuery struct {
		After uint64 `form:"after"`
		Limit int    `form:"limit" binding:"omitempty,min=1,max=200"`
	}

	var q ListUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = constants.DefaultPageSize
	}

	users, total, err := h.userService.ListUsers(c.Request.Context(), q.After, q.Limit)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	if len(users) == q.Limit {
		c.Header("X-Next-After", strconv.FormatUint(users[len(users)-1].ID, 10))
	}
	c.JSON(http.StatusOK, dto.ToUserDTOs(users))
}

// Signup registers a new user.
func (h *UserHandler) Signup(c *gin.Context) {
	type SignupRequest struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.authService.Signup(c.Request.Context(), services.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToUserDTO(*user))
}

// Login authenticates a user and initializes the session.
func (h *UserHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.authService.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	session := sessions.Default(c)
	session.Set(constants.ContextKeyUserID, user.ID)
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// Logout removes the authentication session.
func (h *UserHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the authenticated user.
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// UpdateUser changes profile fields. Fields absent from the body are left as is.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	type UpdateUserRequest struct {
		Name                 *string `json:"name"`
		Email                *string `json:"email" binding:"omitempty,email"`
		Password             *string `json:"password"`
		ThemePreference      *string `json:"themePreference"`
		Language             *string `json:"language"`
		DataProcessingAgreed *bool   `json:"dataProcessingAgreed"`
		NotificationsEnabled *bool   `json:"notificationsEnabled"`
		NotificationTime     *string `json:"notificationTime"`
		SuccessLimit         *int    `json:"successLimit"`
		FailureLimit         *int    `json:"failureLimit"`
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), id, services.UpdateUserInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		ThemePreference:      req.ThemePreference,
		Language:             req.Language,
		DataProcessingAgreed: req.DataProcessingAgreed,
		NotificationsEnabled: req.NotificationsEnabled,
		NotificationTime:     req.NotificationTime,
		SuccessLimit:         req.SuccessLimit,
		FailureLimit:         req.FailureLimit,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}
