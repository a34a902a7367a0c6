package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"candidash/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

// Me maneja GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	user, err := h.userServ.Profile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "load profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Profile maneja GET /users/profile/:id.
func (h *UserHandler) Profile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok || claims.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	user, err := h.userServ.ProfileFor(c.Request.Context(), claims.Subject, claims.Role, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "load profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile maneja PUT /users/profile-update/:id.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req service.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "profile update", err)
		return
	}

	user, err := h.userServ.UpdateProfile(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Directory maneja GET /users/directory (solo admin).
func (h *UserHandler) Directory(c *gin.Context) {
	users, err := h.userServ.Directory(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "list users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// ForgotPassword maneja POST /users/forgot-password.
func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "forgot password", err)
		return
	}

	resp, err := h.userServ.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, "request password reset", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ResetPassword maneja POST /users/reset-password.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "reset password", err)
		return
	}

	resp, err := h.userServ.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		respondError(c, h.logger, "reset password", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ChangePassword maneja PUT /users/change-password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "change password", err)
		return
	}

	resp, err := h.userServ.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(c, h.logger, "change password", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
