package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"candidash/internal/domain"
	"candidash/internal/service"
)

// AuthHandler expone login, refresh, logout y registro.
type AuthHandler struct {
	logger  *zap.Logger
	auth    *service.AuthService
	cookies CookieConfig
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		auth:    auth,
		cookies: cookies,
	}
}

// sessionResponse es el cuerpo devuelto junto a las cookies de sesion.
type sessionResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   int64           `json:"expires_in"`
	TokenType   string          `json:"token_type"`
	User        domain.SafeUser `json:"user"`
}

func (h *AuthHandler) writeSession(c *gin.Context, result service.AuthResult) {
	h.cookies.setAuthCookies(c, result)
	c.JSON(http.StatusOK, sessionResponse{
		AccessToken: result.AccessToken,
		ExpiresIn:   result.ExpiresIn,
		TokenType:   result.TokenType,
		User:        result.User,
	})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "login", err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}
	if result.TwoFactor != nil {
		c.JSON(http.StatusOK, result.TwoFactor)
		return
	}
	h.writeSession(c, *result.Auth)
}

// RefreshToken maneja POST /auth/refresh. Acepta la cookie o el cuerpo JSON.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(refreshTokenCookie)
	if strings.TrimSpace(token) == "" {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}
	if strings.TrimSpace(token) == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	result, err := h.auth.RefreshToken(c.Request.Context(), token)
	if err != nil {
		h.cookies.clearAuthCookies(c)
		respondError(c, h.logger, "refresh token", err)
		return
	}
	h.writeSession(c, result)
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	resp, err := h.auth.Logout(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "logout", err)
		return
	}
	h.cookies.clearAuthCookies(c)
	c.JSON(http.StatusOK, resp)
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "register", err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		respondError(c, h.logger, "register", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// VerifyRegistration maneja POST /auth/verify-registration.
func (h *AuthHandler) VerifyRegistration(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "verify registration", err)
		return
	}

	result, err := h.auth.VerifyRegistration(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		respondError(c, h.logger, "verify registration", err)
		return
	}
	h.writeSession(c, result)
}

// ResendVerificationCode maneja POST /auth/resend-verification.
func (h *AuthHandler) ResendVerificationCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "resend verification", err)
		return
	}

	resp, err := h.auth.ResendVerificationCode(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, "resend verification", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
