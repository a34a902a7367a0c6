package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"candidash/internal/service"
)

// TOTPHandler expone la configuracion y validacion de 2FA.
type TOTPHandler struct {
	logger  *zap.Logger
	auth    *service.AuthService
	session *AuthHandler
}

func NewTOTPHandler(logger *zap.Logger, auth *service.AuthService, session *AuthHandler) *TOTPHandler {
	return &TOTPHandler{logger: logger, auth: auth, session: session}
}

// Setup maneja POST /auth/2fa/setup.
func (h *TOTPHandler) Setup(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	setup, err := h.auth.SetupTOTP(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "setup totp", err)
		return
	}
	c.JSON(http.StatusOK, setup)
}

// VerifySetup maneja POST /auth/2fa/verify-setup.
func (h *TOTPHandler) VerifySetup(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "verify totp setup", err)
		return
	}

	codes, err := h.auth.VerifyTOTPSetup(c.Request.Context(), userID, req.Code)
	if err != nil {
		respondError(c, h.logger, "verify totp setup", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "two-factor authentication enabled",
		"recoveryCodes": codes,
	})
}

// Disable maneja POST /auth/2fa/disable.
func (h *TOTPHandler) Disable(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "disable totp", err)
		return
	}

	if err := h.auth.DisableTOTP(c.Request.Context(), userID, req.Password); err != nil {
		respondError(c, h.logger, "disable totp", err)
		return
	}
	c.JSON(http.StatusOK, service.MessageResponse{Message: "two-factor authentication disabled"})
}

// Validate maneja POST /auth/2fa/validate.
func (h *TOTPHandler) Validate(c *gin.Context) {
	var req struct {
		TempToken string `json:"tempToken" binding:"required"`
		Code      string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "validate totp", err)
		return
	}

	result, err := h.auth.ValidateTOTP(c.Request.Context(), req.TempToken, req.Code)
	if err != nil {
		respondError(c, h.logger, "validate totp", err)
		return
	}
	h.session.writeSession(c, result)
}

// Recovery maneja POST /auth/2fa/recovery.
func (h *TOTPHandler) Recovery(c *gin.Context) {
	var req struct {
		TempToken    string `json:"tempToken" binding:"required"`
		RecoveryCode string `json:"recoveryCode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "use recovery code", err)
		return
	}

	result, err := h.auth.UseRecoveryCode(c.Request.Context(), req.TempToken, req.RecoveryCode)
	if err != nil {
		respondError(c, h.logger, "use recovery code", err)
		return
	}
	h.session.writeSession(c, result)
}
