package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"candidash/internal/service"
)

// statusFor traduce errores del servicio a codigos HTTP. 0 = error interno.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidVerificationCode),
		errors.Is(err, service.ErrNoPendingRegistration),
		errors.Is(err, service.ErrResendTooSoon),
		errors.Is(err, service.ErrTOTPNotInitialized),
		errors.Is(err, service.ErrInvalidTOTPCode),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrPasswordTooLong),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidResetToken),
		errors.Is(err, service.ErrInvalidDocument),
		errors.Is(err, service.ErrInvalidJobTrack),
		errors.Is(err, service.ErrInvalidReminder):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrTOTPAlreadyEnabled),
		errors.Is(err, service.ErrReminderExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrJobTrackNotFound),
		errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, service.ErrReminderNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmailSendFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return 0
	}
}

// respondError escribe el error mapeado; los errores internos se loguean y se ocultan.
func respondError(c *gin.Context, logger *zap.Logger, action string, err error) {
	if status := statusFor(err); status != 0 {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logger.Error(action+" failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "could not " + action})
}

func badRequest(c *gin.Context, logger *zap.Logger, action string, err error) {
	logger.Warn("invalid "+action+" request", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}
