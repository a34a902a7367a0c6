package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"candidash/internal/domain"
	"candidash/internal/service"
)

// RateLimits agrupa los limitadores por IP de los endpoints publicos de auth.
type RateLimits struct {
	Login    service.RateLimiter
	Register service.RateLimiter
	Verify   service.RateLimiter
	Resend   service.RateLimiter
}

// Handlers agrupa los handlers que monta el router.
type Handlers struct {
	Auth      *AuthHandler
	TOTP      *TOTPHandler
	Users     *UserHandler
	JobTracks *JobTrackHandler
	Documents *DocumentHandler
	Reminders *ReminderHandler
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	limits RateLimits,
	h Handlers,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireAuth := JWTAuthMiddleware(jwtSvc)

	auth := r.Group("/auth")
	auth.POST("/login", RateLimitMiddleware(limits.Login), h.Auth.Login)
	auth.POST("/refresh", h.Auth.RefreshToken)
	auth.POST("/logout", requireAuth, h.Auth.Logout)
	auth.POST("/register", RateLimitMiddleware(limits.Register), h.Auth.Register)
	auth.POST("/verify-registration", RateLimitMiddleware(limits.Verify), h.Auth.VerifyRegistration)
	auth.POST("/resend-verification", RateLimitMiddleware(limits.Resend), h.Auth.ResendVerificationCode)

	twoFA := auth.Group("/2fa")
	twoFA.POST("/setup", requireAuth, h.TOTP.Setup)
	twoFA.POST("/verify-setup", requireAuth, h.TOTP.VerifySetup)
	twoFA.POST("/disable", requireAuth, h.TOTP.Disable)
	twoFA.POST("/validate", RateLimitMiddleware(limits.Login), h.TOTP.Validate)
	twoFA.POST("/recovery", RateLimitMiddleware(limits.Login), h.TOTP.Recovery)

	users := r.Group("/users")
	users.GET("/me", requireAuth, h.Users.Me)
	users.GET("/profile/:id", requireAuth, h.Users.Profile)
	users.PUT("/profile-update/:id", requireAuth, h.Users.UpdateProfile)
	users.GET("/directory", requireAuth, RequireRole(domain.RoleAdmin), h.Users.Directory)
	users.POST("/forgot-password", h.Users.ForgotPassword)
	users.POST("/reset-password", h.Users.ResetPassword)
	users.PUT("/change-password", requireAuth, h.Users.ChangePassword)

	jobs := r.Group("/jobtracks", requireAuth)
	jobs.POST("", h.JobTracks.Create)
	jobs.POST("/with-reminder", h.JobTracks.CreateWithReminder)
	jobs.GET("", h.JobTracks.List)
	jobs.GET("/status/:status", h.JobTracks.ListByStatus)
	jobs.GET("/:id", h.JobTracks.Get)
	jobs.PUT("/:id", h.JobTracks.Update)
	jobs.PUT("/:id/with-reminder", h.JobTracks.UpdateWithReminder)
	jobs.DELETE("/:id", h.JobTracks.Delete)

	for _, kind := range []domain.DocumentKind{domain.DocumentCV, domain.DocumentLM} {
		path := "/:id/" + string(kind)
		jobs.POST(path, h.Documents.Upload(kind))
		jobs.GET(path, h.Documents.Download(kind))
		jobs.DELETE(path, h.Documents.Delete(kind))
	}

	reminders := r.Group("/reminders", requireAuth)
	reminders.POST("", h.Reminders.Create)
	reminders.GET("/active", h.Reminders.ListActive)
	reminders.GET("/stats", RequireRole(domain.RoleAdmin), h.Reminders.Stats)
	reminders.GET("/jobtrack/:jobTrackId", h.Reminders.ListByJobTrack)
	reminders.GET("/:id", h.Reminders.Get)
	reminders.PUT("/:id", h.Reminders.Update)
	reminders.PUT("/:id/mark-sent", h.Reminders.MarkSent)
	reminders.DELETE("/:id", h.Reminders.Delete)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
