package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"candidash/internal/service"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// CookieConfig controla los flags de las cookies de sesion.
type CookieConfig struct {
	Secure bool
}

func (cc CookieConfig) set(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// setAuthCookies guarda access (24h) y refresh (7d) como cookies HttpOnly.
func (cc CookieConfig) setAuthCookies(c *gin.Context, result service.AuthResult) {
	cc.set(c, accessTokenCookie, result.AccessToken, int(service.AccessTokenTTL.Seconds()))
	cc.set(c, refreshTokenCookie, result.RefreshToken, int(service.RefreshTokenTTL.Seconds()))
}

func (cc CookieConfig) clearAuthCookies(c *gin.Context) {
	cc.set(c, accessTokenCookie, "", -1)
	cc.set(c, refreshTokenCookie, "", -1)
}
