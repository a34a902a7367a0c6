package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"candidash/internal/domain"
)

// TokenKind discrimina los tres tipos de token emitidos.
type TokenKind string

const (
	TokenAccess           TokenKind = "access"
	TokenRefresh          TokenKind = "refresh"
	TokenTwoFactorPending TokenKind = "2fa-pending"
)

const (
	AccessTokenTTL           = 24 * time.Hour
	RefreshTokenTTL          = 7 * 24 * time.Hour
	TwoFactorPendingTokenTTL = 5 * time.Minute
)

// JWTService emite y valida tokens JWT.
type JWTService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	pendingTTL time.Duration
	now        func() time.Time
}

type Claims struct {
	Email string      `json:"email,omitempty"`
	Role  domain.Role `json:"role,omitempty"`
	Type  TokenKind   `json:"type"`
	jwt.RegisteredClaims
}

// IssuedToken es un token firmado junto con su expiracion.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret:     []byte(secret),
		issuer:     "candidash",
		accessTTL:  AccessTokenTTL,
		refreshTTL: RefreshTokenTTL,
		pendingTTL: TwoFactorPendingTokenTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *JWTService) IssueAccess(user domain.User) (IssuedToken, error) {
	claims := s.baseClaims(user.ID, TokenAccess, s.accessTTL)
	claims.Email = user.Email
	claims.Role = user.Role
	return s.sign(claims)
}

func (s *JWTService) IssueRefresh(user domain.User) (IssuedToken, error) {
	claims := s.baseClaims(user.ID, TokenRefresh, s.refreshTTL)
	claims.ID = uuid.NewString()
	return s.sign(claims)
}

func (s *JWTService) IssueTwoFactorPending(user domain.User) (IssuedToken, error) {
	return s.sign(s.baseClaims(user.ID, TokenTwoFactorPending, s.pendingTTL))
}

// Parse valida firma, expiracion, emisor y que el tipo sea el esperado.
func (s *JWTService) Parse(tokenString string, kind TokenKind) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != kind {
		return Claims{}, ErrJWTInvalid
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) baseClaims(userID string, kind TokenKind, ttl time.Duration) Claims {
	now := s.now()
	return Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func (s *JWTService) sign(claims Claims) (IssuedToken, error) {
	if len(s.secret) == 0 {
		return IssuedToken{}, ErrJWTInvalid
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.Subject) == "" {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
