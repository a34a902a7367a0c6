package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"candidash/internal/domain"
	"candidash/internal/repository"
)

// AuthService orquesta login, refresh, logout, registro y 2FA.
type AuthService struct {
	logger       *zap.Logger
	users        repository.UserRepository
	hasher       *PasswordHasher
	jwt          *JWTService
	totp         *TOTPService
	pending      *PendingUserService
	verification *VerificationService
	now          func() time.Time
}

// AuthResult es la respuesta completa de autenticacion.
type AuthResult struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresIn    int64           `json:"expires_in"`
	TokenType    string          `json:"token_type"`
	User         domain.SafeUser `json:"user"`
}

// TwoFactorPending se devuelve en lugar de tokens cuando el usuario tiene TOTP.
type TwoFactorPending struct {
	Requires2FA bool   `json:"requires2FA"`
	TempToken   string `json:"tempToken"`
	Message     string `json:"message"`
}

// LoginResult lleva exactamente uno de sus dos campos.
type LoginResult struct {
	Auth      *AuthResult
	TwoFactor *TwoFactorPending
}

type RegisterResult struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher *PasswordHasher,
	jwtSvc *JWTService,
	totpSvc *TOTPService,
	pending *PendingUserService,
	verification *VerificationService,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		logger:       logger,
		users:        users,
		hasher:       hasher,
		jwt:          jwtSvc,
		totp:         totpSvc,
		pending:      pending,
		verification: verification,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (LoginResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.hasher.CompareDummy(password)
			s.logger.Info("login rejected", zap.String("reason", "unknown email"))
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if !s.checkPassword(ctx, user, password) {
		s.logger.Info("login rejected", zap.String("reason", "wrong password"), zap.String("user_id", user.ID))
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.TOTPEnabled {
		temp, err := s.jwt.IssueTwoFactorPending(user)
		if err != nil {
			return LoginResult{}, fmt.Errorf("issue 2fa token: %w", err)
		}
		return LoginResult{TwoFactor: &TwoFactorPending{
			Requires2FA: true,
			TempToken:   temp.Token,
			Message:     "two-factor verification required",
		}}, nil
	}

	auth, err := s.generateFullAuthTokens(ctx, user, "")
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Auth: &auth}, nil
}

func (s *AuthService) RefreshToken(ctx context.Context, token string) (AuthResult, error) {
	claims, err := s.jwt.Parse(token, TokenRefresh)
	if err != nil {
		s.logger.Info("refresh rejected", zap.Error(err))
		return AuthResult{}, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Info("refresh rejected", zap.String("reason", "unknown user"), zap.String("user_id", claims.Subject))
			return AuthResult{}, ErrInvalidToken
		}
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}

	presented := hashToken(token)
	if user.RefreshTokenHash == "" || user.RefreshTokenExpires == nil {
		s.logger.Info("refresh rejected", zap.String("reason", "no active refresh token"), zap.String("user_id", user.ID))
		return AuthResult{}, ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(user.RefreshTokenHash)) != 1 {
		s.logger.Info("refresh rejected", zap.String("reason", "superseded token"), zap.String("user_id", user.ID))
		return AuthResult{}, ErrInvalidToken
	}
	if s.now().After(*user.RefreshTokenExpires) {
		s.logger.Info("refresh rejected", zap.String("reason", "stored expiry passed"), zap.String("user_id", user.ID))
		return AuthResult{}, ErrInvalidToken
	}

	return s.generateFullAuthTokens(ctx, user, presented)
}

// Logout borra el refresh token guardado. Es idempotente.
func (s *AuthService) Logout(ctx context.Context, userID string) (MessageResponse, error) {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return MessageResponse{}, fmt.Errorf("clear refresh token: %w", err)
	}
	return MessageResponse{Message: "logged out"}, nil
}

// SetupTOTP genera un secreto nuevo, aun no activo, y lo guarda cifrado.
func (s *AuthService) SetupTOTP(ctx context.Context, userID string) (TOTPSetup, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return TOTPSetup{}, err
	}
	if user.TOTPEnabled {
		return TOTPSetup{}, ErrTOTPAlreadyEnabled
	}

	setup, err := s.totp.GenerateSetup(user.Email)
	if err != nil {
		return TOTPSetup{}, err
	}
	if err := s.users.SetTOTPSecret(ctx, user.ID, setup.EncryptedSecret); err != nil {
		return TOTPSetup{}, fmt.Errorf("store totp secret: %w", err)
	}
	return setup, nil
}

// VerifyTOTPSetup activa TOTP y devuelve los codigos de recuperacion en claro, una sola vez.
func (s *AuthService) VerifyTOTPSetup(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, ErrTOTPAlreadyEnabled
	}
	if user.TOTPSecret == "" {
		return nil, ErrTOTPNotInitialized
	}

	valid, err := s.totp.Verify(user.TOTPSecret, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("verify totp: %w", err)
	}
	if !valid {
		return nil, ErrInvalidTOTPCode
	}

	codes, err := s.totp.GenerateRecoveryCodes()
	if err != nil {
		return nil, fmt.Errorf("generate recovery codes: %w", err)
	}
	hashes, err := s.totp.HashRecoveryCodes(codes)
	if err != nil {
		return nil, fmt.Errorf("hash recovery codes: %w", err)
	}
	if err := s.users.EnableTOTP(ctx, user.ID, hashes); err != nil {
		return nil, fmt.Errorf("enable totp: %w", err)
	}
	s.logger.Info("totp enabled", zap.String("user_id", user.ID))
	return codes, nil
}

// DisableTOTP exige la contrasena y borra secreto, flag y codigos.
func (s *AuthService) DisableTOTP(ctx context.Context, userID, password string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !s.checkPassword(ctx, user, password) {
		s.logger.Info("disable totp rejected", zap.String("reason", "wrong password"), zap.String("user_id", user.ID))
		return ErrInvalidCredentials
	}
	if err := s.users.DisableTOTP(ctx, user.ID); err != nil {
		return fmt.Errorf("disable totp: %w", err)
	}
	s.logger.Info("totp disabled", zap.String("user_id", user.ID))
	return nil
}

func (s *AuthService) ValidateTOTP(ctx context.Context, tempToken, code string) (AuthResult, error) {
	user, err := s.loadTwoFactorUser(ctx, tempToken)
	if err != nil {
		return AuthResult{}, err
	}
	if user.TOTPSecret == "" {
		s.logger.Warn("totp enabled without secret", zap.String("user_id", user.ID))
		return AuthResult{}, ErrInvalidToken
	}

	valid, err := s.totp.Verify(user.TOTPSecret, strings.TrimSpace(code))
	if err != nil {
		return AuthResult{}, fmt.Errorf("verify totp: %w", err)
	}
	if !valid {
		s.logger.Info("totp login rejected", zap.String("reason", "wrong code"), zap.String("user_id", user.ID))
		return AuthResult{}, ErrInvalidCredentials
	}
	return s.generateFullAuthTokens(ctx, user, "")
}

// UseRecoveryCode consume un codigo de recuperacion. Si dos peticiones usan
// el mismo codigo a la vez, solo una logra reemplazar la lista.
func (s *AuthService) UseRecoveryCode(ctx context.Context, tempToken, recoveryCode string) (AuthResult, error) {
	user, err := s.loadTwoFactorUser(ctx, tempToken)
	if err != nil {
		return AuthResult{}, err
	}

	idx := s.totp.MatchRecoveryCode(user.TOTPRecoveryCodes, strings.TrimSpace(recoveryCode))
	if idx < 0 {
		s.logger.Info("recovery login rejected", zap.String("reason", "no matching code"), zap.String("user_id", user.ID))
		return AuthResult{}, ErrInvalidCredentials
	}

	remaining := make([]string, 0, len(user.TOTPRecoveryCodes)-1)
	remaining = append(remaining, user.TOTPRecoveryCodes[:idx]...)
	remaining = append(remaining, user.TOTPRecoveryCodes[idx+1:]...)

	swapped, err := s.users.ReplaceRecoveryCodes(ctx, user.ID, user.TOTPRecoveryCodes, remaining)
	if err != nil {
		return AuthResult{}, fmt.Errorf("consume recovery code: %w", err)
	}
	if !swapped {
		s.logger.Info("recovery login rejected", zap.String("reason", "concurrent consumption"), zap.String("user_id", user.ID))
		return AuthResult{}, ErrInvalidCredentials
	}
	s.logger.Info("recovery code consumed", zap.String("user_id", user.ID), zap.Int("remaining", len(remaining)))
	return s.generateFullAuthTokens(ctx, user, "")
}

// Register crea el registro pendiente y envia el codigo de verificacion.
// Si el envio falla el pendiente se conserva para permitir el reenvio.
func (s *AuthService) Register(ctx context.Context, emailAddr, password, username string) (RegisterResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	username = strings.TrimSpace(username)
	if !validEmail(emailAddr) {
		return RegisterResult{}, ErrInvalidEmail
	}
	if err := ValidatePassword(password); err != nil {
		return RegisterResult{}, err
	}
	if err := ValidateUsername(username); err != nil {
		return RegisterResult{}, err
	}

	if err := s.pending.Create(ctx, emailAddr, password, username); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return RegisterResult{}, err
		}
		return RegisterResult{}, fmt.Errorf("create pending user: %w", err)
	}
	if err := s.issueVerificationCode(ctx, emailAddr); err != nil {
		return RegisterResult{}, err
	}
	return RegisterResult{
		Message: "Verification code sent by email. Please check your inbox.",
		Email:   emailAddr,
	}, nil
}

func (s *AuthService) VerifyRegistration(ctx context.Context, emailAddr, code string) (AuthResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	valid, err := s.verification.VerifyCode(ctx, emailAddr, strings.TrimSpace(code))
	if err != nil {
		return AuthResult{}, fmt.Errorf("verify code: %w", err)
	}
	if !valid {
		return AuthResult{}, ErrInvalidVerificationCode
	}

	user, err := s.pending.Promote(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrNoPendingRegistration) || errors.Is(err, ErrEmailTaken) {
			return AuthResult{}, err
		}
		return AuthResult{}, fmt.Errorf("promote pending user: %w", err)
	}
	s.logger.Info("registration confirmed", zap.String("user_id", user.ID))
	return s.generateFullAuthTokens(ctx, user, "")
}

func (s *AuthService) ResendVerificationCode(ctx context.Context, emailAddr string) (MessageResponse, error) {
	emailAddr = normalizeEmail(emailAddr)
	canResend, err := s.verification.CanResend(ctx, emailAddr)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("check resend cooldown: %w", err)
	}
	if !canResend {
		return MessageResponse{}, ErrResendTooSoon
	}

	exists, err := s.pending.Exists(ctx, emailAddr)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("load pending user: %w", err)
	}
	if !exists {
		return MessageResponse{}, ErrNoPendingRegistration
	}

	if err := s.issueVerificationCode(ctx, emailAddr); err != nil {
		return MessageResponse{}, err
	}
	return MessageResponse{Message: "A new verification code was sent by email"}, nil
}

func (s *AuthService) issueVerificationCode(ctx context.Context, emailAddr string) error {
	code, err := s.verification.GenerateCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	if err := s.verification.SaveCode(ctx, emailAddr, code); err != nil {
		return fmt.Errorf("save verification code: %w", err)
	}
	if err := s.verification.SendVerificationEmail(ctx, emailAddr, code); err != nil {
		s.logger.Warn("send verification code failed", zap.Error(err), zap.String("email", emailAddr))
		return ErrEmailSendFailure
	}
	return nil
}

// generateFullAuthTokens emite access y refresh. Con previousHash vacio
// sobrescribe el hash guardado; si no, solo rota si sigue siendo ese.
func (s *AuthService) generateFullAuthTokens(ctx context.Context, user domain.User, previousHash string) (AuthResult, error) {
	access, err := s.jwt.IssueAccess(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.jwt.IssueRefresh(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue refresh token: %w", err)
	}

	hash := hashToken(refresh.Token)
	if previousHash == "" {
		if err := s.users.SetRefreshToken(ctx, user.ID, hash, refresh.ExpiresAt); err != nil {
			return AuthResult{}, fmt.Errorf("store refresh token: %w", err)
		}
	} else {
		rotated, err := s.users.RotateRefreshToken(ctx, user.ID, previousHash, hash, refresh.ExpiresAt)
		if err != nil {
			return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
		}
		if !rotated {
			s.logger.Info("refresh rejected", zap.String("reason", "concurrent rotation"), zap.String("user_id", user.ID))
			return AuthResult{}, ErrInvalidToken
		}
	}

	return AuthResult{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresIn:    int64(AccessTokenTTL.Seconds()),
		TokenType:    "Bearer",
		User:         user.Safe(),
	}, nil
}

// checkPassword verifica la contrasena y migra hashes heredados a bcrypt.
func (s *AuthService) checkPassword(ctx context.Context, user domain.User, password string) bool {
	ok, needsRehash := s.hasher.Verify(user.PasswordHash, password)
	if !ok {
		return false
	}
	if needsRehash {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			s.logger.Warn("rehash legacy password failed", zap.Error(err), zap.String("user_id", user.ID))
			return true
		}
		if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
			s.logger.Warn("store migrated password failed", zap.Error(err), zap.String("user_id", user.ID))
			return true
		}
		s.logger.Info("legacy password migrated", zap.String("user_id", user.ID))
	}
	return true
}

func (s *AuthService) loadUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidToken
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *AuthService) loadTwoFactorUser(ctx context.Context, tempToken string) (domain.User, error) {
	claims, err := s.jwt.Parse(tempToken, TokenTwoFactorPending)
	if err != nil {
		s.logger.Info("2fa token rejected", zap.Error(err))
		return domain.User{}, ErrInvalidToken
	}
	user, err := s.loadUser(ctx, claims.Subject)
	if err != nil {
		return domain.User{}, err
	}
	if !user.TOTPEnabled {
		s.logger.Info("2fa token rejected", zap.String("reason", "totp disabled"), zap.String("user_id", user.ID))
		return domain.User{}, ErrInvalidToken
	}
	return user, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
