package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"candidash/internal/domain"
	"candidash/internal/email"
	"candidash/internal/repository"
)

const resetTokenTTL = time.Hour

const forgotPasswordMessage = "If an account exists for this email, a reset link has been sent."

// UserService coordina el perfil y el ciclo de vida de la contrasena.
type UserService struct {
	logger       *zap.Logger
	users        repository.UserRepository
	hasher       *PasswordHasher
	emailSender  email.Sender
	resetLimiter RateLimiter
	frontendURL  string
	now          func() time.Time
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher *PasswordHasher,
	emailSender email.Sender,
	resetLimiter RateLimiter,
	frontendURL string,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resetLimiter == nil {
		resetLimiter = NewMemoryRateLimiter(resetTokenTTL, 3)
	}
	return &UserService{
		logger:       logger,
		users:        users,
		hasher:       hasher,
		emailSender:  emailSender,
		resetLimiter: resetLimiter,
		frontendURL:  strings.TrimRight(frontendURL, "/"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Profile(ctx context.Context, userID string) (domain.SafeUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SafeUser{}, ErrUserNotFound
		}
		return domain.SafeUser{}, fmt.Errorf("load user: %w", err)
	}
	return user.Safe(), nil
}

// ProfileUpdate son los campos editables del perfil. nil = sin cambio.
type ProfileUpdate struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
}

// ProfileFor devuelve el perfil de targetID. Solo el propio usuario o un admin.
func (s *UserService) ProfileFor(ctx context.Context, actorID string, actorRole domain.Role, targetID string) (domain.SafeUser, error) {
	if actorID != targetID && actorRole != domain.RoleAdmin {
		return domain.SafeUser{}, ErrForbidden
	}
	return s.Profile(ctx, targetID)
}

// UpdateProfile cambia email y/o username del propio usuario.
func (s *UserService) UpdateProfile(ctx context.Context, actorID, targetID string, in ProfileUpdate) (domain.SafeUser, error) {
	if actorID != targetID {
		return domain.SafeUser{}, ErrForbidden
	}
	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SafeUser{}, ErrUserNotFound
		}
		return domain.SafeUser{}, fmt.Errorf("load user: %w", err)
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := ValidateUsername(username); err != nil {
			return domain.SafeUser{}, err
		}
		user.Username = username
	}
	if in.Email != nil {
		emailAddr := normalizeEmail(*in.Email)
		if !validEmail(emailAddr) {
			return domain.SafeUser{}, ErrInvalidEmail
		}
		if emailAddr != user.Email {
			if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
				return domain.SafeUser{}, ErrEmailTaken
			} else if !errors.Is(err, pgx.ErrNoRows) {
				return domain.SafeUser{}, fmt.Errorf("check email: %w", err)
			}
		}
		user.Email = emailAddr
	}

	if err := s.users.UpdateProfile(ctx, user.ID, user.Email, user.Username); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return domain.SafeUser{}, ErrEmailTaken
		case errors.Is(err, pgx.ErrNoRows):
			return domain.SafeUser{}, ErrUserNotFound
		}
		return domain.SafeUser{}, fmt.Errorf("update profile: %w", err)
	}
	user.UpdatedAt = s.now()
	s.logger.Info("profile updated", zap.String("user_id", user.ID))
	return user.Safe(), nil
}

// Directory lista todas las cuentas. El control de rol lo hace el router.
func (s *UserService) Directory(ctx context.Context) ([]domain.SafeUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.SafeUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Safe())
	}
	return out, nil
}

// ForgotPassword responde siempre lo mismo, exista o no la cuenta.
func (s *UserService) ForgotPassword(ctx context.Context, emailAddr string) (MessageResponse, error) {
	emailAddr = normalizeEmail(emailAddr)
	resp := MessageResponse{Message: forgotPasswordMessage}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return resp, nil
		}
		return MessageResponse{}, fmt.Errorf("load user: %w", err)
	}
	if !s.resetLimiter.Allow(ctx, emailAddr) {
		s.logger.Info("password reset throttled", zap.String("user_id", user.ID))
		return resp, nil
	}

	token, err := generateResetToken()
	if err != nil {
		return MessageResponse{}, fmt.Errorf("generate reset token: %w", err)
	}
	expiresAt := s.now().Add(resetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, hashToken(token), expiresAt); err != nil {
		return MessageResponse{}, fmt.Errorf("store reset token: %w", err)
	}

	resetURL := s.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
	if s.emailSender == nil {
		s.logger.Warn("password reset email skipped", zap.String("user_id", user.ID))
		return resp, nil
	}
	if err := s.emailSender.SendPasswordReset(ctx, user.Email, resetURL, expiresAt); err != nil {
		s.logger.Warn("send password reset failed", zap.Error(err), zap.String("user_id", user.ID))
	}
	return resp, nil
}

// ResetPassword cambia la contrasena y revoca el refresh token activo.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) (MessageResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return MessageResponse{}, ErrInvalidResetToken
	}
	if err := ValidatePassword(newPassword); err != nil {
		return MessageResponse{}, err
	}

	user, err := s.users.GetByResetTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessageResponse{}, ErrInvalidResetToken
		}
		return MessageResponse{}, fmt.Errorf("load user: %w", err)
	}
	if user.ResetTokenExpires == nil || s.now().After(*user.ResetTokenExpires) {
		return MessageResponse{}, ErrInvalidResetToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.ResetPassword(ctx, user.ID, hash); err != nil {
		return MessageResponse{}, fmt.Errorf("reset password: %w", err)
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return MessageResponse{Message: "Password reset successfully"}, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (MessageResponse, error) {
	if err := ValidatePassword(newPassword); err != nil {
		return MessageResponse{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessageResponse{}, ErrInvalidCredentials
		}
		return MessageResponse{}, fmt.Errorf("load user: %w", err)
	}
	if ok, _ := s.hasher.Verify(user.PasswordHash, currentPassword); !ok {
		return MessageResponse{}, ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return MessageResponse{}, fmt.Errorf("update password: %w", err)
	}
	return MessageResponse{Message: "Password changed successfully"}, nil
}

func generateResetToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
