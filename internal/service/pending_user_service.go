package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"candidash/internal/domain"
	"candidash/internal/repository"
)

const pendingUserTTL = 24 * time.Hour

// PendingUserService maneja los registros aun no confirmados.
type PendingUserService struct {
	users   repository.UserRepository
	pending repository.PendingUserRepository
	hasher  *PasswordHasher
	now     func() time.Time
}

func NewPendingUserService(users repository.UserRepository, pending repository.PendingUserRepository, hasher *PasswordHasher) *PendingUserService {
	return &PendingUserService{
		users:   users,
		pending: pending,
		hasher:  hasher,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create rechaza emails ya confirmados y sobrescribe el pendiente existente.
func (s *PendingUserService) Create(ctx context.Context, emailAddr, password, username string) error {
	_, err := s.users.GetByEmail(ctx, emailAddr)
	if err == nil {
		return ErrEmailTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	return s.pending.Upsert(ctx, domain.PendingUser{
		Email:        emailAddr,
		PasswordHash: hash,
		Username:     username,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (s *PendingUserService) Exists(ctx context.Context, emailAddr string) (bool, error) {
	_, err := s.pending.GetByEmail(ctx, emailAddr)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// Promote crea el usuario real con el hash ya calculado y borra el pendiente.
func (s *PendingUserService) Promote(ctx context.Context, emailAddr string) (domain.User, error) {
	pending, err := s.pending.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNoPendingRegistration
		}
		return domain.User{}, err
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        pending.Email,
		Username:     pending.Username,
		PasswordHash: pending.PasswordHash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	if err := s.pending.Delete(ctx, emailAddr); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// CleanupExpired borra pendientes con mas de 24 horas.
func (s *PendingUserService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.pending.DeleteCreatedBefore(ctx, s.now().Add(-pendingUserTTL))
}
