package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"candidash/internal/domain"
	"candidash/internal/email"
	"candidash/internal/repository"
)

const (
	verificationCodeTTL      = 10 * time.Minute
	verificationMaxAttempts  = 5
	verificationResendWindow = time.Minute
)

// VerificationService emite y comprueba codigos de verificacion de email.
type VerificationService struct {
	codes       repository.VerificationCodeRepository
	emailSender email.Sender
	now         func() time.Time
}

func NewVerificationService(codes repository.VerificationCodeRepository, emailSender email.Sender) *VerificationService {
	return &VerificationService{
		codes:       codes,
		emailSender: emailSender,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GenerateCode devuelve un codigo numerico de 6 digitos.
func (s *VerificationService) GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// SaveCode guarda el codigo con 10 minutos de validez y los intentos en cero.
func (s *VerificationService) SaveCode(ctx context.Context, emailAddr, code string) error {
	hash, err := hashVerificationCode(code)
	if err != nil {
		return err
	}
	now := s.now()
	return s.codes.Upsert(ctx, domain.VerificationCode{
		Email:     emailAddr,
		CodeHash:  hash,
		ExpiresAt: now.Add(verificationCodeTTL),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// VerifyCode consume un intento y borra el codigo si coincide o si expiro.
func (s *VerificationService) VerifyCode(ctx context.Context, emailAddr, code string) (bool, error) {
	stored, err := s.codes.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	if s.now().After(stored.ExpiresAt) {
		if err := s.codes.Delete(ctx, emailAddr); err != nil {
			return false, err
		}
		return false, nil
	}
	if stored.Attempts >= verificationMaxAttempts {
		return false, nil
	}

	if _, err := s.codes.IncrementAttempts(ctx, emailAddr, verificationMaxAttempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	if !matchVerificationCode(code, stored.CodeHash) {
		return false, nil
	}
	if err := s.codes.Delete(ctx, emailAddr); err != nil {
		return false, err
	}
	return true, nil
}

// CanResend exige al menos un minuto desde la ultima emision.
func (s *VerificationService) CanResend(ctx context.Context, emailAddr string) (bool, error) {
	stored, err := s.codes.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, err
	}
	return !stored.UpdatedAt.After(s.now().Add(-verificationResendWindow)), nil
}

func (s *VerificationService) SendVerificationEmail(ctx context.Context, emailAddr, code string) error {
	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	return s.emailSender.SendVerificationCode(ctx, emailAddr, code, s.now().Add(verificationCodeTTL))
}

func (s *VerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.codes.DeleteExpired(ctx, s.now())
}

func hashVerificationCode(code string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	sum := sha256.Sum256([]byte(saltStr + ":" + code))
	return saltStr + ":" + base64.StdEncoding.EncodeToString(sum[:]), nil
}

func matchVerificationCode(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	sum := sha256.Sum256([]byte(parts[0] + ":" + code))
	hash := base64.StdEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(parts[1])) == 1
}
