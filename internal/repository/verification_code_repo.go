package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"candidash/internal/domain"
)

// VerificationCodeRepository persiste codigos de verificacion por email.
type VerificationCodeRepository interface {
	// Upsert reemplaza el codigo, reinicia intentos y actualiza updated_at.
	Upsert(ctx context.Context, code domain.VerificationCode) error
	GetByEmail(ctx context.Context, email string) (domain.VerificationCode, error)
	// IncrementAttempts suma un intento si el contador es menor que max.
	// Devuelve pgx.ErrNoRows si no hay codigo o si ya alcanzo el maximo.
	IncrementAttempts(ctx context.Context, email string, max int) (int, error)
	Delete(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PgVerificationCodeRepository struct {
	pool *pgxpool.Pool
}

func NewPgVerificationCodeRepository(pool *pgxpool.Pool) *PgVerificationCodeRepository {
	return &PgVerificationCodeRepository{pool: pool}
}

func (r *PgVerificationCodeRepository) Upsert(ctx context.Context, code domain.VerificationCode) error {
	const query = `
		INSERT INTO verification_codes (email, code_hash, expires_at, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
		ON CONFLICT (email) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			attempts = 0,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		code.Email,
		code.CodeHash,
		code.ExpiresAt,
		code.UpdatedAt,
	)
	return err
}

func (r *PgVerificationCodeRepository) GetByEmail(ctx context.Context, email string) (domain.VerificationCode, error) {
	const query = `
		SELECT email, code_hash, expires_at, attempts, created_at, updated_at
		FROM verification_codes
		WHERE email = $1
	`
	var v domain.VerificationCode
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&v.Email,
		&v.CodeHash,
		&v.ExpiresAt,
		&v.Attempts,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return domain.VerificationCode{}, err
	}
	return v, nil
}

func (r *PgVerificationCodeRepository) IncrementAttempts(ctx context.Context, email string, max int) (int, error) {
	const query = `
		UPDATE verification_codes SET attempts = attempts + 1
		WHERE email = $1 AND attempts < $2
		RETURNING attempts
	`
	var attempts int
	if err := r.pool.QueryRow(ctx, query, email, max).Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

func (r *PgVerificationCodeRepository) Delete(ctx context.Context, email string) error {
	const query = `DELETE FROM verification_codes WHERE email = $1`
	_, err := r.pool.Exec(ctx, query, email)
	return err
}

func (r *PgVerificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM verification_codes WHERE expires_at < $1`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
