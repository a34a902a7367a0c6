package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"candidash/internal/domain"
)

// PendingUserRepository persiste registros pendientes de confirmacion.
type PendingUserRepository interface {
	Upsert(ctx context.Context, pending domain.PendingUser) error
	GetByEmail(ctx context.Context, email string) (domain.PendingUser, error)
	Delete(ctx context.Context, email string) error
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type PgPendingUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgPendingUserRepository(pool *pgxpool.Pool) *PgPendingUserRepository {
	return &PgPendingUserRepository{pool: pool}
}

func (r *PgPendingUserRepository) Upsert(ctx context.Context, pending domain.PendingUser) error {
	const query = `
		INSERT INTO pending_users (email, password_hash, username, verified, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), FALSE, $4, $4)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			username = EXCLUDED.username,
			verified = FALSE,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		pending.Email,
		pending.PasswordHash,
		pending.Username,
		pending.UpdatedAt,
	)
	return err
}

func (r *PgPendingUserRepository) GetByEmail(ctx context.Context, email string) (domain.PendingUser, error) {
	const query = `
		SELECT email, password_hash, COALESCE(username, ''), verified, created_at, updated_at
		FROM pending_users
		WHERE email = $1
	`
	var p domain.PendingUser
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&p.Email,
		&p.PasswordHash,
		&p.Username,
		&p.Verified,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.PendingUser{}, err
	}
	return p, nil
}

func (r *PgPendingUserRepository) Delete(ctx context.Context, email string) error {
	const query = `DELETE FROM pending_users WHERE email = $1`
	_, err := r.pool.Exec(ctx, query, email)
	return err
}

func (r *PgPendingUserRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM pending_users WHERE created_at < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
