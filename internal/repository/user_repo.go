package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"candidash/internal/domain"
)

// ErrDuplicate indica una violacion de unicidad en la base.
var ErrDuplicate = errors.New("duplicate key")

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// UserRepository define el contrato de persistencia para usuarios.
// Las actualizaciones sobre un id inexistente devuelven pgx.ErrNoRows.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string) (domain.User, error)
	// List devuelve todos los usuarios, los mas recientes primero.
	List(ctx context.Context) ([]domain.User, error)
	// UpdateProfile devuelve ErrDuplicate si el email ya esta en uso.
	UpdateProfile(ctx context.Context, id, email, username string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetRefreshToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	// RotateRefreshToken reemplaza el hash solo si sigue siendo previousHash.
	RotateRefreshToken(ctx context.Context, id, previousHash, tokenHash string, expiresAt time.Time) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string) error
	SetTOTPSecret(ctx context.Context, id, ciphertext string) error
	EnableTOTP(ctx context.Context, id string, recoveryHashes []string) error
	DisableTOTP(ctx context.Context, id string) error
	// ReplaceRecoveryCodes escribe next solo si la lista guardada sigue siendo expected.
	ReplaceRecoveryCodes(ctx context.Context, id string, expected, next []string) (bool, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id, email, COALESCE(username, ''), password_hash, role,
	COALESCE(refresh_token_hash, ''), refresh_token_expires,
	COALESCE(reset_token_hash, ''), reset_token_expires,
	COALESCE(totp_secret, ''), totp_enabled, totp_recovery_codes,
	created_at, updated_at
`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.Role,
		&u.RefreshTokenHash,
		&u.RefreshTokenExpires,
		&u.ResetTokenHash,
		&u.ResetTokenExpires,
		&u.TOTPSecret,
		&u.TOTPEnabled,
		&u.TOTPRecoveryCodes,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, username, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token_hash = $1`
	return scanUser(r.pool.QueryRow(ctx, query, tokenHash))
}

func (r *PgUserRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, id, email, username string) error {
	const query = `
		UPDATE users SET email = $2, username = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1
	`
	err := r.execOne(ctx, query, id, email, username)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `
		UPDATE users SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PgUserRepository) SetRefreshToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users SET refresh_token_hash = $2, refresh_token_expires = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, tokenHash, expiresAt)
}

func (r *PgUserRepository) RotateRefreshToken(ctx context.Context, id, previousHash, tokenHash string, expiresAt time.Time) (bool, error) {
	const query = `
		UPDATE users SET refresh_token_hash = $3, refresh_token_expires = $4, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, previousHash, tokenHash, expiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgUserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	const query = `
		UPDATE users SET refresh_token_hash = NULL, refresh_token_expires = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id)
}

func (r *PgUserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users SET reset_token_hash = $2, reset_token_expires = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, tokenHash, expiresAt)
}

func (r *PgUserRepository) ResetPassword(ctx context.Context, id, passwordHash string) error {
	const query = `
		UPDATE users SET
			password_hash = $2,
			reset_token_hash = NULL,
			reset_token_expires = NULL,
			refresh_token_hash = NULL,
			refresh_token_expires = NULL,
			updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PgUserRepository) SetTOTPSecret(ctx context.Context, id, ciphertext string) error {
	const query = `
		UPDATE users SET totp_secret = $2, totp_enabled = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, ciphertext)
}

func (r *PgUserRepository) EnableTOTP(ctx context.Context, id string, recoveryHashes []string) error {
	const query = `
		UPDATE users SET totp_enabled = TRUE, totp_recovery_codes = $2, updated_at = NOW()
		WHERE id = $1 AND totp_secret IS NOT NULL
	`
	return r.execOne(ctx, query, id, recoveryHashes)
}

func (r *PgUserRepository) DisableTOTP(ctx context.Context, id string) error {
	const query = `
		UPDATE users SET
			totp_secret = NULL,
			totp_enabled = FALSE,
			totp_recovery_codes = '{}',
			updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id)
}

func (r *PgUserRepository) ReplaceRecoveryCodes(ctx context.Context, id string, expected, next []string) (bool, error) {
	const query = `
		UPDATE users SET totp_recovery_codes = $3, updated_at = NOW()
		WHERE id = $1 AND totp_recovery_codes = $2
	`
	if next == nil {
		next = []string{}
	}
	tag, err := r.pool.Exec(ctx, query, id, expected, next)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgUserRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
