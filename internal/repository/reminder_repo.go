package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"candidash/internal/domain"
)

// ReminderRepository persiste los recordatorios y expone las consultas del job.
// Cada candidatura tiene como mucho un recordatorio.
type ReminderRepository interface {
	// Create devuelve ErrDuplicate si la candidatura ya tiene recordatorio.
	Create(ctx context.Context, reminder domain.Reminder) error
	GetByID(ctx context.Context, id string) (domain.Reminder, error)
	ListByJobTrack(ctx context.Context, jobTrackID string) ([]domain.Reminder, error)
	ListActiveByUser(ctx context.Context, userID string) ([]domain.Reminder, error)
	Update(ctx context.Context, reminder domain.Reminder) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, now, endOfDay, endOfWeek time.Time) (domain.ReminderStats, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.DueReminder, error)
	MarkSent(ctx context.Context, id string, sentAt, next time.Time) error
}

type PgReminderRepository struct {
	pool *pgxpool.Pool
}

func NewPgReminderRepository(pool *pgxpool.Pool) *PgReminderRepository {
	return &PgReminderRepository{pool: pool}
}

const reminderColumns = `
	r.id, r.job_track_id, r.frequency_days, r.next_reminder_at, r.last_sent_at,
	r.is_active, r.created_at, r.updated_at
`

func scanReminder(row pgx.Row) (domain.Reminder, error) {
	var rm domain.Reminder
	err := row.Scan(
		&rm.ID,
		&rm.JobTrackID,
		&rm.FrequencyDays,
		&rm.NextReminderAt,
		&rm.LastSentAt,
		&rm.IsActive,
		&rm.CreatedAt,
		&rm.UpdatedAt,
	)
	return rm, err
}

func (r *PgReminderRepository) Create(ctx context.Context, reminder domain.Reminder) error {
	const query = `
		INSERT INTO reminders (
			id, job_track_id, frequency_days, next_reminder_at, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		reminder.ID,
		reminder.JobTrackID,
		reminder.FrequencyDays,
		reminder.NextReminderAt,
		reminder.IsActive,
		reminder.CreatedAt,
		reminder.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *PgReminderRepository) GetByID(ctx context.Context, id string) (domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders r WHERE r.id = $1`
	return scanReminder(r.pool.QueryRow(ctx, query, id))
}

func (r *PgReminderRepository) ListByJobTrack(ctx context.Context, jobTrackID string) ([]domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders r WHERE r.job_track_id = $1 ORDER BY r.next_reminder_at`
	return r.list(ctx, query, jobTrackID)
}

func (r *PgReminderRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders r
		JOIN job_tracks j ON j.id = r.job_track_id
		WHERE j.user_id = $1 AND r.is_active
		ORDER BY r.next_reminder_at
	`
	return r.list(ctx, query, userID)
}

func (r *PgReminderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Reminder, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		rm, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, rm)
	}
	return reminders, rows.Err()
}

func (r *PgReminderRepository) Update(ctx context.Context, reminder domain.Reminder) error {
	const query = `
		UPDATE reminders SET
			frequency_days = $2,
			next_reminder_at = $3,
			is_active = $4,
			updated_at = $5
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		reminder.ID,
		reminder.FrequencyDays,
		reminder.NextReminderAt,
		reminder.IsActive,
		reminder.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgReminderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgReminderRepository) Stats(ctx context.Context, now, endOfDay, endOfWeek time.Time) (domain.ReminderStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE next_reminder_at <= $1),
			COUNT(*) FILTER (WHERE next_reminder_at <= $2),
			COUNT(*) FILTER (WHERE next_reminder_at <= $3)
		FROM reminders
		WHERE is_active
	`
	var st domain.ReminderStats
	err := r.pool.QueryRow(ctx, query, now, endOfDay, endOfWeek).Scan(
		&st.TotalActive,
		&st.DueNow,
		&st.DueToday,
		&st.DueThisWeek,
	)
	return st, err
}

func (r *PgReminderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.DueReminder, error) {
	const query = `
		SELECT
			r.id, r.job_track_id, r.frequency_days, r.next_reminder_at, r.last_sent_at,
			r.is_active, r.created_at, r.updated_at,
			j.id, j.user_id, j.title, COALESCE(j.company, ''), j.status, j.applied_at,
			u.email, COALESCE(u.username, '')
		FROM reminders r
		JOIN job_tracks j ON j.id = r.job_track_id
		JOIN users u ON u.id = j.user_id
		WHERE r.is_active AND r.next_reminder_at <= $1
		ORDER BY r.next_reminder_at
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []domain.DueReminder
	for rows.Next() {
		var d domain.DueReminder
		if err := rows.Scan(
			&d.Reminder.ID,
			&d.Reminder.JobTrackID,
			&d.Reminder.FrequencyDays,
			&d.Reminder.NextReminderAt,
			&d.Reminder.LastSentAt,
			&d.Reminder.IsActive,
			&d.Reminder.CreatedAt,
			&d.Reminder.UpdatedAt,
			&d.JobTrack.ID,
			&d.JobTrack.UserID,
			&d.JobTrack.Title,
			&d.JobTrack.Company,
			&d.JobTrack.Status,
			&d.JobTrack.AppliedAt,
			&d.UserEmail,
			&d.Username,
		); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (r *PgReminderRepository) MarkSent(ctx context.Context, id string, sentAt, next time.Time) error {
	const query = `
		UPDATE reminders SET last_sent_at = $2, next_reminder_at = $3, updated_at = $2
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, sentAt, next)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
