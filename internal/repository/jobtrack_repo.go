package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"candidash/internal/domain"
)

// JobTrackRepository define la persistencia de candidaturas y su recordatorio.
type JobTrackRepository interface {
	Create(ctx context.Context, track domain.JobTrack) error
	CreateWithReminder(ctx context.Context, track domain.JobTrack, reminder domain.Reminder) error
	GetByID(ctx context.Context, id string) (domain.JobTrack, error)
	ListByUser(ctx context.Context, userID string, status domain.JobStatus) ([]domain.JobTrack, error)
	Update(ctx context.Context, track domain.JobTrack) error
	// UpdateWithReminder actualiza la candidatura y crea o reemplaza su recordatorio.
	UpdateWithReminder(ctx context.Context, track domain.JobTrack, reminder domain.Reminder) error
	Delete(ctx context.Context, id string) error
	SetDocument(ctx context.Context, id string, kind domain.DocumentKind, fileName string) error
}

type PgJobTrackRepository struct {
	pool *pgxpool.Pool
}

func NewPgJobTrackRepository(pool *pgxpool.Pool) *PgJobTrackRepository {
	return &PgJobTrackRepository{pool: pool}
}

const jobTrackSelect = `
	SELECT
		j.id, j.user_id, j.title, COALESCE(j.company, ''), COALESCE(j.job_url, ''),
		j.applied_at, j.status, COALESCE(j.contract_type, ''), COALESCE(j.notes, ''),
		COALESCE(j.cv_file_name, ''), COALESCE(j.lm_file_name, ''),
		j.created_at, j.updated_at,
		r.id, r.frequency_days, r.next_reminder_at, r.last_sent_at, r.is_active,
		r.created_at, r.updated_at
	FROM job_tracks j
	LEFT JOIN reminders r ON r.job_track_id = j.id
`

func scanJobTrack(row pgx.Row) (domain.JobTrack, error) {
	var (
		j            domain.JobTrack
		reminderID   *string
		frequency    *int
		nextReminder *time.Time
		isActive     *bool
		rCreated     *time.Time
		rUpdated     *time.Time
		lastSent     *time.Time
	)
	err := row.Scan(
		&j.ID, &j.UserID, &j.Title, &j.Company, &j.JobURL,
		&j.AppliedAt, &j.Status, &j.ContractType, &j.Notes,
		&j.CVFileName, &j.LMFileName,
		&j.CreatedAt, &j.UpdatedAt,
		&reminderID, &frequency, &nextReminder, &lastSent, &isActive,
		&rCreated, &rUpdated,
	)
	if err != nil {
		return domain.JobTrack{}, err
	}
	if reminderID != nil {
		j.Reminder = &domain.Reminder{
			ID:             *reminderID,
			JobTrackID:     j.ID,
			FrequencyDays:  *frequency,
			NextReminderAt: *nextReminder,
			LastSentAt:     lastSent,
			IsActive:       *isActive,
			CreatedAt:      *rCreated,
			UpdatedAt:      *rUpdated,
		}
	}
	return j, nil
}

func (r *PgJobTrackRepository) Create(ctx context.Context, track domain.JobTrack) error {
	return insertJobTrack(ctx, r.pool, track)
}

func (r *PgJobTrackRepository) CreateWithReminder(ctx context.Context, track domain.JobTrack, reminder domain.Reminder) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertJobTrack(ctx, tx, track); err != nil {
			return err
		}
		return upsertReminder(ctx, tx, reminder)
	})
}

func (r *PgJobTrackRepository) GetByID(ctx context.Context, id string) (domain.JobTrack, error) {
	return scanJobTrack(r.pool.QueryRow(ctx, jobTrackSelect+` WHERE j.id = $1`, id))
}

func (r *PgJobTrackRepository) ListByUser(ctx context.Context, userID string, status domain.JobStatus) ([]domain.JobTrack, error) {
	query := jobTrackSelect + ` WHERE j.user_id = $1 AND ($2 = '' OR j.status = $2) ORDER BY j.created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []domain.JobTrack
	for rows.Next() {
		j, err := scanJobTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, j)
	}
	return tracks, rows.Err()
}

func (r *PgJobTrackRepository) Update(ctx context.Context, track domain.JobTrack) error {
	return updateJobTrack(ctx, r.pool, track)
}

func (r *PgJobTrackRepository) UpdateWithReminder(ctx context.Context, track domain.JobTrack, reminder domain.Reminder) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := updateJobTrack(ctx, tx, track); err != nil {
			return err
		}
		return upsertReminder(ctx, tx, reminder)
	})
}

func (r *PgJobTrackRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM job_tracks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgJobTrackRepository) SetDocument(ctx context.Context, id string, kind domain.DocumentKind, fileName string) error {
	var column string
	switch kind {
	case domain.DocumentCV:
		column = "cv_file_name"
	case domain.DocumentLM:
		column = "lm_file_name"
	default:
		return fmt.Errorf("unknown document kind %q", kind)
	}
	query := `UPDATE job_tracks SET ` + column + ` = NULLIF($2, ''), updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, fileName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertJobTrack(ctx context.Context, db execer, track domain.JobTrack) error {
	const query = `
		INSERT INTO job_tracks (
			id, user_id, title, company, job_url, applied_at, status,
			contract_type, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
	`
	_, err := db.Exec(ctx, query,
		track.ID,
		track.UserID,
		track.Title,
		track.Company,
		track.JobURL,
		track.AppliedAt,
		track.Status,
		track.ContractType,
		track.Notes,
		track.CreatedAt,
		track.UpdatedAt,
	)
	return err
}

func updateJobTrack(ctx context.Context, db execer, track domain.JobTrack) error {
	const query = `
		UPDATE job_tracks SET
			title = $2,
			company = NULLIF($3, ''),
			job_url = NULLIF($4, ''),
			applied_at = $5,
			status = $6,
			contract_type = NULLIF($7, ''),
			notes = NULLIF($8, ''),
			updated_at = $9
		WHERE id = $1
	`
	tag, err := db.Exec(ctx, query,
		track.ID,
		track.Title,
		track.Company,
		track.JobURL,
		track.AppliedAt,
		track.Status,
		track.ContractType,
		track.Notes,
		track.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func upsertReminder(ctx context.Context, db execer, reminder domain.Reminder) error {
	const query = `
		INSERT INTO reminders (
			id, job_track_id, frequency_days, next_reminder_at, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (job_track_id) DO UPDATE SET
			frequency_days = EXCLUDED.frequency_days,
			next_reminder_at = EXCLUDED.next_reminder_at,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`
	_, err := db.Exec(ctx, query,
		reminder.ID,
		reminder.JobTrackID,
		reminder.FrequencyDays,
		reminder.NextReminderAt,
		reminder.IsActive,
		reminder.UpdatedAt,
	)
	return err
}
