package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"candidash/internal/domain"
	"candidash/internal/repository"
)

// JobTrackFields son los campos editables de una candidatura. nil = sin cambio.
type JobTrackFields struct {
	Title        *string              `json:"title"`
	Company      *string              `json:"company"`
	JobURL       *string              `json:"jobUrl"`
	AppliedAt    *time.Time           `json:"appliedAt"`
	Status       *domain.JobStatus    `json:"status"`
	ContractType *domain.ContractType `json:"contractType"`
	Notes        *string              `json:"notes"`
}

// ReminderFields son los campos editables del recordatorio. nil = sin cambio.
type ReminderFields struct {
	Frequency      *int       `json:"frequency"`
	NextReminderAt *time.Time `json:"nextReminderAt"`
	IsActive       *bool      `json:"isActive"`
}

func (r ReminderFields) empty() bool {
	return r.Frequency == nil && r.NextReminderAt == nil && r.IsActive == nil
}

func (r ReminderFields) complete() bool {
	return r.Frequency != nil && r.NextReminderAt != nil
}

// JobTrackWithReminderInput compone ambos grupos de campos.
type JobTrackWithReminderInput struct {
	JobTrack JobTrackFields
	Reminder ReminderFields
}

// JobTrackService gestiona las candidaturas de cada usuario.
type JobTrackService struct {
	logger *zap.Logger
	tracks repository.JobTrackRepository
	now    func() time.Time
}

func NewJobTrackService(logger *zap.Logger, tracks repository.JobTrackRepository) *JobTrackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobTrackService{
		logger: logger,
		tracks: tracks,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *JobTrackService) Create(ctx context.Context, userID string, fields JobTrackFields) (domain.JobTrack, error) {
	track, err := s.newTrack(uuid.NewString(), userID, fields, true)
	if err != nil {
		return domain.JobTrack{}, err
	}
	if err := s.tracks.Create(ctx, track); err != nil {
		return domain.JobTrack{}, fmt.Errorf("create job track: %w", err)
	}
	return track, nil
}

// CreateWithReminder crea la candidatura y su recordatorio en una transaccion.
func (s *JobTrackService) CreateWithReminder(ctx context.Context, userID string, in JobTrackWithReminderInput) (domain.JobTrack, error) {
	if !in.Reminder.complete() {
		return domain.JobTrack{}, fmt.Errorf("%w: frequency and nextReminderAt are required", ErrInvalidJobTrack)
	}
	track, err := s.newTrack(uuid.NewString(), userID, in.JobTrack, true)
	if err != nil {
		return domain.JobTrack{}, err
	}
	reminder, err := s.newReminder(track.ID, in.Reminder)
	if err != nil {
		return domain.JobTrack{}, err
	}
	if err := s.tracks.CreateWithReminder(ctx, track, reminder); err != nil {
		return domain.JobTrack{}, fmt.Errorf("create job track with reminder: %w", err)
	}
	track.Reminder = &reminder
	return track, nil
}

func (s *JobTrackService) List(ctx context.Context, userID string) ([]domain.JobTrack, error) {
	return s.list(ctx, userID, "")
}

func (s *JobTrackService) ListByStatus(ctx context.Context, userID string, status domain.JobStatus) ([]domain.JobTrack, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidJobTrack, status)
	}
	return s.list(ctx, userID, status)
}

func (s *JobTrackService) list(ctx context.Context, userID string, status domain.JobStatus) ([]domain.JobTrack, error) {
	tracks, err := s.tracks.ListByUser(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list job tracks: %w", err)
	}
	if tracks == nil {
		tracks = []domain.JobTrack{}
	}
	return tracks, nil
}

// Get devuelve la candidatura si pertenece al usuario.
func (s *JobTrackService) Get(ctx context.Context, id, userID string) (domain.JobTrack, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.JobTrack{}, ErrJobTrackNotFound
	}
	track, err := s.tracks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.JobTrack{}, ErrJobTrackNotFound
		}
		return domain.JobTrack{}, fmt.Errorf("load job track: %w", err)
	}
	if track.UserID != userID {
		return domain.JobTrack{}, ErrForbidden
	}
	return track, nil
}

// Update aplica una actualizacion parcial. Con upsert crea la candidatura si no existe.
func (s *JobTrackService) Update(ctx context.Context, id, userID string, fields JobTrackFields, upsert bool) (domain.JobTrack, error) {
	existing, err := s.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrJobTrackNotFound) && upsert {
			return s.upsertCreate(ctx, id, userID, JobTrackWithReminderInput{JobTrack: fields})
		}
		return domain.JobTrack{}, err
	}

	updated, err := s.applyFields(existing, fields)
	if err != nil {
		return domain.JobTrack{}, err
	}
	if err := s.tracks.Update(ctx, updated); err != nil {
		return domain.JobTrack{}, fmt.Errorf("update job track: %w", err)
	}
	return updated, nil
}

// UpdateWithReminder actualiza la candidatura y crea o modifica su recordatorio.
func (s *JobTrackService) UpdateWithReminder(ctx context.Context, id, userID string, in JobTrackWithReminderInput, upsert bool) (domain.JobTrack, error) {
	existing, err := s.Get(ctx, id, userID)
	if err != nil {
		if errors.Is(err, ErrJobTrackNotFound) && upsert {
			return s.upsertCreate(ctx, id, userID, in)
		}
		return domain.JobTrack{}, err
	}

	updated, err := s.applyFields(existing, in.JobTrack)
	if err != nil {
		return domain.JobTrack{}, err
	}

	var reminder *domain.Reminder
	switch {
	case in.Reminder.empty():
	case existing.Reminder != nil:
		r, err := s.applyReminderFields(*existing.Reminder, in.Reminder)
		if err != nil {
			return domain.JobTrack{}, err
		}
		reminder = &r
	case in.Reminder.complete():
		r, err := s.newReminder(existing.ID, in.Reminder)
		if err != nil {
			return domain.JobTrack{}, err
		}
		reminder = &r
	}

	if reminder == nil {
		if err := s.tracks.Update(ctx, updated); err != nil {
			return domain.JobTrack{}, fmt.Errorf("update job track: %w", err)
		}
		return updated, nil
	}
	if err := s.tracks.UpdateWithReminder(ctx, updated, *reminder); err != nil {
		return domain.JobTrack{}, fmt.Errorf("update job track with reminder: %w", err)
	}
	updated.Reminder = reminder
	return updated, nil
}

func (s *JobTrackService) Delete(ctx context.Context, id, userID string) (domain.JobTrack, error) {
	track, err := s.Get(ctx, id, userID)
	if err != nil {
		return domain.JobTrack{}, err
	}
	if err := s.tracks.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.JobTrack{}, ErrJobTrackNotFound
		}
		return domain.JobTrack{}, fmt.Errorf("delete job track: %w", err)
	}
	return track, nil
}

func (s *JobTrackService) upsertCreate(ctx context.Context, id, userID string, in JobTrackWithReminderInput) (domain.JobTrack, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.JobTrack{}, fmt.Errorf("%w: id must be a uuid", ErrInvalidJobTrack)
	}
	if in.JobTrack.Title == nil {
		title := "New Job"
		in.JobTrack.Title = &title
	}
	track, err := s.newTrack(id, userID, in.JobTrack, true)
	if err != nil {
		return domain.JobTrack{}, err
	}
	if !in.Reminder.complete() {
		if err := s.tracks.Create(ctx, track); err != nil {
			return domain.JobTrack{}, fmt.Errorf("create job track: %w", err)
		}
		return track, nil
	}
	reminder, err := s.newReminder(id, in.Reminder)
	if err != nil {
		return domain.JobTrack{}, err
	}
	if err := s.tracks.CreateWithReminder(ctx, track, reminder); err != nil {
		return domain.JobTrack{}, fmt.Errorf("create job track with reminder: %w", err)
	}
	track.Reminder = &reminder
	return track, nil
}

func (s *JobTrackService) newTrack(id, userID string, fields JobTrackFields, requireTitle bool) (domain.JobTrack, error) {
	if requireTitle && (fields.Title == nil || strings.TrimSpace(*fields.Title) == "") {
		return domain.JobTrack{}, fmt.Errorf("%w: title is required", ErrInvalidJobTrack)
	}
	now := s.now()
	track := domain.JobTrack{
		ID:        id,
		UserID:    userID,
		Status:    domain.JobStatusApplied,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.applyFields(track, fields)
}

func (s *JobTrackService) applyFields(track domain.JobTrack, f JobTrackFields) (domain.JobTrack, error) {
	if f.Title != nil {
		title := strings.TrimSpace(*f.Title)
		if title == "" {
			return domain.JobTrack{}, fmt.Errorf("%w: title is required", ErrInvalidJobTrack)
		}
		track.Title = title
	}
	if f.Company != nil {
		track.Company = strings.TrimSpace(*f.Company)
	}
	if f.JobURL != nil {
		raw := strings.TrimSpace(*f.JobURL)
		if raw != "" {
			if u, err := url.ParseRequestURI(raw); err != nil || u.Host == "" {
				return domain.JobTrack{}, fmt.Errorf("%w: invalid job url", ErrInvalidJobTrack)
			}
		}
		track.JobURL = raw
	}
	if f.AppliedAt != nil {
		applied := f.AppliedAt.UTC()
		track.AppliedAt = &applied
	}
	if f.Status != nil {
		if !f.Status.Valid() {
			return domain.JobTrack{}, fmt.Errorf("%w: unknown status %q", ErrInvalidJobTrack, *f.Status)
		}
		track.Status = *f.Status
	}
	if f.ContractType != nil {
		if *f.ContractType != "" && !f.ContractType.Valid() {
			return domain.JobTrack{}, fmt.Errorf("%w: unknown contract type %q", ErrInvalidJobTrack, *f.ContractType)
		}
		track.ContractType = *f.ContractType
	}
	if f.Notes != nil {
		track.Notes = *f.Notes
	}
	track.UpdatedAt = s.now()
	return track, nil
}

func (s *JobTrackService) newReminder(trackID string, f ReminderFields) (domain.Reminder, error) {
	return buildReminder(trackID, f, s.now(), ErrInvalidJobTrack)
}

func (s *JobTrackService) applyReminderFields(r domain.Reminder, f ReminderFields) (domain.Reminder, error) {
	return patchReminder(r, f, s.now(), ErrInvalidJobTrack)
}
