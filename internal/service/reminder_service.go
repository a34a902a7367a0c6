package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"candidash/internal/domain"
	"candidash/internal/email"
	"candidash/internal/repository"
)

const dueReminderBatch = 100

// ReminderRunResult resume una pasada del job de recordatorios.
type ReminderRunResult struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// CreateReminderInput crea un recordatorio para una candidatura existente.
type CreateReminderInput struct {
	JobTrackID string `json:"jobTrackId"`
	ReminderFields
}

// ReminderService gestiona los recordatorios y envia los vencidos.
// El acceso a un recordatorio pasa siempre por la candidatura duena.
type ReminderService struct {
	logger    *zap.Logger
	reminders repository.ReminderRepository
	tracks    *JobTrackService
	sender    email.Sender
	now       func() time.Time
}

func NewReminderService(logger *zap.Logger, reminders repository.ReminderRepository, tracks *JobTrackService, sender email.Sender) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		logger:    logger,
		reminders: reminders,
		tracks:    tracks,
		sender:    sender,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReminderService) Create(ctx context.Context, userID string, in CreateReminderInput) (domain.Reminder, error) {
	if !in.complete() {
		return domain.Reminder{}, fmt.Errorf("%w: frequency and nextReminderAt are required", ErrInvalidReminder)
	}
	if _, err := s.tracks.Get(ctx, in.JobTrackID, userID); err != nil {
		return domain.Reminder{}, err
	}
	reminder, err := buildReminder(in.JobTrackID, in.ReminderFields, s.now(), ErrInvalidReminder)
	if err != nil {
		return domain.Reminder{}, err
	}
	if err := s.reminders.Create(ctx, reminder); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Reminder{}, ErrReminderExists
		}
		return domain.Reminder{}, fmt.Errorf("create reminder: %w", err)
	}
	return reminder, nil
}

// ListActive devuelve los recordatorios activos del usuario, el mas proximo primero.
func (s *ReminderService) ListActive(ctx context.Context, userID string) ([]domain.Reminder, error) {
	reminders, err := s.reminders.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active reminders: %w", err)
	}
	return nonNilReminders(reminders), nil
}

func (s *ReminderService) ListByJobTrack(ctx context.Context, jobTrackID, userID string) ([]domain.Reminder, error) {
	if _, err := s.tracks.Get(ctx, jobTrackID, userID); err != nil {
		return nil, err
	}
	reminders, err := s.reminders.ListByJobTrack(ctx, jobTrackID)
	if err != nil {
		return nil, fmt.Errorf("list job track reminders: %w", err)
	}
	return nonNilReminders(reminders), nil
}

// Get devuelve el recordatorio si su candidatura pertenece al usuario.
func (s *ReminderService) Get(ctx context.Context, id, userID string) (domain.Reminder, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Reminder{}, ErrReminderNotFound
	}
	reminder, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reminder{}, ErrReminderNotFound
		}
		return domain.Reminder{}, fmt.Errorf("load reminder: %w", err)
	}
	if _, err := s.tracks.Get(ctx, reminder.JobTrackID, userID); err != nil {
		if errors.Is(err, ErrJobTrackNotFound) {
			return domain.Reminder{}, ErrReminderNotFound
		}
		return domain.Reminder{}, err
	}
	return reminder, nil
}

// Update aplica una actualizacion parcial de frecuencia, fecha y estado.
func (s *ReminderService) Update(ctx context.Context, id, userID string, fields ReminderFields) (domain.Reminder, error) {
	existing, err := s.Get(ctx, id, userID)
	if err != nil {
		return domain.Reminder{}, err
	}
	updated, err := patchReminder(existing, fields, s.now(), ErrInvalidReminder)
	if err != nil {
		return domain.Reminder{}, err
	}
	if err := s.reminders.Update(ctx, updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reminder{}, ErrReminderNotFound
		}
		return domain.Reminder{}, fmt.Errorf("update reminder: %w", err)
	}
	return updated, nil
}

// MarkSent registra un envio manual y programa el siguiente a now + frecuencia.
func (s *ReminderService) MarkSent(ctx context.Context, id, userID string) (domain.Reminder, error) {
	reminder, err := s.Get(ctx, id, userID)
	if err != nil {
		return domain.Reminder{}, err
	}
	now := s.now()
	next := now.AddDate(0, 0, reminder.FrequencyDays)
	if err := s.reminders.MarkSent(ctx, reminder.ID, now, next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reminder{}, ErrReminderNotFound
		}
		return domain.Reminder{}, fmt.Errorf("mark reminder sent: %w", err)
	}
	reminder.LastSentAt = &now
	reminder.NextReminderAt = next
	reminder.UpdatedAt = now
	return reminder, nil
}

func (s *ReminderService) Delete(ctx context.Context, id, userID string) (domain.Reminder, error) {
	reminder, err := s.Get(ctx, id, userID)
	if err != nil {
		return domain.Reminder{}, err
	}
	if err := s.reminders.Delete(ctx, reminder.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reminder{}, ErrReminderNotFound
		}
		return domain.Reminder{}, fmt.Errorf("delete reminder: %w", err)
	}
	return reminder, nil
}

// Stats cuenta los recordatorios activos de todos los usuarios.
// "Hoy" termina a las 23:59:59 UTC y "semana" son los proximos 7 dias.
func (s *ReminderService) Stats(ctx context.Context) (domain.ReminderStats, error) {
	now := s.now()
	y, m, d := now.Date()
	endOfDay := time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	stats, err := s.reminders.Stats(ctx, now, endOfDay, now.AddDate(0, 0, 7))
	if err != nil {
		return domain.ReminderStats{}, fmt.Errorf("reminder stats: %w", err)
	}
	return stats, nil
}

// ProcessDue envia hasta 100 recordatorios activos vencidos y reprograma cada uno.
// Un fallo de envio deja el recordatorio intacto para la siguiente pasada.
func (s *ReminderService) ProcessDue(ctx context.Context) (ReminderRunResult, error) {
	now := s.now()
	due, err := s.reminders.ListDue(ctx, now, dueReminderBatch)
	if err != nil {
		return ReminderRunResult{}, fmt.Errorf("list due reminders: %w", err)
	}

	result := ReminderRunResult{Processed: len(due)}
	for _, d := range due {
		if ctx.Err() != nil {
			result.Failed += result.Processed - result.Successful - result.Failed
			return result, ctx.Err()
		}

		company := d.JobTrack.Company
		if company == "" {
			company = "Unspecified company"
		}
		err := s.sender.SendReminder(ctx, email.ReminderEmail{
			ToEmail:   d.UserEmail,
			UserName:  d.Username,
			JobTitle:  d.JobTrack.Title,
			Company:   company,
			AppliedAt: d.JobTrack.AppliedAt,
		})
		if err != nil {
			result.Failed++
			s.logger.Warn("reminder email failed", zap.String("reminder_id", d.Reminder.ID), zap.Error(err))
			continue
		}

		next := now.AddDate(0, 0, d.Reminder.FrequencyDays)
		if err := s.reminders.MarkSent(ctx, d.Reminder.ID, now, next); err != nil {
			result.Failed++
			s.logger.Error("reminder reschedule failed", zap.String("reminder_id", d.Reminder.ID), zap.Error(err))
			continue
		}
		result.Successful++
	}

	if result.Processed > 0 {
		s.logger.Info("reminders processed",
			zap.Int("processed", result.Processed),
			zap.Int("successful", result.Successful),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

func nonNilReminders(reminders []domain.Reminder) []domain.Reminder {
	if reminders == nil {
		return []domain.Reminder{}
	}
	return reminders
}

func buildReminder(trackID string, f ReminderFields, now time.Time, invalid error) (domain.Reminder, error) {
	r := domain.Reminder{
		ID:         uuid.NewString(),
		JobTrackID: trackID,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return patchReminder(r, f, now, invalid)
}

// patchReminder aplica los campos presentes; invalid es el error de validacion del llamador.
func patchReminder(r domain.Reminder, f ReminderFields, now time.Time, invalid error) (domain.Reminder, error) {
	if f.Frequency != nil {
		if *f.Frequency < 1 {
			return domain.Reminder{}, fmt.Errorf("%w: frequency must be at least 1 day", invalid)
		}
		r.FrequencyDays = *f.Frequency
	}
	if f.NextReminderAt != nil {
		r.NextReminderAt = f.NextReminderAt.UTC()
	}
	if f.IsActive != nil {
		r.IsActive = *f.IsActive
	}
	r.UpdatedAt = now
	return r, nil
}
