package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"candidash/internal/service"
)

// ReminderProcessor envia los recordatorios vencidos.
type ReminderProcessor interface {
	ProcessDue(ctx context.Context) (service.ReminderRunResult, error)
}

// Cleaner borra registros caducados y devuelve cuantos elimino.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

func NewReminderWorker(reminders ReminderProcessor, interval time.Duration, logger *zap.Logger) *Worker {
	return NewWorker("reminders", interval, func(ctx context.Context) error {
		_, err := reminders.ProcessDue(ctx)
		return err
	}, logger)
}

// NewCleanupWorker purga registros pendientes y codigos de verificacion caducados.
func NewCleanupWorker(pending, codes Cleaner, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewWorker("cleanup", interval, func(ctx context.Context) error {
		var errs []error
		users, err := pending.CleanupExpired(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("pending users: %w", err))
		}
		expired, err := codes.CleanupExpired(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("verification codes: %w", err))
		}
		if users > 0 || expired > 0 {
			logger.Info("cleanup finished",
				zap.Int64("pending_users", users),
				zap.Int64("verification_codes", expired),
			)
		}
		return errors.Join(errs...)
	}, logger)
}

// Scheduler agrupa los workers de fondo de la API.
type Scheduler struct {
	workers []*Worker
}

func New(workers ...*Worker) *Scheduler {
	return &Scheduler{workers: workers}
}

func (s *Scheduler) Start(ctx context.Context) {
	for _, w := range s.workers {
		w.Start(ctx)
	}
}

func (s *Scheduler) Stop() {
	for _, w := range s.workers {
		w.Stop()
	}
}
