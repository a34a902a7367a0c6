package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task es el trabajo que ejecuta un Worker en cada tick.
type Task func(ctx context.Context) error

// Worker ejecuta una Task en cada multiplo de interval del reloj (cada hora en
// punto con interval = time.Hour) hasta Stop o cancelacion del contexto.
type Worker struct {
	name     string
	interval time.Duration
	task     Task
	logger   *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWorker(name string, interval time.Duration, task Task, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger.With(zap.String("worker", name)),
		stopChan: make(chan struct{}),
	}
}

// Start lanza el bucle en una goroutine y vuelve de inmediato.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

func (w *Worker) run(ctx context.Context) {
	w.logger.Info("starting worker", zap.Duration("interval", w.interval))

	timer := time.NewTimer(time.Until(nextRun(time.Now(), w.interval)))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			w.runOnce(ctx)
			timer.Reset(time.Until(nextRun(time.Now(), w.interval)))
		case <-w.stopChan:
			w.logger.Info("stopping worker")
			return
		case <-ctx.Done():
			w.logger.Info("context cancelled, stopping worker")
			return
		}
	}
}

// nextRun devuelve el siguiente limite de interval estrictamente posterior a now.
func nextRun(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}

func (w *Worker) runOnce(ctx context.Context) {
	start := time.Now()
	if err := w.task(ctx); err != nil {
		w.logger.Error("worker run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	w.logger.Debug("worker run finished", zap.Duration("elapsed", time.Since(start)))
}

// Stop detiene el bucle y espera a que termine la ejecucion en curso.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}
