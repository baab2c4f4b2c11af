package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/observability"
	"go.uber.org/zap"
)

// ReminderSender is the part of the settlement service the reminder sweep needs.
type ReminderSender interface {
	SendDueReminders(ctx context.Context, limit int32) (int, error)
}

// ReminderWorker periodically reminds group members who have not paid their
// share. Running several instances is safe because the reminder gate
// suppresses duplicates within its cooldown.
type ReminderWorker struct {
	sender    ReminderSender
	interval  time.Duration
	batchSize int32
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewReminderWorker creates a worker that sweeps hourly, 50 sessions at a time.
func NewReminderWorker(sender ReminderSender) *ReminderWorker {
	return &ReminderWorker{
		sender:    sender,
		interval:  time.Hour,
		batchSize: 50,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval sets the sweep interval.
func (w *ReminderWorker) WithInterval(interval time.Duration) *ReminderWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithBatchSize caps how many sessions one sweep visits.
func (w *ReminderWorker) WithBatchSize(size int32) *ReminderWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and sweeps at the configured interval until stopped.
func (w *ReminderWorker) Start(ctx context.Context) {
	zap.L().Info("reminder worker starting", zap.Duration("interval", w.interval), zap.Int32("batch", w.batchSize))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reminder worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reminder worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop signals the worker to stop. It is safe to call more than once.
func (w *ReminderWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReminderWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// ProcessOnce runs a single sweep immediately.
func (w *ReminderWorker) ProcessOnce(ctx context.Context) (int, error) {
	return w.sender.SendDueReminders(ctx, w.batchSize)
}

func (w *ReminderWorker) runOnce(ctx context.Context) {
	sent, err := w.ProcessOnce(ctx)
	if err != nil {
		observability.IncrementWorkerRun("reminders", "failed")
		zap.L().Error("reminder sweep failed", zap.Int("sent", sent), zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("reminders", "success")
	if sent > 0 {
		zap.L().Info("reminder sweep complete", zap.Int("sent", sent))
	}
}

func (w *ReminderWorker) String() string {
	return fmt.Sprintf("ReminderWorker(interval=%v, batch=%d)", w.interval, w.batchSize)
}
