package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/service-ticket/internal/service"
)

// AutomationWorker runs the status sweep on a fixed interval.
type AutomationWorker struct {
	automation *service.AutomationService
	interval   time.Duration
	logger     *zap.Logger
}

// NewAutomationWorker builds the worker. A non-positive interval disables it.
func NewAutomationWorker(automation *service.AutomationService, interval time.Duration, logger *zap.Logger) *AutomationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutomationWorker{automation: automation, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *AutomationWorker) Run(ctx context.Context) {
	if w.interval <= 0 || w.automation == nil {
		w.logger.Info("automation worker disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("automation worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.automation.Run(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("automation sweep failed", zap.Error(err))
			}
		}
	}
}
