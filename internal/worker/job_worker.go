// Package worker runs background ticket jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/observability"
	"github.com/spec-kit/service-ticket/internal/queue"
	"github.com/spec-kit/service-ticket/internal/service"
)

const (
	defaultPollTimeout = 5 * time.Second
	errorBackoff       = time.Second
)

// JobWorker drains the job queue.
type JobWorker struct {
	queue       queue.Queue
	csv         *service.CSVService
	automation  *service.AutomationService
	metrics     *observability.Metrics
	logger      *zap.Logger
	pollTimeout time.Duration
}

// NewJobWorker wires the worker. metrics may be nil.
func NewJobWorker(q queue.Queue, csv *service.CSVService, automation *service.AutomationService, metrics *observability.Metrics, logger *zap.Logger) *JobWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobWorker{
		queue:       q,
		csv:         csv,
		automation:  automation,
		metrics:     metrics,
		logger:      logger,
		pollTimeout: defaultPollTimeout,
	}
}

// Run processes jobs until ctx is cancelled. A failed job is logged and dropped.
func (w *JobWorker) Run(ctx context.Context) {
	w.logger.Info("job worker started")
	defer w.logger.Info("job worker stopped")

	for {
		job, err := w.queue.Dequeue(ctx, w.pollTimeout)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, queue.ErrEmpty):
			continue
		case err != nil:
			w.logger.Error("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}

		if err := w.Process(ctx, *job); err != nil {
			w.logger.Error("job failed",
				zap.String("job_id", job.ID),
				zap.String("job_type", string(job.Type)),
				zap.Error(err))
		}
	}
}

// Process executes a single job.
func (w *JobWorker) Process(ctx context.Context, job queue.Job) (err error) {
	started := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		w.metrics.RecordJob(string(job.Type), outcome)
		w.logger.Info("job processed",
			zap.String("job_id", job.ID),
			zap.String("job_type", string(job.Type)),
			zap.String("outcome", outcome),
			zap.Duration("duration", time.Since(started)))
	}()

	switch job.Type {
	case queue.JobCSVExport:
		return w.export(ctx, job)
	case queue.JobCSVImport:
		return w.importFile(ctx, job)
	case queue.JobAutomation:
		if w.automation == nil {
			return errors.New("automation is not configured")
		}
		_, err := w.automation.Run(ctx)
		return err
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (w *JobWorker) export(ctx context.Context, job queue.Job) error {
	var payload queue.CSVExportPayload
	if err := job.DecodePayload(&payload); err != nil {
		return fmt.Errorf("decode export payload: %w", err)
	}
	var status domain.TicketStatus
	if payload.Status != "" {
		parsed, err := domain.ParseTicketStatus(payload.Status)
		if err != nil {
			return err
		}
		status = parsed
	}
	name, count, err := w.csv.ExportToFile(ctx, status)
	if err != nil {
		return err
	}
	w.logger.Info("scheduled export finished", zap.String("file", name), zap.Int("tickets", count))
	return nil
}

func (w *JobWorker) importFile(ctx context.Context, job queue.Job) error {
	var payload queue.CSVImportPayload
	if err := job.DecodePayload(&payload); err != nil {
		return fmt.Errorf("decode import payload: %w", err)
	}
	if payload.FilePath == "" {
		return errors.New("import job has no file")
	}
	if payload.RemoveAfter {
		defer func() {
			if err := os.Remove(payload.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				w.logger.Warn("failed to remove import file", zap.String("file", payload.FilePath), zap.Error(err))
			}
		}()
	}
	result, err := w.csv.ImportFile(ctx, payload.FilePath, job.RequestedBy)
	if err != nil {
		return err
	}
	for _, rowErr := range result.Errors {
		w.logger.Warn("import row rejected", zap.Int("row", rowErr.Row), zap.String("error", rowErr.Error))
	}
	return nil
}
