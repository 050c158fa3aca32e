// Package queue carries background jobs and event broadcasts over Redis.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrEmpty is returned by Dequeue when no job arrived before the timeout.
var ErrEmpty = errors.New("queue empty")

// JobType names the kind of work a job carries.
type JobType string

const (
	JobCSVExport  JobType = "csv_export"
	JobCSVImport  JobType = "csv_import"
	JobAutomation JobType = "automation"
)

// Job is one unit of background work.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	RequestedBy string          `json:"requested_by"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// CSVExportPayload parameterizes a csv_export job.
type CSVExportPayload struct {
	Status string `json:"status,omitempty"`
}

// CSVImportPayload points a csv_import job at an uploaded file.
type CSVImportPayload struct {
	FilePath string `json:"file_path"`
	// RemoveAfter deletes the file once the import finishes.
	RemoveAfter bool `json:"remove_after"`
}

// Queue is a FIFO of jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks up to timeout and returns ErrEmpty if nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
}

// NewJob builds a job with an encoded payload.
func NewJob(id string, jobType JobType, requestedBy string, payload any, at time.Time) (Job, error) {
	job := Job{ID: id, Type: jobType, RequestedBy: requestedBy, EnqueuedAt: at.UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Job{}, err
		}
		job.Payload = raw
	}
	return job, nil
}

// DecodePayload unmarshals the job payload into dst.
func (j Job) DecodePayload(dst any) error {
	if len(j.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(j.Payload, dst)
}
