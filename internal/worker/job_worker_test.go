package worker_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spec-kit/service-ticket/internal/config"
	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/observability"
	"github.com/spec-kit/service-ticket/internal/queue"
	"github.com/spec-kit/service-ticket/internal/repository/sqlite"
	"github.com/spec-kit/service-ticket/internal/service"
	"github.com/spec-kit/service-ticket/internal/worker"
)

type fixture struct {
	tickets *service.TicketService
	csv     *service.CSVService
	worker  *worker.JobWorker
	queue   *queue.MemoryQueue
	dir     string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close()
	})
	store := sqlite.NewStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	dir := t.TempDir()
	tickets := service.NewTicketService(service.TicketDependencies{Store: store, NumberMaxAttempts: 3})
	csvSvc := service.NewCSVService(store, tickets, dir, nil)
	automation := service.NewAutomationService(tickets,
		service.DefaultAutomationRules(config.AutomationConfig{OpenCloseDays: 7, PendingReopenDays: 14}), "system", nil)
	q := queue.NewMemoryQueue(8)

	return &fixture{
		tickets: tickets,
		csv:     csvSvc,
		worker:  worker.NewJobWorker(q, csvSvc, automation, observability.NewMetrics(), nil),
		queue:   q,
		dir:     dir,
	}
}

func mustJob(t *testing.T, jobType queue.JobType, payload any) queue.Job {
	t.Helper()
	job, err := queue.NewJob("job-1", jobType, "manager-m", payload, time.Now())
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	return job
}

func TestJobWorker_ProcessImport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ticket, err := f.tickets.Create(ctx, "associate-a", service.TicketCreateInput{Title: "Printer", Description: "jammed"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "upload.csv")
	content := "Ticket Number,Status\n" + ticket.TicketNumber + ",OPEN\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write upload: %v", err)
	}

	job := mustJob(t, queue.JobCSVImport, queue.CSVImportPayload{FilePath: path, RemoveAfter: true})
	if err := f.worker.Process(ctx, job); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, err := f.tickets.FindOne(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s, want OPEN", got.Status)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("upload should be removed, stat err = %v", err)
	}
}

func TestJobWorker_ProcessErrors(t *testing.T) {
	tests := []struct {
		name string
		job  queue.Job
	}{
		{name: "unknown type", job: queue.Job{ID: "j", Type: "reindex"}},
		{name: "import without file", job: queue.Job{ID: "j", Type: queue.JobCSVImport}},
		{name: "export with bad status", job: queue.Job{ID: "j", Type: queue.JobCSVExport, Payload: []byte(`{"status":"archived"}`)}},
		{name: "malformed payload", job: queue.Job{ID: "j", Type: queue.JobCSVImport, Payload: []byte(`{`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			if err := f.worker.Process(context.Background(), tt.job); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestJobWorker_ProcessAutomation(t *testing.T) {
	f := setup(t)
	if err := f.worker.Process(context.Background(), mustJob(t, queue.JobAutomation, nil)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
}

func TestJobWorker_RunDrainsQueue(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.queue.Enqueue(ctx, mustJob(t, queue.JobCSVExport, queue.CSVExportPayload{Status: "pending"})); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, err := os.ReadDir(f.dir)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) == 1 && strings.HasPrefix(entries[0].Name(), "tickets-export-") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("export file not written, dir has %d entries", len(entries))
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestAutomationWorker_Disabled(t *testing.T) {
	done := make(chan struct{})
	go func() {
		worker.NewAutomationWorker(nil, 0, nil).Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled worker should return immediately")
	}
}
