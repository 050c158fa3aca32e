package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/service-ticket/internal/api/dto"
	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/queue"
	"github.com/spec-kit/service-ticket/internal/service"
	apperrors "github.com/spec-kit/service-ticket/pkg/util/errorutil"
)

// MaxImportSize caps uploaded CSV files.
const MaxImportSize = 5 << 20

// CSVHandler exposes export, import and automation endpoints.
type CSVHandler struct {
	csv        *service.CSVService
	automation *service.AutomationService
	jobs       queue.Queue
	uploadDir  string
}

// NewCSVHandler constructs handler. Uploads queued for background import are
// stored under uploadDir.
func NewCSVHandler(csv *service.CSVService, automation *service.AutomationService, jobs queue.Queue, uploadDir string) *CSVHandler {
	return &CSVHandler{csv: csv, automation: automation, jobs: jobs, uploadDir: uploadDir}
}

// Export POST /csv/export. With ?async=true the export is queued instead.
func (h *CSVHandler) Export(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ExportRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if req.Status == "" {
		req.Status = c.Query("status")
	}
	var status domain.TicketStatus
	if req.Status != "" {
		if status, err = domain.ParseTicketStatus(req.Status); err != nil {
			return apperrors.NewValidationError(err.Error(), nil)
		}
	}

	if c.QueryBool("async") {
		return h.enqueue(c, queue.JobCSVExport, principal.ID, queue.CSVExportPayload{Status: string(status)}, "Export queued")
	}

	name, count, err := h.csv.ExportToFile(c.UserContext(), status)
	if err != nil {
		return err
	}
	return c.JSON(dto.ExportResponse{
		Message:     "Export completed",
		FileName:    name,
		DownloadURL: "/csv/download/" + name,
		Count:       count,
	})
}

// Download GET /csv/download/:fileName.
func (h *CSVHandler) Download(c *fiber.Ctx) error {
	path, err := h.csv.ExportPath(c.Params("fileName"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv")
	return c.Download(path, filepath.Base(path))
}

// Import POST /csv/import with a multipart "file" field. With ?async=true the
// file is stored and imported by the job worker.
func (h *CSVHandler) Import(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", nil)
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		return apperrors.NewValidationError("only .csv files are accepted", nil)
	}
	if header.Size > MaxImportSize {
		return apperrors.NewValidationError("file exceeds 5MB limit", nil)
	}

	if c.QueryBool("async") {
		if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
			return apperrors.NewInternalError(err)
		}
		path := filepath.Join(h.uploadDir, fmt.Sprintf("import-%s.csv", uuid.NewString()))
		if err := c.SaveFile(header, path); err != nil {
			return apperrors.NewInternalError(err)
		}
		return h.enqueue(c, queue.JobCSVImport, principal.ID, queue.CSVImportPayload{FilePath: path, RemoveAfter: true}, "Import queued")
	}

	file, err := header.Open()
	if err != nil {
		return apperrors.NewValidationError("unable to read file", nil)
	}
	defer file.Close()

	result, err := h.csv.Import(c.UserContext(), file, principal.ID)
	if err != nil {
		return err
	}
	details := make([]dto.ImportErrorDetail, 0, len(result.Errors))
	for _, rowErr := range result.Errors {
		details = append(details, dto.ImportErrorDetail{Row: rowErr.Row, Error: rowErr.Error})
	}
	return c.JSON(dto.ImportResponse{
		Message:           "Import completed",
		TotalProcessed:    result.Processed,
		SuccessfulUpdates: result.Updated,
		Errors:            len(result.Errors),
		ErrorDetails:      details,
	})
}

// ScheduleAutomation POST /csv/schedule-automated-processing.
func (h *CSVHandler) ScheduleAutomation(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	return h.enqueue(c, queue.JobAutomation, principal.ID, nil, "Automated processing scheduled")
}

// ProcessAutomation POST /csv/process-automated-updates.
func (h *CSVHandler) ProcessAutomation(c *fiber.Ctx) error {
	result, err := h.automation.Run(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.AutomationResponse{
		Message:   "Automated updates processed",
		Processed: result.Processed,
		Updated:   result.Updated,
		Failed:    result.Failed,
	})
}

func (h *CSVHandler) enqueue(c *fiber.Ctx, jobType queue.JobType, requestedBy string, payload any, message string) error {
	if h.jobs == nil {
		return apperrors.NewDomainError("QUEUE_UNAVAILABLE", "job queue is not configured", http.StatusServiceUnavailable, nil)
	}
	job, err := queue.NewJob(uuid.NewString(), jobType, requestedBy, payload, time.Now())
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := h.jobs.Enqueue(c.UserContext(), job); err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.Status(http.StatusAccepted).JSON(dto.JobAcceptedResponse{Message: message, JobID: job.ID})
}
