package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/repository"
	apperrors "github.com/spec-kit/service-ticket/pkg/util/errorutil"
)

// ReasonCSVImport is recorded on every status change applied from a CSV file.
const ReasonCSVImport = "Status updated via CSV import"

const exportPageSize = 100

const utf8BOM = "\ufeff"

// ExportColumns is the header row of an export file.
var ExportColumns = []string{
	"Ticket Number",
	"Title",
	"Description",
	"Severity",
	"Status",
	"Due Date",
	"Created At",
	"Updated At",
	"Created By",
}

// import header aliases, matched case-insensitively
var (
	numberHeaders = []string{"ticket number", "ticketnumber"}
	statusHeaders = []string{"status"}
)

// ImportError describes one rejected CSV row. Row is 1-based and excludes the header.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Processed int           `json:"processed"`
	Updated   int           `json:"updated"`
	Errors    []ImportError `json:"errors"`
}

// CSVService exchanges ticket data with the external system.
type CSVService struct {
	store   repository.Store
	tickets *TicketService
	dir     string
	now     func() time.Time
	logger  *zap.Logger
}

// NewCSVService builds the service writing export files under dir.
func NewCSVService(store repository.Store, tickets *TicketService, dir string, logger *zap.Logger) *CSVService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVService{store: store, tickets: tickets, dir: dir, now: time.Now, logger: logger}
}

// Export writes every live ticket in status to w and returns the row count.
// An empty status exports PENDING tickets.
func (s *CSVService) Export(ctx context.Context, w io.Writer, status domain.TicketStatus) (int, error) {
	if status == "" {
		status = domain.TicketStatusPending
	}
	if !status.Valid() {
		return 0, apperrors.NewValidationError("invalid status", map[string]any{"status": string(status)})
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(ExportColumns); err != nil {
		return 0, err
	}

	emails := map[string]string{}
	filter := repository.TicketFilter{
		Statuses: []domain.TicketStatus{status},
		SortBy:   "createdAt",
		Limit:    exportPageSize,
	}
	count := 0
	for {
		page, total, err := s.store.Tickets().List(ctx, filter)
		if err != nil {
			return count, apperrors.NewStoreFailure("failed to list tickets for export", err)
		}
		for _, ticket := range page {
			creator, err := s.creatorEmail(ctx, emails, ticket.CreatedByID)
			if err != nil {
				return count, err
			}
			if err := writer.Write(exportRow(ticket, creator)); err != nil {
				return count, err
			}
			count++
		}
		filter.Offset += len(page)
		if len(page) == 0 || filter.Offset >= total {
			break
		}
	}

	writer.Flush()
	return count, writer.Error()
}

// ExportToFile writes an export under the configured directory and returns
// the generated file name.
func (s *CSVService) ExportToFile(ctx context.Context, status domain.TicketStatus) (string, int, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create export dir: %w", err)
	}
	name := fmt.Sprintf("tickets-export-%d.csv", s.now().UnixMilli())
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create export file: %w", err)
	}
	count, err := s.Export(ctx, f, status)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}

	s.logger.Info("csv export written", zap.String("file", name), zap.Int("tickets", count))
	return name, count, nil
}

// ExportPath resolves an export file name to its path, refusing anything
// outside the export directory.
func (s *CSVService) ExportPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".csv") {
		return "", apperrors.NewValidationError("invalid file name", nil)
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperrors.NewNotFound("export file", map[string]any{"file": name})
		}
		return "", err
	}
	return path, nil
}

// Import applies the Status column of every row to the ticket named in the
// Ticket Number column. Row failures are collected, not fatal.
func (s *CSVService) Import(ctx context.Context, r io.Reader, actorID string) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewValidationError("csv file is empty", nil)
	}
	if err != nil {
		return nil, apperrors.NewValidationError("invalid csv header", map[string]any{"error": err.Error()})
	}
	numberCol := columnIndex(header, numberHeaders)
	statusCol := columnIndex(header, statusHeaders)
	if numberCol < 0 || statusCol < 0 {
		return nil, apperrors.NewValidationError("csv must contain Ticket Number and Status columns", nil)
	}

	result := &ImportResult{Errors: []ImportError{}}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++
		if err != nil {
			result.Errors = append(result.Errors, ImportError{Row: row, Error: err.Error()})
			continue
		}

		changed, err := s.importRow(ctx, field(record, numberCol), field(record, statusCol), actorID)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{Row: row, Error: importErrorMessage(err)})
			continue
		}
		if changed {
			result.Updated++
		}
	}

	s.logger.Info("csv import finished",
		zap.Int("processed", result.Processed),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// ImportFile imports the file at path.
func (s *CSVService) ImportFile(ctx context.Context, path, actorID string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()
	return s.Import(ctx, f, actorID)
}

func (s *CSVService) importRow(ctx context.Context, number, rawStatus, actorID string) (bool, error) {
	if number == "" {
		return false, errors.New("Ticket number is required")
	}
	status, err := domain.ParseTicketStatus(rawStatus)
	if err != nil {
		return false, fmt.Errorf("Invalid status: %s", rawStatus)
	}
	_, changed, err := s.tickets.ApplyExternalStatus(ctx, number, status, actorID, ReasonCSVImport)
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		return false, fmt.Errorf("Ticket not found: %s", number)
	}
	return changed, err
}

func (s *CSVService) creatorEmail(ctx context.Context, cache map[string]string, userID string) (string, error) {
	if email, ok := cache[userID]; ok {
		return email, nil
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		cache[userID] = ""
	case err != nil:
		return "", apperrors.NewStoreFailure("failed to load ticket creator", err)
	default:
		cache[userID] = user.Email
	}
	return cache[userID], nil
}

func exportRow(ticket domain.Ticket, creatorEmail string) []string {
	due := ""
	if ticket.DueDate != nil {
		due = ticket.DueDate.Format("2006-01-02")
	}
	return []string{
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		string(ticket.Severity),
		string(ticket.Status),
		due,
		ticket.CreatedAt.UTC().Format(time.RFC3339),
		ticket.UpdatedAt.UTC().Format(time.RFC3339),
		creatorEmail,
	}
}

func columnIndex(header []string, names []string) int {
	for i, h := range header {
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))
		for _, name := range names {
			if normalized == name {
				return i
			}
		}
	}
	return -1
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func importErrorMessage(err error) string {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
