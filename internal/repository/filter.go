package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/service-ticket/internal/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// TicketFilter captures listing parameters. Soft-deleted tickets are never
// returned regardless of the filter.
type TicketFilter struct {
	Statuses      []domain.TicketStatus
	Severities    []domain.TicketSeverity
	AssignedToID  *string
	CreatedByID   *string
	SearchTerm    *string
	CreatedBefore *time.Time
	SortBy        string
	SortDesc      bool
	Limit         int
	Offset        int
}

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"status":    "status",
	"title":     "title",
	"severity": `CASE severity WHEN 'EASY' THEN 1 WHEN 'LOW' THEN 2 WHEN 'MEDIUM' THEN 3
        WHEN 'HIGH' THEN 4 WHEN 'VERY_HIGH' THEN 5 ELSE 0 END`,
}

// PageBounds returns the effective limit and offset.
func (f TicketFilter) PageBounds() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// BuildTicketQuery renders the WHERE and ORDER BY clauses for filter.
// placeholder maps a 1-based argument index to the driver's bind syntax.
func BuildTicketQuery(filter TicketFilter, placeholder func(n int) string) (where, orderBy string, args []any) {
	clauses := []string{"deleted_at IS NULL"}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, string(status))
			placeholders[i] = placeholder(len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, severity := range filter.Severities {
			args = append(args, string(severity))
			placeholders[i] = placeholder(len(args))
		}
		clauses = append(clauses, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("assigned_to_id=%s", placeholder(len(args))))
	}
	if filter.CreatedByID != nil {
		args = append(args, *filter.CreatedByID)
		clauses = append(clauses, fmt.Sprintf("created_by_id=%s", placeholder(len(args))))
	}
	if filter.CreatedBefore != nil {
		args = append(args, filter.CreatedBefore.UTC())
		clauses = append(clauses, fmt.Sprintf("created_at < %s", placeholder(len(args))))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		clauses = append(clauses, fmt.Sprintf("LOWER(title) LIKE %s", placeholder(len(args))))
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = sortColumns["createdAt"]
	}
	direction := "ASC"
	if filter.SortDesc || filter.SortBy == "" {
		direction = "DESC"
	}

	return strings.Join(clauses, " AND "), fmt.Sprintf("%s %s, id %s", column, direction, direction), args
}
