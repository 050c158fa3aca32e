package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/repository"
)

const ticketColumns = `id, ticket_number, title, description, severity, status, assigned_to_id,
	created_by_id, due_date, created_at, updated_at, deleted_at`

// TicketRepository implements repository.TicketRepository.
type TicketRepository struct {
	db dbtx
}

func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
		INSERT INTO tickets (id, ticket_number, title, description, severity, status, assigned_to_id,
			created_by_id, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		string(ticket.Severity),
		string(ticket.Status),
		nullString(ticket.AssignedToID),
		ticket.CreatedByID,
		nullTime(ticket.DueDate),
		ticket.CreatedAt.UTC(),
		ticket.UpdatedAt.UTC(),
	)
	return mapError(err)
}

func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
		UPDATE tickets SET title = ?, description = ?, severity = ?, status = ?, assigned_to_id = ?,
			due_date = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query,
		ticket.Title,
		ticket.Description,
		string(ticket.Severity),
		string(ticket.Status),
		nullString(ticket.AssignedToID),
		nullTime(ticket.DueDate),
		ticket.UpdatedAt.UTC(),
		ticket.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res)
}

func (r *TicketRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE tickets SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, at.UTC(), at.UTC(), id)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res)
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ? AND deleted_at IS NULL`
	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, id))
	return ticket, mapError(err)
}

func (r *TicketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_number = ? AND deleted_at IS NULL`
	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, number))
	return ticket, mapError(err)
}

func (r *TicketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	where, orderBy, args := repository.BuildTicketQuery(filter, placeholder)
	limit, offset := filter.PageBounds()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		ticketColumns, where, orderBy, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *ticket)
	}
	return result, total, rows.Err()
}

// LatestNumber includes soft-deleted rows so numbers are never reissued.
func (r *TicketRepository) LatestNumber(ctx context.Context, prefix string) (string, error) {
	const query = `
		SELECT ticket_number FROM tickets
		WHERE ticket_number LIKE ?
		ORDER BY LENGTH(ticket_number) DESC, ticket_number DESC
		LIMIT 1`
	var number string
	err := r.db.QueryRowContext(ctx, query, prefix+"%").Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", mapError(err)
	}
	return number, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(row scanner) (*domain.Ticket, error) {
	var (
		ticket             domain.Ticket
		severity, status   string
		assignedTo         sql.NullString
		dueDate, deletedAt sql.NullTime
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&severity,
		&status,
		&assignedTo,
		&ticket.CreatedByID,
		&dueDate,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}
	ticket.Severity = domain.TicketSeverity(severity)
	ticket.Status = domain.TicketStatus(status)
	if assignedTo.Valid {
		ticket.AssignedToID = &assignedTo.String
	}
	if dueDate.Valid {
		ticket.DueDate = &dueDate.Time
	}
	if deletedAt.Valid {
		ticket.DeletedAt = &deletedAt.Time
	}
	return &ticket, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
