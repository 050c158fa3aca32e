package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-ticket/internal/domain"
)

const ticketColumns = `id, ticket_number, title, description, severity, status, assigned_to_id,
               created_by_id, due_date, created_at, updated_at, deleted_at`

type ticketRepository struct {
	db dbtx
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, ticket_number, title, description, severity, status, assigned_to_id,
            created_by_id, due_date, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		ticket.Severity,
		ticket.Status,
		ticket.AssignedToID,
		ticket.CreatedByID,
		ticket.DueDate,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return mapPGError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, severity=$3, status=$4, assigned_to_id=$5,
            due_date=$6, updated_at=$7
        WHERE id=$8 AND deleted_at IS NULL`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Severity,
		ticket.Status,
		ticket.AssignedToID,
		ticket.DueDate,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return mapPGError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE tickets SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return mapPGError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND deleted_at IS NULL`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_number=$1 AND deleted_at IS NULL`
	return r.fetchSingle(ctx, query, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapPGError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	where, orderBy, args := BuildTicketQuery(filter, placeholderPG)
	limit, offset := filter.PageBounds()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapPGError(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		ticketColumns, where, orderBy, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapPGError(err)
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

func (r *ticketRepository) LatestNumber(ctx context.Context, prefix string) (string, error) {
	const query = `
        SELECT ticket_number FROM tickets
        WHERE ticket_number LIKE $1
        ORDER BY LENGTH(ticket_number) DESC, ticket_number DESC
        LIMIT 1`
	var number string
	err := r.db.QueryRow(ctx, query, prefix+"%").Scan(&number)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", mapPGError(err)
	}
	return number, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&ticket.Severity,
		&ticket.Status,
		&ticket.AssignedToID,
		&ticket.CreatedByID,
		&ticket.DueDate,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
