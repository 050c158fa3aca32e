package repository

import (
	"context"

	"github.com/spec-kit/service-ticket/internal/domain"
)

type ticketHistoryRepository struct {
	db dbtx
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (id, ticket_id, action_type, old_value, new_value, reason, changed_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Exec(ctx, query,
		history.ID,
		history.TicketID,
		history.ActionType,
		history.OldValue,
		history.NewValue,
		history.Reason,
		history.ChangedBy,
		history.CreatedAt,
	)
	return mapPGError(err)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, action_type, old_value, new_value, reason, changed_by, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at DESC, seq DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.ActionType,
			&history.OldValue,
			&history.NewValue,
			&history.Reason,
			&history.ChangedBy,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
