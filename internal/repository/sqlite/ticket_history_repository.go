package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spec-kit/service-ticket/internal/domain"
)

// TicketHistoryRepository implements repository.TicketHistoryRepository.
type TicketHistoryRepository struct {
	db dbtx
}

func (r *TicketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	oldValue, err := encodeValues(history.OldValue)
	if err != nil {
		return err
	}
	newValue, err := encodeValues(history.NewValue)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO ticket_history (id, ticket_id, action_type, old_value, new_value, reason, changed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		history.ID,
		history.TicketID,
		string(history.ActionType),
		oldValue,
		newValue,
		history.Reason,
		history.ChangedBy,
		history.CreatedAt.UTC(),
	)
	return mapError(err)
}

// ListByTicket returns entries newest first. Insertion order breaks timestamp ties.
func (r *TicketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
		SELECT id, ticket_id, action_type, old_value, new_value, reason, changed_by, created_at
		FROM ticket_history WHERE ticket_id = ? ORDER BY created_at DESC, seq DESC`
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var (
			history            domain.TicketHistory
			action             string
			oldValue, newValue sql.NullString
		)
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&action,
			&oldValue,
			&newValue,
			&history.Reason,
			&history.ChangedBy,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		history.ActionType = domain.HistoryAction(action)
		if history.OldValue, err = decodeValues(oldValue); err != nil {
			return nil, err
		}
		if history.NewValue, err = decodeValues(newValue); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}

func encodeValues(values map[string]any) (sql.NullString, error) {
	if values == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode history values: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeValues(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil, fmt.Errorf("failed to decode history values: %w", err)
	}
	return values, nil
}
