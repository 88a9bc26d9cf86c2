package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"propodocs/models"
)

const interactionColumns = `id, view_id, proposal_id, interaction_type, element_id, x, y, scroll_depth, payload, timestamp`

func scanInteraction(row rowScanner) (*models.Interaction, error) {
	var in models.Interaction
	var element sql.NullString
	var x, y, depth sql.NullFloat64
	var payload []byte
	if err := row.Scan(&in.ID, &in.ViewID, &in.ProposalID, &in.InteractionType, &element, &x, &y, &depth, &payload, &in.Timestamp); err != nil {
		return nil, err
	}
	in.ElementID = element.String
	in.X = floatOrNil(x)
	in.Y = floatOrNil(y)
	in.ScrollDepth = floatOrNil(depth)
	in.Payload = json.RawMessage(payload)
	return &in, nil
}

func floatOrNil(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// CreateInteraction записывает действие посетителя.
// Вставка идёт через SELECT из proposal_views, поэтому действие с view_id
// чужого предложения не запишется и вернётся ErrNotFound.
func (db *DB) CreateInteraction(ctx context.Context, in models.Interaction) (*models.Interaction, error) {
	in.ID = uuid.NewString()
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	row := db.Conn.QueryRowContext(ctx, `
		INSERT INTO proposal_interactions (id, view_id, proposal_id, interaction_type, element_id, x, y, scroll_depth, payload, timestamp)
		SELECT $1, v.id, v.proposal_id, $4, $5, $6, $7, $8, $9, $10
		FROM proposal_views v
		WHERE v.id = $2 AND v.proposal_id = $3
		RETURNING `+interactionColumns,
		in.ID, in.ViewID, in.ProposalID, in.InteractionType, nullString(in.ElementID),
		in.X, in.Y, in.ScrollDepth, nullableJSON(in.Payload), in.Timestamp,
	)
	created, err := scanInteraction(row)
	if err != nil {
		return nil, notFound(err, "create interaction")
	}
	return created, nil
}

// ListInteractions возвращает действия по предложению, начиная с since, если он задан
func (db *DB) ListInteractions(ctx context.Context, proposalID string, since *time.Time) ([]models.Interaction, error) {
	filters := []Filter{Eq("proposal_id", proposalID)}
	if since != nil {
		filters = append(filters, Gte("timestamp", *since))
	}
	query, args, err := selectQuery(interactionColumns, "proposal_interactions", filters, "timestamp", Page{})
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	interactions := make([]models.Interaction, 0)
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		interactions = append(interactions, *in)
	}
	return interactions, rows.Err()
}
