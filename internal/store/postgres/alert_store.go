package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/n8kahl/copilotd/internal/domain"
)

// AlertStore implements domain.AlertStore on the alert_log table. The payload
// column stores the full dispatched template as JSONB so the log can replay
// exactly what was sent.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates an AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Insert appends one confirmed dispatch to the log.
func (s *AlertStore) Insert(ctx context.Context, rec domain.AlertRecord) error {
	payloadJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("postgres: marshal alert payload: %w", err)
	}

	const query = `INSERT INTO alert_log (action, symbol, contract_id, payload) VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, query, string(rec.Action), rec.Symbol, rec.ContractID, payloadJSON); err != nil {
		return fmt.Errorf("postgres: insert alert %s/%s: %w", rec.Action, rec.ContractID, err)
	}
	return nil
}

// List returns dispatches newest first with pagination and optional time
// filtering.
func (s *AlertStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AlertRecord, error) {
	query := `SELECT id, action, symbol, contract_id, payload, created_at FROM alert_log WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}
	defer rows.Close()

	var records []domain.AlertRecord
	for rows.Next() {
		var rec domain.AlertRecord
		var action string
		var payloadJSON []byte

		if err := rows.Scan(&rec.ID, &action, &rec.Symbol, &rec.ContractID, &payloadJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan alert: %w", err)
		}
		rec.Action = domain.AlertAction(action)
		if payloadJSON != nil {
			if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal alert payload: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list alerts rows: %w", err)
	}
	return records, nil
}

var _ domain.AlertStore = (*AlertStore)(nil)
