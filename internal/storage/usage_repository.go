package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vanban_gateway/internal/models"
)

// UsageRepository is the usage ledger: an append-only record of every
// admitted metered call. Rows are never updated or deleted.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// usageEventRow mirrors the usage_events table. Timestamps travel as Unix
// milliseconds at the storage boundary.
type usageEventRow struct {
	ID               string  `db:"id"`
	SubscriberID     string  `db:"subscriber_id"`
	Endpoint         string  `db:"endpoint"`
	Kind             string  `db:"kind"`
	TSMS             int64   `db:"ts_ms"`
	PromptTokens     int     `db:"prompt_tokens"`
	CompletionTokens int     `db:"completion_tokens"`
	TotalTokens      int     `db:"total_tokens"`
	EstimatedCost    float64 `db:"estimated_cost"`
	ResponseTimeMS   int     `db:"response_time_ms"`
	IsSuccess        bool    `db:"is_success"`
	ErrorMessage     string  `db:"error_message"`
	ClientIP         string  `db:"client_ip"`
}

func (row *usageEventRow) toModel() *models.UsageEvent {
	kind, _ := models.ParseOperationKind(row.Kind)
	return &models.UsageEvent{
		ID:               row.ID,
		SubscriberID:     row.SubscriberID,
		Endpoint:         row.Endpoint,
		Kind:             kind,
		Timestamp:        msToTime(row.TSMS),
		PromptTokens:     row.PromptTokens,
		CompletionTokens: row.CompletionTokens,
		TotalTokens:      row.TotalTokens,
		EstimatedCost:    row.EstimatedCost,
		ResponseTimeMS:   row.ResponseTimeMS,
		IsSuccess:        row.IsSuccess,
		ErrorMessage:     row.ErrorMessage,
		ClientIP:         row.ClientIP,
	}
}

// Append writes one usage event as a single atomic insert. The id and
// timestamp are assigned at write time when unset.
func (r *UsageRepository) Append(ctx context.Context, event *models.UsageEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.NormalizeTokens()

	query := `
		INSERT INTO usage_events (
			id, subscriber_id, endpoint, kind, ts_ms,
			prompt_tokens, completion_tokens, total_tokens,
			estimated_cost, response_time_ms, is_success, error_message, client_ip
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.conn.ExecContext(ctx, query,
		event.ID, event.SubscriberID, event.Endpoint, string(event.Kind),
		timeToMS(event.Timestamp), event.PromptTokens, event.CompletionTokens,
		event.TotalTokens, event.EstimatedCost, event.ResponseTimeMS,
		event.IsSuccess, event.ErrorMessage, event.ClientIP,
	)
	if err != nil {
		return fmt.Errorf("failed to append usage event: %w", err)
	}
	return nil
}

// ListBySubscriberSince retrieves a subscriber's events in [since, now).
// With successOnly set, failed events are filtered out (quota and billing
// only ever count successes).
func (r *UsageRepository) ListBySubscriberSince(ctx context.Context, subscriberID string, since time.Time, successOnly bool) ([]*models.UsageEvent, error) {
	query := `
		SELECT id, subscriber_id, endpoint, kind, ts_ms,
		       prompt_tokens, completion_tokens, total_tokens,
		       estimated_cost, response_time_ms, is_success, error_message, client_ip
		FROM usage_events
		WHERE subscriber_id = $1 AND ts_ms >= $2
	`
	if successOnly {
		query += ` AND is_success = TRUE`
	}

	var rows []usageEventRow
	if err := r.db.conn.SelectContext(ctx, &rows, query, subscriberID, timeToMS(since)); err != nil {
		return nil, fmt.Errorf("failed to list usage events: %w", err)
	}

	events := make([]*models.UsageEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toModel()
	}
	return events, nil
}

// ListAllSince retrieves all subscribers' events in [since, now). The window
// bound keeps aggregation cost proportional to the window rather than the
// whole ledger.
func (r *UsageRepository) ListAllSince(ctx context.Context, since time.Time) ([]*models.UsageEvent, error) {
	query := `
		SELECT id, subscriber_id, endpoint, kind, ts_ms,
		       prompt_tokens, completion_tokens, total_tokens,
		       estimated_cost, response_time_ms, is_success, error_message, client_ip
		FROM usage_events
		WHERE ts_ms >= $1
	`

	var rows []usageEventRow
	if err := r.db.conn.SelectContext(ctx, &rows, query, timeToMS(since)); err != nil {
		return nil, fmt.Errorf("failed to list usage events: %w", err)
	}

	events := make([]*models.UsageEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toModel()
	}
	return events, nil
}

// MonthlyTotals returns the successful request count, token sum, and cost sum
// for a subscriber since the given instant, in one aggregate query.
func (r *UsageRepository) MonthlyTotals(ctx context.Context, subscriberID string, since time.Time) (requests int, tokens int, cost float64, err error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(estimated_cost), 0)
		FROM usage_events
		WHERE subscriber_id = $1 AND ts_ms >= $2 AND is_success = TRUE
	`

	err = r.db.conn.QueryRowxContext(ctx, query, subscriberID, timeToMS(since)).
		Scan(&requests, &tokens, &cost)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get monthly totals: %w", err)
	}
	return requests, tokens, cost, nil
}

func timeToMS(t time.Time) int64 {
	return t.UnixMilli()
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
