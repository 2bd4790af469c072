package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vanban_gateway/internal/models"
)

// SubscriberRepository owns the subscriber records. The metering core only
// reads the projection (GetByID / GetByAPIKeyHash); the write operations
// belong to the auth and admin surfaces.
type SubscriberRepository struct {
	db *DB
}

// NewSubscriberRepository creates a new subscriber repository
func NewSubscriberRepository(db *DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

type subscriberRow struct {
	ID                  string        `db:"id"`
	Email               string        `db:"email"`
	FullName            string        `db:"full_name"`
	Company             string        `db:"company"`
	PasswordHash        string        `db:"password_hash"`
	APIKeyHash          string        `db:"api_key_hash"`
	Role                string        `db:"role"`
	IsActive            bool          `db:"is_active"`
	PlanID              string        `db:"plan_id"`
	SubscriptionStartMS int64         `db:"subscription_start_ms"`
	SubscriptionEndMS   sql.NullInt64 `db:"subscription_end_ms"`
	CreatedMS           int64         `db:"created_ms"`
	LastLoginMS         sql.NullInt64 `db:"last_login_ms"`
	LastLoginIP         sql.NullString `db:"last_login_ip"`
}

func (row *subscriberRow) toModel() *models.Subscriber {
	sub := &models.Subscriber{
		ID:                    row.ID,
		Email:                 row.Email,
		FullName:              row.FullName,
		Company:               row.Company,
		Role:                  models.Role(row.Role),
		IsActive:              row.IsActive,
		PlanID:                row.PlanID,
		SubscriptionStartDate: msToTime(row.SubscriptionStartMS),
	}
	if row.SubscriptionEndMS.Valid {
		end := msToTime(row.SubscriptionEndMS.Int64)
		sub.SubscriptionEndDate = &end
	}
	return sub
}

const subscriberColumns = `id, email, full_name, company, password_hash, api_key_hash,
	role, is_active, plan_id, subscription_start_ms, subscription_end_ms,
	created_ms, last_login_ms, last_login_ip`

// GetByID retrieves the subscriber projection by id.
func (r *SubscriberRepository) GetByID(ctx context.Context, id string) (*models.Subscriber, error) {
	return r.getOne(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id)
}

// GetByAPIKeyHash retrieves the subscriber projection by hashed API key.
func (r *SubscriberRepository) GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Subscriber, error) {
	return r.getOne(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE api_key_hash = $1`, keyHash)
}

// GetByEmail retrieves the subscriber projection by email.
func (r *SubscriberRepository) GetByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	return r.getOne(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1`, email)
}

func (r *SubscriberRepository) getOne(ctx context.Context, query string, arg any) (*models.Subscriber, error) {
	var row subscriberRow
	err := r.db.conn.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return row.toModel(), nil
}

// PasswordHashByEmail returns the stored password hash for a login attempt.
func (r *SubscriberRepository) PasswordHashByEmail(ctx context.Context, email string) (string, error) {
	var hash string
	err := r.db.conn.GetContext(ctx, &hash, `SELECT password_hash FROM subscribers WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSubscriberNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get password hash: %w", err)
	}
	return hash, nil
}

// ListAll retrieves every subscriber projection. Used by the admin rollup.
func (r *SubscriberRepository) ListAll(ctx context.Context) ([]*models.Subscriber, error) {
	var rows []subscriberRow
	err := r.db.conn.SelectContext(ctx, &rows, `SELECT `+subscriberColumns+` FROM subscribers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}

	subs := make([]*models.Subscriber, len(rows))
	for i := range rows {
		subs[i] = rows[i].toModel()
	}
	return subs, nil
}

// Create inserts a new subscriber. Owned by the auth surface.
func (r *SubscriberRepository) Create(ctx context.Context, sub *models.Subscriber, passwordHash, apiKeyHash string) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Role == "" {
		sub.Role = models.RoleUser
	}
	if sub.PlanID == "" {
		sub.PlanID = "free"
	}
	now := time.Now().UTC()
	if sub.SubscriptionStartDate.IsZero() {
		sub.SubscriptionStartDate = now
	}

	var endMS sql.NullInt64
	if sub.SubscriptionEndDate != nil {
		endMS = sql.NullInt64{Int64: timeToMS(*sub.SubscriptionEndDate), Valid: true}
	}

	query := `
		INSERT INTO subscribers (
			id, email, full_name, company, password_hash, api_key_hash,
			role, is_active, plan_id, subscription_start_ms, subscription_end_ms, created_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.conn.ExecContext(ctx, query,
		sub.ID, sub.Email, sub.FullName, sub.Company, passwordHash, apiKeyHash,
		string(sub.Role), sub.IsActive, sub.PlanID,
		timeToMS(sub.SubscriptionStartDate), endMS, timeToMS(now),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	return nil
}

// UpdatePlan reassigns a subscriber's plan and expiry. Owned by the admin
// surface; the metering core never calls it.
func (r *SubscriberRepository) UpdatePlan(ctx context.Context, subscriberID, planID string, endDate *time.Time) error {
	var endMS sql.NullInt64
	if endDate != nil {
		endMS = sql.NullInt64{Int64: timeToMS(*endDate), Valid: true}
	}

	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE subscribers SET plan_id = $1, subscription_end_ms = $2 WHERE id = $3`,
		planID, endMS, subscriberID,
	)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

// UpdateAPIKeyHash rotates a subscriber's API key hash. The previous key
// stops resolving the moment the new hash lands.
func (r *SubscriberRepository) UpdateAPIKeyHash(ctx context.Context, subscriberID, keyHash string) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE subscribers SET api_key_hash = $1 WHERE id = $2`,
		keyHash, subscriberID,
	)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

// SetActive locks or unlocks an account. Owned by the admin surface.
func (r *SubscriberRepository) SetActive(ctx context.Context, subscriberID string, active bool) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE subscribers SET is_active = $1 WHERE id = $2`,
		active, subscriberID,
	)
	if err != nil {
		return fmt.Errorf("failed to set active flag: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

// RecordLogin stamps the last login time and client address.
func (r *SubscriberRepository) RecordLogin(ctx context.Context, subscriberID, clientIP string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE subscribers SET last_login_ms = $1, last_login_ip = $2 WHERE id = $3`,
		timeToMS(time.Now().UTC()), clientIP, subscriberID,
	)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}
