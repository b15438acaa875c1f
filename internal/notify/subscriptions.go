package notify

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tovarim/mealrota/internal/model"
)

// SubscriptionStore persists push subscriptions in the local database.
type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Create registers a subscription, updating keys on endpoint conflict.
func (s *SubscriptionStore) Create(ctx context.Context, userID, district, endpoint, p256dh, auth string) (*model.PushSubscription, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, district, endpoint, p256dh_key, auth_key)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id, district = excluded.district,
		 p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key`,
		userID, district, endpoint, p256dh, auth,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	return s.getByEndpoint(ctx, endpoint)
}

func (s *SubscriptionStore) getByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, district, endpoint, p256dh_key, auth_key, created_at
		 FROM push_subscriptions WHERE endpoint = ?`, endpoint,
	).Scan(&sub.ID, &sub.UserID, &sub.District, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return &sub, nil
}

// ListTargets returns the subscriptions matching any of the districts or
// any of the user ids. Both lists empty selects every subscription.
func (s *SubscriptionStore) ListTargets(ctx context.Context, districts, users []string) ([]model.PushSubscription, error) {
	query := `SELECT id, user_id, district, endpoint, p256dh_key, auth_key, created_at FROM push_subscriptions`
	var clauses []string
	var args []any
	if len(districts) > 0 {
		clauses = append(clauses, "district IN ("+placeholders(len(districts))+")")
		for _, d := range districts {
			args = append(args, d)
		}
	}
	if len(users) > 0 {
		clauses = append(clauses, "user_id IN ("+placeholders(len(users))+")")
		for _, u := range users {
			args = append(args, u)
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " OR ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.District, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeleteByEndpoint removes a subscription; absent endpoints are a no-op.
func (s *SubscriptionStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
