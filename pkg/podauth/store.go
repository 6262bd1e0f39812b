// Package podauth implements the Pod side of spec.md §4.D: consuming a
// SIA to establish a local session, and the opaque-token rotation that
// keeps it alive.
package podauth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxora/voxora/pkg/sia"
)

// LocalUser is the Pod's local record for a federated user.
type LocalUser struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}

// UserStore upserts the Pod-local user record on login and checks the
// pod ban table.
type UserStore interface {
	// Upsert creates or updates the local user record by claims.Subject,
	// refreshing username/display/avatar/flags/last_seen.
	Upsert(ctx context.Context, claims *sia.Claims) (*LocalUser, error)
	// IsBanned reports whether userID is listed in the pod ban table.
	IsBanned(ctx context.Context, userID string) (bool, error)
}

// PostgresUserStore implements UserStore against the Pod's Postgres
// database.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore wraps a connection pool.
func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

func (s *PostgresUserStore) Upsert(ctx context.Context, claims *sia.Claims) (*LocalUser, error) {
	var u LocalUser
	var avatarURL *string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pod_users (id, username, display_name, avatar_url, flags, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (id) DO UPDATE SET
		   username = EXCLUDED.username,
		   display_name = EXCLUDED.display_name,
		   avatar_url = EXCLUDED.avatar_url,
		   flags = EXCLUDED.flags,
		   last_seen_at = now()
		 RETURNING id, username, display_name, avatar_url`,
		claims.Subject, claims.Username, claims.DisplayName, nullable(claims.AvatarURL), claims.Flags,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &avatarURL)
	if err != nil {
		return nil, fmt.Errorf("upserting local user %s: %w", claims.Subject, err)
	}
	if avatarURL != nil {
		u.AvatarURL = *avatarURL
	}
	return &u, nil
}

func (s *PostgresUserStore) IsBanned(ctx context.Context, userID string) (bool, error) {
	var banned bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pod_bans WHERE user_id = $1)`, userID,
	).Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("checking ban status for %s: %w", userID, err)
	}
	return banned, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
