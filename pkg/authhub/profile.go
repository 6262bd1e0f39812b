package authhub

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxora/voxora/pkg/sia"
)

// Profile is the Hub-side user record embedded into a minted SIA.
type Profile struct {
	UserID        string
	Username      string
	DisplayName   string
	AvatarURL     string
	Email         string
	EmailVerified bool
	Flags         []string
}

// ProfileStore resolves the profile data a SIA mint needs and records
// the peripheral (user, pod) bookmark spec.md mentions alongside minting.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	RecordBookmark(ctx context.Context, userID, podID string) error
}

// PostgresProfileStore implements ProfileStore against the Hub's
// Postgres database.
type PostgresProfileStore struct {
	pool *pgxpool.Pool
}

// NewPostgresProfileStore wraps a connection pool.
func NewPostgresProfileStore(pool *pgxpool.Pool) *PostgresProfileStore {
	return &PostgresProfileStore{pool: pool}
}

// GetProfile fetches a single user's federation profile.
func (s *PostgresProfileStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	var avatarURL, email *string
	var flags []string
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, display_name, avatar_url, email, email_verified, flags
		 FROM hub_users WHERE id = $1`,
		userID,
	).Scan(&p.UserID, &p.Username, &p.DisplayName, &avatarURL, &email, &p.EmailVerified, &flags)
	if err != nil {
		return nil, fmt.Errorf("fetching hub user %s: %w", userID, err)
	}
	if avatarURL != nil {
		p.AvatarURL = *avatarURL
	}
	if email != nil {
		p.Email = *email
	}
	p.Flags = flags
	return &p, nil
}

// RecordBookmark upserts a (user, pod) presentation bookmark. This is
// peripheral per spec.md §4.C — failures are reported but never block
// a mint.
func (s *PostgresProfileStore) RecordBookmark(ctx context.Context, userID, podID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO hub_pod_bookmarks (user_id, pod_id, last_seen_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id, pod_id) DO UPDATE SET last_seen_at = now()`,
		userID, podID,
	)
	if err != nil {
		return fmt.Errorf("recording bookmark for %s/%s: %w", userID, podID, err)
	}
	return nil
}

// toSIAProfile adapts a Hub profile record to the shape sia.Mint expects.
func toSIAProfile(p *Profile, hubVersion int) sia.UserProfile {
	return sia.UserProfile{
		UserID:        p.UserID,
		Username:      p.Username,
		DisplayName:   p.DisplayName,
		AvatarURL:     p.AvatarURL,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		Flags:         p.Flags,
		HubVersion:    hubVersion,
	}
}
