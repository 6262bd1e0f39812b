// Package community provides the minimal read-only lookups the gateway
// needs to populate a READY payload: a user's profile and the
// communities/channels/roles they belong to. Community/channel/role
// CRUD itself is out of scope.
package community

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// User is a Pod-local user profile.
type User struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   *string
}

// Community is the subset of community fields exposed in a READY
// payload.
type Community struct {
	ID          string
	Name        string
	Description *string
	IconURL     *string
	OwnerID     string
	MemberCount int
	Channels    []Channel
	Roles       []Role
}

// Channel is the subset of channel fields exposed in a READY payload.
type Channel struct {
	ID          string
	CommunityID string
	Name        string
	Position    int
}

// Role is the subset of role fields exposed in a READY payload.
type Role struct {
	ID          string
	CommunityID string
	Name        string
	Position    int
}

// Directory resolves the data a gateway IDENTIFY needs to build READY.
type Directory interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	GetMemberCommunityIDs(ctx context.Context, userID string) ([]string, error)
	GetCommunities(ctx context.Context, communityIDs []string) ([]Community, error)
}

// PostgresDirectory implements Directory against the Pod's Postgres
// database.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory wraps a connection pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// GetUser fetches a single user's profile.
func (d *PostgresDirectory) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	err := d.pool.QueryRow(ctx,
		`SELECT id, username, display_name, avatar_url FROM pod_users WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL)
	if err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", userID, err)
	}
	return &u, nil
}

// GetMemberCommunityIDs returns every community ID the user belongs to.
func (d *PostgresDirectory) GetMemberCommunityIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT community_id FROM community_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching memberships for %s: %w", userID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetCommunities loads communities with their channels and roles,
// ordered by position, for inclusion in a READY payload.
func (d *PostgresDirectory) GetCommunities(ctx context.Context, communityIDs []string) ([]Community, error) {
	if len(communityIDs) == 0 {
		return nil, nil
	}

	rows, err := d.pool.Query(ctx,
		`SELECT id, name, description, icon_url, owner_id, member_count
		 FROM communities WHERE id = ANY($1)`, communityIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching communities: %w", err)
	}
	comms := make(map[string]*Community)
	order := make([]string, 0, len(communityIDs))
	for rows.Next() {
		var c Community
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IconURL, &c.OwnerID, &c.MemberCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning community row: %w", err)
		}
		comms[c.ID] = &c
		order = append(order, c.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chRows, err := d.pool.Query(ctx,
		`SELECT id, community_id, name, position FROM channels
		 WHERE community_id = ANY($1) ORDER BY position ASC`, communityIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching channels: %w", err)
	}
	for chRows.Next() {
		var ch Channel
		if err := chRows.Scan(&ch.ID, &ch.CommunityID, &ch.Name, &ch.Position); err != nil {
			chRows.Close()
			return nil, fmt.Errorf("scanning channel row: %w", err)
		}
		if c, ok := comms[ch.CommunityID]; ok {
			c.Channels = append(c.Channels, ch)
		}
	}
	chRows.Close()
	if err := chRows.Err(); err != nil {
		return nil, err
	}

	rlRows, err := d.pool.Query(ctx,
		`SELECT id, community_id, name, position FROM roles
		 WHERE community_id = ANY($1) ORDER BY position ASC`, communityIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching roles: %w", err)
	}
	for rlRows.Next() {
		var rl Role
		if err := rlRows.Scan(&rl.ID, &rl.CommunityID, &rl.Name, &rl.Position); err != nil {
			rlRows.Close()
			return nil, fmt.Errorf("scanning role row: %w", err)
		}
		if c, ok := comms[rl.CommunityID]; ok {
			c.Roles = append(c.Roles, rl)
		}
	}
	rlRows.Close()
	if err := rlRows.Err(); err != nil {
		return nil, err
	}

	result := make([]Community, 0, len(order))
	for _, id := range order {
		result = append(result, *comms[id])
	}
	return result, nil
}
