// Package presence tracks per-user online status across a user's
// possibly many concurrent gateway sessions. Presence is per-user, not
// per-session: a user is only offline once every session has
// disconnected and the grace period has elapsed.
package presence

import (
	"sync"
	"time"
)

const (
	// StatusOnline, StatusIdle, StatusDND, and StatusOffline are the
	// client-visible presence states.
	StatusOnline  = "online"
	StatusIdle    = "idle"
	StatusDND     = "dnd"
	StatusOffline = "offline"

	// cleanupThreshold is how long an offline entry lingers before the
	// sweeper reclaims its memory.
	cleanupThreshold = 5 * time.Minute
)

// OfflineUser is a user whose disconnect grace period has expired.
type OfflineUser struct {
	UserID      string
	Communities map[string]struct{}
}

type userPresence struct {
	status         string
	sessionCount   int
	communities    map[string]struct{}
	updatedAt      time.Time
	disconnectedAt *time.Time
}

// Registry is the shared table of per-user presence state on a Pod.
type Registry struct {
	mu    sync.Mutex
	users map[string]*userPresence
}

// NewRegistry constructs an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*userPresence)}
}

// SetOnline registers a session coming online for userID, merging its
// communities into the user's tracked set and clearing any pending
// disconnect timer. It returns the previous status and true if the
// user's overall status changed as a result (so the caller can
// broadcast a presence update); it returns "", false for a brand new
// user or when the status didn't change.
func (r *Registry) SetOnline(userID string, communities map[string]struct{}) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, existed := r.users[userID]
	if !existed {
		u = &userPresence{status: StatusOnline, communities: make(map[string]struct{})}
		r.users[userID] = u
	}

	prevStatus := u.status
	u.sessionCount++
	mergeInto(u.communities, communities)
	u.disconnectedAt = nil
	u.updatedAt = time.Now()

	if prevStatus == StatusOffline {
		u.status = StatusOnline
	}

	if u.status != prevStatus {
		return prevStatus, true
	}
	return "", false
}

// SetStatus updates a user's client-reported status (online, idle,
// dnd). It returns the previous status and true if it changed.
func (r *Registry) SetStatus(userID, status string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return "", false
	}
	prev := u.status
	if prev == status {
		return "", false
	}
	u.status = status
	u.updatedAt = time.Now()
	return prev, true
}

// RemoveSession decrements a user's session count on disconnect. When
// the count reaches zero it starts the grace-period timer; it never
// broadcasts itself, that's SweepOffline's job.
func (r *Registry) RemoveSession(userID string, communities map[string]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return
	}
	if u.sessionCount > 0 {
		u.sessionCount--
	}
	mergeInto(u.communities, communities)
	if u.sessionCount == 0 {
		now := time.Now()
		u.disconnectedAt = &now
	}
}

// SweepOffline transitions users whose disconnect grace period has
// expired to offline, reclaims stale offline entries, and returns the
// users that just went offline so the caller can broadcast.
func (r *Registry) SweepOffline(gracePeriod time.Duration) []OfflineUser {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var goneOffline []OfflineUser
	var toRemove []string

	for userID, u := range r.users {
		if u.sessionCount != 0 {
			continue
		}
		if u.disconnectedAt != nil && now.Sub(*u.disconnectedAt) > gracePeriod && u.status != StatusOffline {
			comms := make(map[string]struct{}, len(u.communities))
			mergeInto(comms, u.communities)
			goneOffline = append(goneOffline, OfflineUser{UserID: userID, Communities: comms})
		}
		if u.status == StatusOffline && now.Sub(u.updatedAt) > cleanupThreshold {
			toRemove = append(toRemove, userID)
		}
	}

	for _, ou := range goneOffline {
		u := r.users[ou.UserID]
		u.status = StatusOffline
		u.disconnectedAt = nil
		u.updatedAt = now
	}

	for _, userID := range toRemove {
		delete(r.users, userID)
	}

	return goneOffline
}

// GetOnlineUsers returns the (userID, status) pairs of every non-offline
// user tracked in the given community.
func (r *Registry) GetOnlineUsers(communityID string) []struct {
	UserID string
	Status string
} {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []struct {
		UserID string
		Status string
	}
	for userID, u := range r.users {
		if u.status == StatusOffline {
			continue
		}
		if _, in := u.communities[communityID]; in {
			result = append(result, struct {
				UserID string
				Status string
			}{UserID: userID, Status: u.status})
		}
	}
	return result
}

// GetStatus returns the tracked status for a user, if any.
func (r *Registry) GetStatus(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return "", false
	}
	return u.status, true
}

func mergeInto(dst, src map[string]struct{}) {
	for k := range src {
		dst[k] = struct{}{}
	}
}
