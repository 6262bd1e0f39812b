// Package session implements the gateway session registry: per-session
// metadata, a bounded replay buffer for resume, and disconnect-grace
// cleanup.
package session

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	// MaxReplayBuffer is the maximum number of events retained per
	// session for resume replay.
	MaxReplayBuffer = 1000

	// TTL is how long a disconnected session remains eligible for
	// resume before cleanup reaps it.
	TTL = 5 * time.Minute
)

// ReplayEntry is a single dispatched event retained for resume.
type ReplayEntry struct {
	Seq       uint64
	EventName string
	Data      json.RawMessage
}

// Info is a snapshot of session metadata returned to callers validating
// a resume request.
type Info struct {
	UserID      string
	Username    string
	Communities map[string]struct{}
	Seq         uint64
}

type entry struct {
	mu             sync.Mutex
	userID         string
	username       string
	communities    map[string]struct{}
	seq            uint64
	replayBuffer   []ReplayEntry
	disconnectedAt *time.Time
}

// Registry is the shared table of all gateway sessions on a Pod. Each
// session is keyed by its session ID and guarded by its own mutex so
// that concurrent work on unrelated sessions never contends.
type Registry struct {
	sessions sync.Map // string -> *entry
}

// NewRegistry constructs an empty session registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register records a new session after a successful IDENTIFY.
func (r *Registry) Register(sessionID, userID, username string, communities map[string]struct{}) {
	r.sessions.Store(sessionID, &entry{
		userID:      userID,
		username:    username,
		communities: communities,
	})
}

// AppendEvent records a dispatched event in the session's replay buffer,
// evicting the oldest entry once the buffer exceeds MaxReplayBuffer.
func (r *Registry) AppendEvent(sessionID string, seq uint64, eventName string, data json.RawMessage) {
	e, ok := r.load(sessionID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq = seq
	e.replayBuffer = append(e.replayBuffer, ReplayEntry{Seq: seq, EventName: eventName, Data: data})
	if over := len(e.replayBuffer) - MaxReplayBuffer; over > 0 {
		e.replayBuffer = e.replayBuffer[over:]
	}
}

// MarkDisconnected records the current time as the session's
// disconnection point, starting its TTL countdown.
func (r *Registry) MarkDisconnected(sessionID string) {
	e, ok := r.load(sessionID)
	if !ok {
		return
	}
	now := time.Now()
	e.mu.Lock()
	e.disconnectedAt = &now
	e.mu.Unlock()
}

// MarkConnected clears a session's disconnection marker, e.g. after a
// successful resume.
func (r *Registry) MarkConnected(sessionID string) {
	e, ok := r.load(sessionID)
	if !ok {
		return
	}
	e.mu.Lock()
	e.disconnectedAt = nil
	e.mu.Unlock()
}

// ReplayAfter returns all buffered events with seq greater than
// afterSeq. The second return value is false if the session doesn't
// exist, if the requested seq is older than the buffer's retained
// window, or if the buffer is empty and afterSeq is not the session's
// current seq; in those cases the caller must re-IDENTIFY instead of
// resuming.
func (r *Registry) ReplayAfter(sessionID string, afterSeq uint64) ([]ReplayEntry, bool) {
	e, ok := r.load(sessionID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.replayBuffer) == 0 {
		if afterSeq == e.seq {
			return []ReplayEntry{}, true
		}
		return nil, false
	}

	bufferStartSeq := e.replayBuffer[0].Seq
	if afterSeq < saturatingSub(bufferStartSeq, 1) {
		return nil, false // too old — client must re-IDENTIFY
	}

	events := make([]ReplayEntry, 0, len(e.replayBuffer))
	for _, re := range e.replayBuffer {
		if re.Seq > afterSeq {
			events = append(events, re)
		}
	}
	return events, true
}

// GetInfo returns session metadata for resume validation.
func (r *Registry) GetInfo(sessionID string) (Info, bool) {
	e, ok := r.load(sessionID)
	if !ok {
		return Info{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	communities := make(map[string]struct{}, len(e.communities))
	for c := range e.communities {
		communities[c] = struct{}{}
	}
	return Info{UserID: e.userID, Username: e.username, Communities: communities, Seq: e.seq}, true
}

// CleanupExpired removes sessions that have been disconnected longer
// than TTL, returning the number of sessions removed.
func (r *Registry) CleanupExpired() int {
	now := time.Now()
	removed := 0
	r.sessions.Range(func(key, value any) bool {
		e := value.(*entry)
		e.mu.Lock()
		expired := e.disconnectedAt != nil && now.Sub(*e.disconnectedAt) >= TTL
		e.mu.Unlock()
		if expired {
			r.sessions.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Remove unconditionally deletes a session, used when a connection
// closes without an intent to resume (e.g. explicit logout).
func (r *Registry) Remove(sessionID string) {
	r.sessions.Delete(sessionID)
}

func (r *Registry) load(sessionID string) (*entry, bool) {
	v, ok := r.sessions.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
