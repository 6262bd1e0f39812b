package gateway

import "sync/atomic"

// Session is the per-connection state for a single WebSocket gateway
// connection: identity, community membership, and a monotonic dispatch
// sequence counter.
type Session struct {
	SessionID   string
	UserID      string
	Username    string
	Communities map[string]struct{}

	seq atomic.Uint64
}

// NewSession starts a fresh session at seq 0.
func NewSession(sessionID, userID, username string, communities map[string]struct{}) *Session {
	return &Session{SessionID: sessionID, UserID: userID, Username: username, Communities: communities}
}

// NewSessionWithSeq reconstructs a session at a given sequence, used
// when resuming an existing registry entry.
func NewSessionWithSeq(sessionID, userID, username string, communities map[string]struct{}, seq uint64) *Session {
	s := &Session{SessionID: sessionID, UserID: userID, Username: username, Communities: communities}
	s.seq.Store(seq)
	return s
}

// NextSeq returns the next sequence number for a dispatched event.
func (s *Session) NextSeq() uint64 {
	return s.seq.Add(1)
}

// IsSubscribed reports whether this session should receive events for
// the given community.
func (s *Session) IsSubscribed(communityID string) bool {
	_, ok := s.Communities[communityID]
	return ok
}
