package session

import (
	"encoding/json"
	"testing"
	"time"
)

func makeRegistryWithSession() (*Registry, string) {
	r := NewRegistry()
	sessionID := "gw_test_session"
	r.Register(sessionID, "user1", "testuser", map[string]struct{}{"comm1": {}})
	return r, sessionID
}

func TestRegisterAndGetSessionInfo(t *testing.T) {
	r, sessionID := makeRegistryWithSession()
	info, ok := r.GetInfo(sessionID)
	if !ok {
		t.Fatal("expected session info")
	}
	if info.UserID != "user1" || info.Username != "testuser" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if _, ok := info.Communities["comm1"]; !ok {
		t.Fatal("expected comm1 in communities")
	}
	if info.Seq != 0 {
		t.Fatalf("expected seq 0, got %d", info.Seq)
	}
}

func TestGetSessionInfoReturnsFalseForUnknown(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.GetInfo("bogus"); ok {
		t.Fatal("expected ok=false for unknown session")
	}
}

func TestAppendEventAndReplay(t *testing.T) {
	r, sessionID := makeRegistryWithSession()

	r.AppendEvent(sessionID, 1, "MESSAGE_CREATE", json.RawMessage(`{"a":1}`))
	r.AppendEvent(sessionID, 2, "MESSAGE_CREATE", json.RawMessage(`{"a":2}`))
	r.AppendEvent(sessionID, 3, "MESSAGE_UPDATE", json.RawMessage(`{"a":3}`))

	events, ok := r.ReplayAfter(sessionID, 0)
	if !ok || len(events) != 3 {
		t.Fatalf("expected 3 events, got %d (ok=%v)", len(events), ok)
	}
	if events[0].Seq != 1 || events[2].Seq != 3 {
		t.Fatalf("unexpected event order: %+v", events)
	}

	events, ok = r.ReplayAfter(sessionID, 2)
	if !ok || len(events) != 1 || events[0].Seq != 3 {
		t.Fatalf("expected single event seq 3, got %+v (ok=%v)", events, ok)
	}

	events, ok = r.ReplayAfter(sessionID, 3)
	if !ok || len(events) != 0 {
		t.Fatalf("expected no events, got %+v (ok=%v)", events, ok)
	}
}

func TestReplayEvictsOldestWhenOverCapacity(t *testing.T) {
	r, sessionID := makeRegistryWithSession()

	for i := 1; i <= MaxReplayBuffer+50; i++ {
		r.AppendEvent(sessionID, uint64(i), "EVENT", json.RawMessage(`{}`))
	}

	e, ok := r.load(sessionID)
	if !ok {
		t.Fatal("expected session to exist")
	}
	e.mu.Lock()
	bufLen := len(e.replayBuffer)
	frontSeq := e.replayBuffer[0].Seq
	e.mu.Unlock()
	if bufLen != MaxReplayBuffer {
		t.Fatalf("expected buffer len %d, got %d", MaxReplayBuffer, bufLen)
	}
	if frontSeq != 51 {
		t.Fatalf("expected front seq 51, got %d", frontSeq)
	}

	if _, ok := r.ReplayAfter(sessionID, 0); ok {
		t.Fatal("expected replay from seq 0 to fail as too old")
	}

	events, ok := r.ReplayAfter(sessionID, 50)
	if !ok || len(events) != MaxReplayBuffer {
		t.Fatalf("expected %d events at boundary, got %d (ok=%v)", MaxReplayBuffer, len(events), ok)
	}
}

func TestMarkDisconnectedAndConnected(t *testing.T) {
	r, sessionID := makeRegistryWithSession()

	e, _ := r.load(sessionID)
	e.mu.Lock()
	initiallyConnected := e.disconnectedAt == nil
	e.mu.Unlock()
	if !initiallyConnected {
		t.Fatal("expected session to start connected")
	}

	r.MarkDisconnected(sessionID)
	e.mu.Lock()
	disconnected := e.disconnectedAt != nil
	e.mu.Unlock()
	if !disconnected {
		t.Fatal("expected disconnectedAt to be set")
	}

	r.MarkConnected(sessionID)
	e.mu.Lock()
	reconnected := e.disconnectedAt == nil
	e.mu.Unlock()
	if !reconnected {
		t.Fatal("expected disconnectedAt to be cleared")
	}
}

func TestCleanupExpiredRemovesOldSessions(t *testing.T) {
	r := NewRegistry()
	communities := map[string]struct{}{"c": {}}

	r.Register("s1", "u1", "user1", communities)
	r.Register("s2", "u2", "user2", communities)

	r.MarkDisconnected("s1")
	e, _ := r.load("s1")
	longAgo := time.Now().Add(-10 * time.Minute)
	e.mu.Lock()
	e.disconnectedAt = &longAgo
	e.mu.Unlock()

	removed := r.CleanupExpired()
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := r.GetInfo("s1"); ok {
		t.Fatal("expected s1 to be removed")
	}
	if _, ok := r.GetInfo("s2"); !ok {
		t.Fatal("expected s2 to still exist")
	}
}

func TestReplayEmptyBufferAtSeqZero(t *testing.T) {
	r, sessionID := makeRegistryWithSession()
	events, ok := r.ReplayAfter(sessionID, 0)
	if !ok || len(events) != 0 {
		t.Fatalf("expected empty replay, got %+v (ok=%v)", events, ok)
	}
}
