package presence

import (
	"sort"
	"testing"
	"time"
)

func communities(ids ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestSetOnlineNewUserReturnsNoChange(t *testing.T) {
	r := NewRegistry()
	_, changed := r.SetOnline("u1", communities("c1"))
	if changed {
		t.Fatal("expected no status change for a brand new user")
	}
	status, ok := r.GetStatus("u1")
	if !ok || status != StatusOnline {
		t.Fatalf("expected online, got %q (ok=%v)", status, ok)
	}
}

func TestSetOnlineAfterOfflineReturnsPreviousStatus(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")

	r.SetOnline("u1", comms)
	r.RemoveSession("u1", comms)
	r.mu.Lock()
	r.users["u1"].status = StatusOffline
	r.mu.Unlock()

	prev, changed := r.SetOnline("u1", comms)
	if !changed || prev != StatusOffline {
		t.Fatalf("expected change from offline, got prev=%q changed=%v", prev, changed)
	}
	status, _ := r.GetStatus("u1")
	if status != StatusOnline {
		t.Fatalf("expected online, got %q", status)
	}
}

func TestSetOnlinePreservesDNDOnReconnect(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")

	r.SetOnline("u1", comms)
	r.SetStatus("u1", StatusDND)

	_, changed := r.SetOnline("u1", comms)
	if changed {
		t.Fatal("expected no change")
	}
	status, _ := r.GetStatus("u1")
	if status != StatusDND {
		t.Fatalf("expected dnd preserved, got %q", status)
	}
}

func TestSetStatusReturnsPreviousOnChange(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")
	r.SetOnline("u1", comms)

	prev, changed := r.SetStatus("u1", StatusIdle)
	if !changed || prev != StatusOnline {
		t.Fatalf("expected prev=online changed=true, got prev=%q changed=%v", prev, changed)
	}
	status, _ := r.GetStatus("u1")
	if status != StatusIdle {
		t.Fatalf("expected idle, got %q", status)
	}
}

func TestSetStatusReturnsFalseWhenUnchanged(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")
	r.SetOnline("u1", comms)

	_, changed := r.SetStatus("u1", StatusOnline)
	if changed {
		t.Fatal("expected no change")
	}
}

func TestSetStatusReturnsFalseForUnknownUser(t *testing.T) {
	r := NewRegistry()
	if _, changed := r.SetStatus("unknown", StatusIdle); changed {
		t.Fatal("expected no change for unknown user")
	}
}

func TestMultiSessionNoOfflineUntilAllDisconnect(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")

	r.SetOnline("u1", comms)
	r.SetOnline("u1", comms)

	r.RemoveSession("u1", comms)
	status, _ := r.GetStatus("u1")
	if status != StatusOnline {
		t.Fatalf("expected still online, got %q", status)
	}

	gone := r.SweepOffline(0)
	if len(gone) != 0 {
		t.Fatal("expected no offline transitions with one session still active")
	}

	r.RemoveSession("u1", comms)
	gone = r.SweepOffline(0)
	if len(gone) != 1 || gone[0].UserID != "u1" {
		t.Fatalf("expected u1 to go offline, got %+v", gone)
	}
	status, _ = r.GetStatus("u1")
	if status != StatusOffline {
		t.Fatalf("expected offline, got %q", status)
	}
}

func TestGracePeriodReconnectCancelsOffline(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")

	r.SetOnline("u1", comms)
	r.RemoveSession("u1", comms)
	r.SetOnline("u1", comms)

	gone := r.SweepOffline(0)
	if len(gone) != 0 {
		t.Fatal("expected no offline transitions after reconnect")
	}
	status, _ := r.GetStatus("u1")
	if status != StatusOnline {
		t.Fatalf("expected online, got %q", status)
	}
}

func TestSweepRespectsGracePeriod(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")

	r.SetOnline("u1", comms)
	r.RemoveSession("u1", comms)

	gone := r.SweepOffline(30 * time.Second)
	if len(gone) != 0 {
		t.Fatal("expected grace period to suppress the offline transition")
	}
	status, _ := r.GetStatus("u1")
	if status != StatusOnline {
		t.Fatalf("expected still online, got %q", status)
	}

	gone = r.SweepOffline(0)
	if len(gone) != 1 {
		t.Fatal("expected offline transition once grace has elapsed")
	}
	status, _ = r.GetStatus("u1")
	if status != StatusOffline {
		t.Fatalf("expected offline, got %q", status)
	}
}

func TestSweepDoesNotReturnAlreadyOfflineUsers(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")

	r.SetOnline("u1", comms)
	r.RemoveSession("u1", comms)

	gone := r.SweepOffline(0)
	if len(gone) != 1 {
		t.Fatal("expected first sweep to transition the user offline")
	}

	gone = r.SweepOffline(0)
	if len(gone) != 0 {
		t.Fatal("expected second sweep to report nothing")
	}
}

func TestSweepCleansUpStaleOfflineEntries(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")

	r.SetOnline("u1", comms)
	r.RemoveSession("u1", comms)
	r.SweepOffline(0)

	r.mu.Lock()
	r.users["u1"].updatedAt = time.Now().Add(-6 * time.Minute)
	r.mu.Unlock()

	r.SweepOffline(0)
	if _, ok := r.GetStatus("u1"); ok {
		t.Fatal("expected stale offline entry to be reclaimed")
	}
}

func TestGetOnlineUsersFiltersByCommunity(t *testing.T) {
	r := NewRegistry()

	r.SetOnline("u1", communities("c1", "c2"))
	r.SetOnline("u2", communities("c2"))
	r.SetOnline("u3", communities("c3"))

	c1Users := r.GetOnlineUsers("c1")
	if len(c1Users) != 1 || c1Users[0].UserID != "u1" {
		t.Fatalf("unexpected c1 users: %+v", c1Users)
	}

	c2Users := r.GetOnlineUsers("c2")
	sort.Slice(c2Users, func(i, j int) bool { return c2Users[i].UserID < c2Users[j].UserID })
	if len(c2Users) != 2 || c2Users[0].UserID != "u1" || c2Users[1].UserID != "u2" {
		t.Fatalf("unexpected c2 users: %+v", c2Users)
	}
}

func TestGetOnlineUsersExcludesOffline(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")

	r.SetOnline("u1", comms)
	r.SetOnline("u2", comms)

	r.RemoveSession("u2", comms)
	r.SweepOffline(0)

	users := r.GetOnlineUsers("c1")
	if len(users) != 1 || users[0].UserID != "u1" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestGetOnlineUsersIncludesIdleAndDND(t *testing.T) {
	r := NewRegistry()
	comms := communities("c1")

	r.SetOnline("u1", comms)
	r.SetOnline("u2", comms)
	r.SetOnline("u3", comms)

	r.SetStatus("u1", StatusIdle)
	r.SetStatus("u2", StatusDND)

	users := r.GetOnlineUsers("c1")
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	if users[0].UserID != "u1" || users[0].Status != StatusIdle {
		t.Fatalf("unexpected u1 entry: %+v", users[0])
	}
	if users[1].UserID != "u2" || users[1].Status != StatusDND {
		t.Fatalf("unexpected u2 entry: %+v", users[1])
	}
	if users[2].UserID != "u3" || users[2].Status != StatusOnline {
		t.Fatalf("unexpected u3 entry: %+v", users[2])
	}
}

func TestCommunitiesMergeAcrossSessions(t *testing.T) {
	r := NewRegistry()

	r.SetOnline("u1", communities("c1"))
	r.SetOnline("u1", communities("c2"))

	if len(r.GetOnlineUsers("c1")) != 1 {
		t.Fatal("expected u1 in c1")
	}
	if len(r.GetOnlineUsers("c2")) != 1 {
		t.Fatal("expected u1 in c2")
	}
}
