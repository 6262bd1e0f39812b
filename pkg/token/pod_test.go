package token

import (
	"context"
	"testing"

	"github.com/voxora/voxora/pkg/kv"
)

func TestPodServiceAccessTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewPodService(kv.NewMemory())

	tok, err := svc.IssueAccessToken(ctx, "usr_1")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	data, err := svc.LookupAccessToken(ctx, tok)
	if err != nil {
		t.Fatalf("LookupAccessToken: %v", err)
	}
	if data == nil || data.UserID != "usr_1" {
		t.Fatalf("unexpected lookup result: %+v", data)
	}

	// Lookup does not consume.
	data2, err := svc.LookupAccessToken(ctx, tok)
	if err != nil || data2 == nil {
		t.Fatalf("second lookup should still succeed: %v, %+v", err, data2)
	}
}

func TestPodServiceLookupUnknownToken(t *testing.T) {
	svc := NewPodService(kv.NewMemory())
	data, err := svc.LookupAccessToken(context.Background(), "pat_nonexistent")
	if err != nil {
		t.Fatalf("LookupAccessToken: %v", err)
	}
	if data != nil {
		t.Fatal("expected nil for unknown token")
	}
}

func TestPodServiceRefreshTokenSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := NewPodService(kv.NewMemory())

	tok, err := svc.IssueRefreshToken(ctx, "usr_1")
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	data, ok, err := svc.ConsumeRefreshToken(ctx, tok)
	if err != nil || !ok || data.UserID != "usr_1" {
		t.Fatalf("first consume = %+v, %v, %v", data, ok, err)
	}

	_, ok, err = svc.ConsumeRefreshToken(ctx, tok)
	if err != nil {
		t.Fatalf("second consume errored: %v", err)
	}
	if ok {
		t.Fatal("second consume of the same refresh token must fail")
	}
}

func TestPodServiceWSTicketSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := NewPodService(kv.NewMemory())

	tok, err := svc.IssueWSTicket(ctx, "usr_1")
	if err != nil {
		t.Fatalf("IssueWSTicket: %v", err)
	}

	data, ok, err := svc.ConsumeWSTicket(ctx, tok)
	if err != nil || !ok || data.UserID != "usr_1" {
		t.Fatalf("first consume = %+v, %v, %v", data, ok, err)
	}

	_, ok, _ = svc.ConsumeWSTicket(ctx, tok)
	if ok {
		t.Fatal("second consume of the same ws ticket must fail")
	}
}
