package gateway

import (
	"context"
	"fmt"

	"github.com/voxora/voxora/pkg/session"
	"github.com/voxora/voxora/pkg/token"
)

// HandleResume validates a RESUME opcode's token against the session
// it names, and returns the reconstructed session plus the events the
// client missed while disconnected.
func HandleResume(ctx context.Context, registry *session.Registry, tokens *token.PodService, payload ResumePayload) (*Session, []session.ReplayEntry, error) {
	patData, err := tokens.LookupAccessToken(ctx, payload.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("token lookup failed: %w", err)
	}
	if patData == nil {
		return nil, nil, identifyFailed("Invalid or expired token")
	}

	info, ok := registry.GetInfo(payload.SessionID)
	if !ok {
		return nil, nil, identifyFailed("Session not found")
	}

	if patData.UserID != info.UserID {
		return nil, nil, identifyFailed("Token user mismatch")
	}

	replay, ok := registry.ReplayAfter(payload.SessionID, payload.Seq)
	if !ok {
		return nil, nil, identifyFailed("Sequence too old — please re-identify")
	}

	resumed := NewSessionWithSeq(payload.SessionID, info.UserID, info.Username, info.Communities, info.Seq)
	registry.MarkConnected(payload.SessionID)

	return resumed, replay, nil
}
