package gateway

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/voxora/voxora/pkg/community"
	"github.com/voxora/voxora/pkg/token"
)

// ErrIdentifyFailed carries the client-facing reason of a rejected
// IDENTIFY or RESUME; the gateway connection handler sends that text in
// a RECONNECT/close frame. Any other error is only logged, and the
// client is sent a generic "Internal error" reason instead.
type ErrIdentifyFailed struct {
	Reason string
}

func (e *ErrIdentifyFailed) Error() string { return e.Reason }

func identifyFailed(reason string) error { return &ErrIdentifyFailed{Reason: reason} }

// HandleIdentify consumes the WS ticket, loads the user's profile and
// community memberships, and builds the session plus its READY
// message.
func HandleIdentify(ctx context.Context, tokens *token.PodService, dir community.Directory, payload IdentifyPayload) (*Session, Message, error) {
	ticketData, ok, err := tokens.ConsumeWSTicket(ctx, payload.Ticket)
	if err != nil {
		return nil, Message{}, fmt.Errorf("ticket lookup failed: %w", err)
	}
	if !ok {
		return nil, Message{}, identifyFailed("Invalid or expired ticket")
	}
	userID := ticketData.UserID

	user, err := dir.GetUser(ctx, userID)
	if err != nil {
		return nil, Message{}, identifyFailed("User not found")
	}

	communityIDs, err := dir.GetMemberCommunityIDs(ctx, userID)
	if err != nil {
		return nil, Message{}, identifyFailed("Failed to load memberships")
	}
	communitySet := make(map[string]struct{}, len(communityIDs))
	for _, id := range communityIDs {
		communitySet[id] = struct{}{}
	}

	comms, err := dir.GetCommunities(ctx, communityIDs)
	if err != nil {
		return nil, Message{}, identifyFailed("Failed to load communities")
	}

	sessionID, err := newSessionID()
	if err != nil {
		return nil, Message{}, fmt.Errorf("generating session id: %w", err)
	}
	session := NewSession(sessionID, userID, user.Username, communitySet)
	seq := session.NextSeq()

	readyData, err := json.Marshal(map[string]any{
		"session_id": sessionID,
		"user": map[string]any{
			"id":           user.ID,
			"username":     user.Username,
			"display_name": user.DisplayName,
			"avatar_url":   user.AvatarURL,
		},
		"communities":       comms,
		"heartbeat_interval": HeartbeatIntervalMS,
	})
	if err != nil {
		return nil, Message{}, fmt.Errorf("encoding READY payload: %w", err)
	}

	return session, DispatchMessage(EventReady, seq, readyData), nil
}

// IsIdentifyFailure reports whether err is an IDENTIFY failure carrying
// a client-facing reason, and returns that reason.
func IsIdentifyFailure(err error) (string, bool) {
	var target *ErrIdentifyFailed
	if errors.As(err, &target) {
		return target.Reason, true
	}
	return "", false
}

func newSessionID() (string, error) {
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, rand.Reader)
	if err != nil {
		return "", err
	}
	return "gw_" + id.String(), nil
}
