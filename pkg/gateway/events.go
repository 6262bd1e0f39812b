// Package gateway implements the Pod's real-time WebSocket gateway: the
// per-connection handshake/heartbeat/resume state machine and the
// broadcast bus that fans dispatched events out to subscribed sessions.
package gateway

import "encoding/json"

// Opcodes exchanged over the gateway wire protocol.
const (
	OpDispatch      uint8 = 0
	OpHeartbeat     uint8 = 1
	OpIdentify      uint8 = 2
	OpResume        uint8 = 3
	OpHeartbeatAck  uint8 = 6
	OpReconnect     uint8 = 7
	OpPresenceUpdate uint8 = 9
)

// Close codes in the application-defined 4000 range.
const (
	CloseUnknownError     = 4000
	CloseUnknownOpcode    = 4001
	CloseNotAuthenticated = 4003
	CloseAuthFailed       = 4004
	CloseSessionTimeout   = 4009
)

// Dispatch event names.
const (
	EventReady                   = "READY"
	EventMessageCreate           = "MESSAGE_CREATE"
	EventMessageUpdate           = "MESSAGE_UPDATE"
	EventMessageDelete           = "MESSAGE_DELETE"
	EventMessageReactionAdd      = "MESSAGE_REACTION_ADD"
	EventMessageReactionRemove   = "MESSAGE_REACTION_REMOVE"
	EventChannelCreate           = "CHANNEL_CREATE"
	EventChannelUpdate           = "CHANNEL_UPDATE"
	EventChannelDelete           = "CHANNEL_DELETE"
	EventCommunityUpdate         = "COMMUNITY_UPDATE"
	EventMemberJoin              = "MEMBER_JOIN"
	EventMemberLeave             = "MEMBER_LEAVE"
	EventMemberUpdate            = "MEMBER_UPDATE"
	EventResumed                 = "RESUMED"
	EventTypingStart             = "TYPING_START"
	EventChannelPinsUpdate       = "CHANNEL_PINS_UPDATE"
	EventPresenceUpdate          = "PRESENCE_UPDATE"
)

// HeartbeatIntervalMS is advertised to clients in the READY payload.
const HeartbeatIntervalMS = 41250

// Message is a server-to-client gateway frame.
type Message struct {
	Op uint8           `json:"op"`
	T  *string         `json:"t,omitempty"`
	S  *uint64         `json:"s,omitempty"`
	D  json.RawMessage `json:"d"`
}

// DispatchMessage builds an op=0 DISPATCH frame.
func DispatchMessage(eventName string, seq uint64, data json.RawMessage) Message {
	return Message{Op: OpDispatch, T: &eventName, S: &seq, D: data}
}

// ReconnectMessage builds an op=7 RECONNECT frame telling the client to
// re-IDENTIFY.
func ReconnectMessage(reason string) Message {
	d, _ := json.Marshal(map[string]string{"reason": reason})
	return Message{Op: OpReconnect, D: d}
}

// HeartbeatAckMessage builds an op=6 HEARTBEAT_ACK frame.
func HeartbeatAckMessage(seq uint64) Message {
	d, _ := json.Marshal(map[string]uint64{"ack": seq})
	return Message{Op: OpHeartbeatAck, D: d}
}

// ClientMessage is a client-to-server gateway frame.
type ClientMessage struct {
	Op uint8           `json:"op"`
	T  *string         `json:"t,omitempty"`
	D  json.RawMessage `json:"d"`
}

// IdentifyPayload is the body of an OP_IDENTIFY frame.
type IdentifyPayload struct {
	Ticket string `json:"ticket"`
}

// ResumePayload is the body of an OP_RESUME frame.
type ResumePayload struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Seq       uint64 `json:"seq"`
}

// HeartbeatPayload is the body of an OP_HEARTBEAT frame.
type HeartbeatPayload struct {
	Seq uint64 `json:"seq"`
}

// PresenceUpdatePayload is the body of a client-sent OP_PRESENCE_UPDATE
// frame.
type PresenceUpdatePayload struct {
	Status string `json:"status"`
}
