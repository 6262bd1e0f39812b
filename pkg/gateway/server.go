package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxora/voxora/internal/telemetry"
	"github.com/voxora/voxora/pkg/community"
	"github.com/voxora/voxora/pkg/presence"
	"github.com/voxora/voxora/pkg/session"
	"github.com/voxora/voxora/pkg/token"
)

// identifyTimeout bounds how long a freshly upgraded connection has to
// send its IDENTIFY frame before the server closes it.
const identifyTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server owns the WebSocket upgrade endpoint and the per-connection
// handshake/heartbeat/resume state machine.
type Server struct {
	Registry  *session.Registry
	Presence  *presence.Registry
	Bus       *Bus
	Tokens    *token.PodService
	Directory community.Directory
	Logger    *slog.Logger
}

// NewServer wires the gateway's dependencies.
func NewServer(registry *session.Registry, pres *presence.Registry, bus *Bus, tokens *token.PodService, dir community.Directory, logger *slog.Logger) *Server {
	return &Server{Registry: registry, Presence: pres, Bus: bus, Tokens: tokens, Directory: dir, Logger: logger}
}

// ServeHTTP upgrades the connection and runs its lifetime in a
// dedicated goroutine.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Debug("gateway upgrade failed", slog.Any("error", err))
		return
	}
	telemetry.GatewayConnectionsTotal.Inc()
	// net/http cancels the request context as soon as ServeHTTP returns,
	// so the connection keeps its values but not its cancellation.
	go s.handleConnection(context.WithoutCancel(r.Context()), conn)
}

// inboundFrame carries either a decoded client message or a terminal
// read error from the reader goroutine to the connection's main loop.
type inboundFrame struct {
	msg ClientMessage
	err error
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	inbound := make(chan inboundFrame, 1)
	go s.readLoop(conn, inbound)

	sess, resumed, replay, entryMsg, ok := s.awaitIdentify(conn, inbound)
	if !ok {
		return
	}

	telemetry.GatewaySessionsActive.Inc()
	defer telemetry.GatewaySessionsActive.Dec()

	s.Logger.Info("gateway session established",
		slog.String("session_id", sess.SessionID),
		slog.String("user_id", sess.UserID),
		slog.Int("communities", len(sess.Communities)),
		slog.Bool("resumed", resumed),
	)

	if resumed {
		for _, re := range replay {
			if err := conn.WriteJSON(DispatchMessage(re.EventName, re.Seq, re.Data)); err != nil {
				return
			}
		}
		if err := conn.WriteJSON(resumedMessage(sess)); err != nil {
			return
		}
	} else {
		if err := conn.WriteJSON(entryMsg); err != nil {
			return
		}
		s.Registry.Register(sess.SessionID, sess.UserID, sess.Username, sess.Communities)
	}

	prevStatus, changed := s.Presence.SetOnline(sess.UserID, sess.Communities)
	if changed {
		s.broadcastPresence(sess, prevStatus)
	}

	broadcastCh := s.Bus.Subscribe(sess.SessionID)
	defer s.Bus.Unsubscribe(sess.SessionID)

	s.runSession(ctx, conn, sess, inbound, broadcastCh)

	s.Registry.MarkDisconnected(sess.SessionID)
	s.Presence.RemoveSession(sess.UserID, sess.Communities)

	s.Logger.Info("gateway session ended",
		slog.String("session_id", sess.SessionID),
		slog.String("user_id", sess.UserID),
	)
}

func (s *Server) readLoop(conn *websocket.Conn, out chan<- inboundFrame) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			out <- inboundFrame{err: err}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			out <- inboundFrame{err: errInvalidJSON}
			return
		}
		out <- inboundFrame{msg: msg}
	}
}

var errInvalidJSON = &ErrIdentifyFailed{Reason: "Invalid JSON"}

func (s *Server) awaitIdentify(conn *websocket.Conn, inbound <-chan inboundFrame) (sess *Session, resumed bool, replay []session.ReplayEntry, entryMsg Message, ok bool) {
	timer := time.NewTimer(identifyTimeout)
	defer timer.Stop()

	for {
		select {
		case frame := <-inbound:
			if frame.err != nil {
				sendClose(conn, CloseUnknownError, "Invalid JSON")
				return nil, false, nil, Message{}, false
			}
			switch frame.msg.Op {
			case OpIdentify:
				var payload IdentifyPayload
				if err := json.Unmarshal(frame.msg.D, &payload); err != nil {
					sendClose(conn, CloseAuthFailed, "invalid identify payload")
					return nil, false, nil, Message{}, false
				}
				sess, readyMsg, err := HandleIdentify(context.Background(), s.Tokens, s.Directory, payload)
				if err != nil {
					s.Logger.Debug("identify failed", slog.Any("error", err))
					reason, known := IsIdentifyFailure(err)
					if !known {
						reason = "Internal error"
					}
					sendClose(conn, CloseAuthFailed, reason)
					return nil, false, nil, Message{}, false
				}
				return sess, false, nil, readyMsg, true
			case OpResume:
				var payload ResumePayload
				if err := json.Unmarshal(frame.msg.D, &payload); err != nil {
					sendClose(conn, CloseAuthFailed, "invalid resume payload")
					return nil, false, nil, Message{}, false
				}
				sess, replayEvents, err := HandleResume(context.Background(), s.Registry, s.Tokens, payload)
				if err != nil {
					s.Logger.Debug("resume failed", slog.Any("error", err))
					reason, known := IsIdentifyFailure(err)
					if !known {
						reason = "Internal error"
					}
					_ = conn.WriteJSON(ReconnectMessage(reason))
					sendClose(conn, CloseAuthFailed, reason)
					return nil, false, nil, Message{}, false
				}
				telemetry.GatewaySessionsResumedTotal.Inc()
				return sess, true, replayEvents, Message{}, true
			default:
				sendClose(conn, CloseNotAuthenticated, "Expected IDENTIFY")
				return nil, false, nil, Message{}, false
			}
		case <-timer.C:
			sendClose(conn, CloseSessionTimeout, "IDENTIFY timeout")
			return nil, false, nil, Message{}, false
		}
	}
}

// resumedMessage builds the RESUMED marker sent once every missed
// event has been replayed.
func resumedMessage(sess *Session) Message {
	data, _ := json.Marshal(map[string]string{})
	return DispatchMessage(EventResumed, sess.NextSeq(), data)
}

func (s *Server) runSession(ctx context.Context, conn *websocket.Conn, sess *Session, inbound <-chan inboundFrame, broadcastCh <-chan BroadcastPayload) {
	heartbeatDeadline := time.Duration(HeartbeatIntervalMS) * time.Millisecond * 3 / 2
	ticker := time.NewTicker(heartbeatDeadline)
	defer ticker.Stop()
	gotHeartbeat := true

	for {
		select {
		case frame := <-inbound:
			if frame.err != nil {
				if frame.err == errInvalidJSON {
					sendClose(conn, CloseUnknownError, "Invalid JSON")
				}
				return
			}
			switch frame.msg.Op {
			case OpHeartbeat:
				gotHeartbeat = true
				var hb HeartbeatPayload
				_ = json.Unmarshal(frame.msg.D, &hb)
				if err := conn.WriteJSON(HeartbeatAckMessage(hb.Seq)); err != nil {
					return
				}
			case OpIdentify:
				sendClose(conn, CloseUnknownError, "Already identified")
				return
			case OpResume:
				// Only valid before IDENTIFY completes; once the session is
				// running, resume must reconnect instead.
				sendClose(conn, CloseUnknownOpcode, "Unknown opcode")
				return
			case OpPresenceUpdate:
				var pu PresenceUpdatePayload
				_ = json.Unmarshal(frame.msg.D, &pu)
				switch pu.Status {
				case presence.StatusOnline, presence.StatusIdle, presence.StatusDND:
					if prev, changed := s.Presence.SetStatus(sess.UserID, pu.Status); changed {
						BroadcastPresenceUpdate(s.Bus, sess.UserID, pu.Status, prev, sess.Communities)
					}
				}
			default:
				sendClose(conn, CloseUnknownOpcode, "Unknown opcode")
				return
			}

		case payload, ok := <-broadcastCh:
			if !ok {
				return
			}
			if !sess.IsSubscribed(payload.CommunityID) {
				continue
			}
			seq := sess.NextSeq()
			msg := DispatchMessage(payload.EventName, seq, payload.Data)
			s.Registry.AppendEvent(sess.SessionID, seq, payload.EventName, payload.Data)
			telemetry.GatewayDispatchedTotal.WithLabelValues(payload.EventName).Inc()
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			if !gotHeartbeat {
				s.Logger.Debug("heartbeat timeout — closing connection", slog.String("session_id", sess.SessionID))
				sendClose(conn, CloseSessionTimeout, "Heartbeat timeout")
				return
			}
			gotHeartbeat = false

		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) broadcastPresence(sess *Session, prevStatus string) {
	BroadcastPresenceUpdate(s.Bus, sess.UserID, "online", prevStatus, sess.Communities)
}

// BroadcastPresenceUpdate dispatches a PRESENCE_UPDATE to every
// community a user belongs to. Exported so background workers outside
// a live connection's Server (e.g. the offline sweep) can raise the
// same event a live IDENTIFY does.
func BroadcastPresenceUpdate(bus *Bus, userID, status, previous string, communities map[string]struct{}) {
	data, _ := json.Marshal(map[string]string{"user_id": userID, "status": status, "previous": previous})
	for communityID := range communities {
		bus.Dispatch(BroadcastPayload{CommunityID: communityID, EventName: EventPresenceUpdate, Data: data})
	}
}

func sendClose(conn *websocket.Conn, code int, reason string) {
	telemetry.GatewayCloseTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
