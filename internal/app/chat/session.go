/*
Package chat contains the realtime core of the moderated chat server.

This file defines the Session struct, the per-connection gateway. A session
moves through three states: unauthenticated on raw connect, identified once a
user_connected action (or a pre-validated token) binds it to a user, and
closed on disconnect. While identified it dispatches inbound actions to the
moderation queue and delivery router. The admin role is captured at identify
time; a role change takes effect on the user's next reconnect.
*/
package chat

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"modchat/internal/app/user"
	"modchat/internal/pkg/errs"
	"modchat/internal/pkg/logx"
)

// Session binds one connection to the realtime core. All methods are invoked
// from the connection's read goroutine, so the identity fields need no lock.
type Session struct {
	hub  *Hub
	conn Conn

	// user is nil until the session is identified.
	user   *user.User
	logger zerolog.Logger
}

func newSession(hub *Hub, conn Conn) *Session {
	return &Session{
		hub:    hub,
		conn:   conn,
		logger: logx.Logger().With().Str("component", "Session").Logger(),
	}
}

// HandleAction parses one inbound frame and dispatches it. Malformed frames
// and failures of individual actions never terminate the session; the
// connection stays usable for subsequent actions.
func (s *Session) HandleAction(ctx context.Context, data []byte) {
	action, err := ParseAction(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Client sent invalid action frame.")
		s.sendError("Invalid message format.")
		return
	}

	switch action.Type {
	case ActionUserConnected:
		s.handleConnect(ctx, action.Payload)

	case ActionSendPublicMessage:
		s.handlePublicMessage(ctx, action.Payload)

	case ActionSendPrivateMessage:
		s.handlePrivateMessage(ctx, action.Payload)

	case ActionApproveMessage:
		s.handleApprove(ctx, action.Payload)

	case ActionRejectMessage:
		s.handleReject(ctx, action.Payload)

	default:
		s.logger.Warn().Str("action", action.Type).Msg("Client sent unsupported action type.")
		s.sendError("Unsupported action type.")
	}
}

// Identify resolves the user and registers the connection in the presence
// table. An unknown or deleted user leaves the session unauthenticated with a
// logged warning, per the connect contract: the client sees no error and may
// retry. A previous connection of the same user is superseded and
// force-closed.
func (s *Session) Identify(ctx context.Context, userID string) {
	if userID == "" {
		s.logger.Warn().Msg("Identify requested with empty user id.")
		return
	}

	u, err := s.hub.directory.FindByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("User directory lookup failed during identify.")
		return
	}
	if u == nil {
		s.logger.Warn().Str("user_id", userID).Msg("Identify for unknown or deleted user ignored.")
		return
	}

	s.user = u
	s.logger = s.logger.With().Str("user_id", u.ID).Logger()

	superseded := s.hub.registry.Register(Entry{
		UserID:   u.ID,
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
		Conn:     s.conn,
	})
	if superseded != nil {
		s.logger.Warn().Msg("User already connected. Closing superseded connection.")
		superseded.Kick(errs.NewError(errs.ErrSessionReplaced).Message)
	}

	s.hub.router.BroadcastOnlineUsers()
	s.logger.Info().Str("username", u.Username).Bool("is_admin", u.IsAdmin).Msg("Session identified.")
}

// Close tears the session down on disconnect. If this connection still owned
// a presence entry, the remaining clients get a fresh online snapshot. Safe to
// call for sessions that never identified.
func (s *Session) Close() {
	if s.hub.registry.Unregister(s.conn) {
		s.hub.router.BroadcastOnlineUsers()
	}

	if s.user != nil {
		s.logger.Info().Msg("Session closed.")
	}
}

func (s *Session) handleConnect(ctx context.Context, payload json.RawMessage) {
	var connect ConnectPayload
	// The original wire format also allowed a bare string user id.
	if err := json.Unmarshal(payload, &connect); err != nil {
		var bare string
		if err := json.Unmarshal(payload, &bare); err != nil {
			s.logger.Warn().Msg("Client sent invalid user_connected payload.")
			return
		}
		connect.UserID = bare
	}

	s.Identify(ctx, connect.UserID)
}

func (s *Session) handlePublicMessage(ctx context.Context, payload json.RawMessage) {
	if s.user == nil {
		s.sendError("Please identify before sending messages.")
		return
	}

	var msg PublicMessagePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.sendError("Invalid message payload.")
		return
	}

	created, err := s.hub.queue.Submit(ctx, s.user.ID, msg.Content)
	if err != nil {
		s.sendCustomError(err, "Error sending message.")
		return
	}

	s.hub.router.NotifyPendingToAdmins(created)
	s.send(EventMessageSentForApproval, AckPayload{MessageID: created.ID})
}

func (s *Session) handlePrivateMessage(ctx context.Context, payload json.RawMessage) {
	if s.user == nil {
		s.sendError("Please identify before sending messages.")
		return
	}

	var msg PrivateMessagePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.sendError("Invalid message payload.")
		return
	}

	if msg.Recipient == "" || msg.Recipient == s.user.ID {
		s.sendCustomError(errs.NewError(errs.ErrSelfMessage), "")
		return
	}

	// Same content rules as the public path.
	if strings.TrimSpace(msg.Content) == "" {
		s.sendCustomError(errs.NewError(errs.ErrMessageEmpty), "")
		return
	}
	if len(msg.Content) > MaxContentBytes {
		s.sendCustomError(errs.NewError(errs.ErrMessageTooLong), "")
		return
	}

	recipient, err := s.hub.directory.FindByID(ctx, msg.Recipient)
	if err != nil {
		s.logger.Error().Err(err).Msg("Recipient lookup failed.")
		s.sendError("Error sending private message.")
		return
	}
	if recipient == nil {
		s.sendCustomError(errs.NewError(errs.ErrRecipientNotFound), "")
		return
	}

	created, err := s.hub.store.CreatePrivateMessage(ctx, s.user.ID, recipient.ID, msg.Content)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist private message.")
		s.sendError("Error sending private message.")
		return
	}

	s.hub.router.DeliverPrivate(created)
}

func (s *Session) handleApprove(ctx context.Context, payload json.RawMessage) {
	messageID, ok := s.moderationTarget(payload)
	if !ok {
		return
	}

	approved, err := s.hub.queue.Approve(ctx, messageID, s.user.ID)
	if err == ErrDuplicateInFlight {
		// Another approve/reject for this id is mid-transition. Stay silent;
		// the winning action's broadcast is the only outcome the client needs.
		return
	}
	if err != nil {
		s.sendCustomError(err, "Server error while approving message.")
		return
	}

	s.hub.router.BroadcastApproved(approved)
	s.hub.router.NotifyApprovedToAdmins(messageID)
}

func (s *Session) handleReject(ctx context.Context, payload json.RawMessage) {
	messageID, ok := s.moderationTarget(payload)
	if !ok {
		return
	}

	deleted, err := s.hub.queue.Reject(ctx, messageID)
	if err == ErrDuplicateInFlight {
		return
	}
	if err != nil {
		s.sendCustomError(err, "Server error while rejecting message.")
		return
	}
	if !deleted {
		s.sendCustomError(errs.NewError(errs.ErrMessageNotPending), "")
		return
	}

	s.hub.router.NotifyRejectedToAdmins(messageID)
}

// moderationTarget authorizes a moderation action and extracts its message id.
// The role check uses the identity captured at identify time, not a fresh
// directory read: an admin demoted mid-session keeps moderation rights until
// reconnect.
func (s *Session) moderationTarget(payload json.RawMessage) (string, bool) {
	if s.user == nil || !s.user.IsAdmin {
		s.sendCustomError(errs.NewError(errs.ErrNotAdmin), "")
		return "", false
	}

	var target ModerationPayload
	if err := json.Unmarshal(payload, &target); err != nil {
		var bare string
		if err := json.Unmarshal(payload, &bare); err != nil {
			s.sendError("Invalid moderation payload.")
			return "", false
		}
		target.MessageID = bare
	}

	if target.MessageID == "" {
		s.sendError("Invalid moderation payload.")
		return "", false
	}
	return target.MessageID, true
}

func (s *Session) send(eventType string, payload any) {
	data, err := MarshalEvent(eventType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("Failed to marshal event.")
		return
	}

	if !s.conn.Send(data) {
		s.logger.Warn().Str("event", eventType).Msg("Connection dropped outbound event.")
	}
}

// sendCustomError surfaces an error to the acting connection as a
// message_error event. CustomError messages pass through; anything else falls
// back to the supplied generic text.
func (s *Session) sendCustomError(err error, fallback string) {
	if customErr, ok := err.(*errs.CustomError); ok {
		s.sendError(customErr.Message)
		return
	}
	if fallback == "" {
		fallback = "Something went wrong. Please try again."
	}
	s.sendError(fallback)
}

func (s *Session) sendError(text string) {
	s.send(EventMessageError, ErrorPayload{Error: text})
}
