/*
Package chat contains the realtime core of the moderated chat server.

This file defines the Router struct, the stateless fan-out layer. Given a
message and its moderation or privacy outcome it decides which connections
receive which event and sends best-effort: an absent or saturated target is
skipped, never an error, because the persistent store is the durable source of
truth and clients recover missed events on reload.
*/
package chat

import (
	"github.com/rs/zerolog"

	"modchat/internal/app/message"
	"modchat/internal/pkg/logx"
)

// Router fans events out to connections tracked by the presence registry.
type Router struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewRouter constructs a delivery router over the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{
		registry: registry,
		logger:   logx.Logger().With().Str("component", "DeliveryRouter").Logger(),
	}
}

// BroadcastOnlineUsers sends the full presence snapshot to every connection.
// Called after every identify and disconnect so all clients converge on the
// same online list.
func (d *Router) BroadcastOnlineUsers() {
	d.sendToAll(EventOnlineUsers, d.registry.Online())
}

// NotifyPendingToAdmins announces a newly submitted message to every
// connected admin.
func (d *Router) NotifyPendingToAdmins(msg *message.PublicMessage) {
	d.sendTo(d.registry.Admins(), EventPendingApproval, msg)
}

// BroadcastApproved sends an approved message to every connected client, not
// only admins: this is how approved public messages reach ordinary users in
// real time.
func (d *Router) BroadcastApproved(msg *message.PublicMessage) {
	d.sendToAll(EventApprovedMessage, msg)
}

// NotifyApprovedToAdmins tells all admin UIs to drop the message from their
// pending lists, regardless of which admin approved it.
func (d *Router) NotifyApprovedToAdmins(messageID string) {
	d.sendTo(d.registry.Admins(), EventMessageApproved, ModerationNoticePayload{MessageID: messageID})
}

// NotifyRejectedToAdmins tells all admin UIs to drop the rejected message
// from their pending lists.
func (d *Router) NotifyRejectedToAdmins(messageID string) {
	d.sendTo(d.registry.Admins(), EventMessageRejected, ModerationNoticePayload{MessageID: messageID})
}

// DeliverPrivate routes a persisted private message to its recipient, if
// online, and echoes a sent confirmation to the sender's own connection so
// every tab of the sender converges.
func (d *Router) DeliverPrivate(msg *message.PrivateMessage) {
	if conn, ok := d.registry.Lookup(msg.Recipient.ID); ok {
		d.send(conn, EventReceivePrivateMessage, msg)
	}

	if conn, ok := d.registry.Lookup(msg.Sender.ID); ok {
		d.send(conn, EventPrivateMessageSent, msg)
	}
}

func (d *Router) sendToAll(eventType string, payload any) {
	d.sendTo(d.registry.Conns(), eventType, payload)
}

func (d *Router) sendTo(conns []Conn, eventType string, payload any) {
	if len(conns) == 0 {
		return
	}

	data, err := MarshalEvent(eventType, payload)
	if err != nil {
		d.logger.Error().Err(err).Str("event", eventType).Msg("Failed to marshal event for fan-out.")
		return
	}

	dropped := 0
	for _, conn := range conns {
		if !conn.Send(data) {
			dropped++
		}
	}

	if dropped > 0 {
		d.logger.Warn().
			Str("event", eventType).
			Int("targets", len(conns)).
			Int("dropped", dropped).
			Msg("Some fan-out targets dropped the event.")
	}
}

func (d *Router) send(conn Conn, eventType string, payload any) {
	data, err := MarshalEvent(eventType, payload)
	if err != nil {
		d.logger.Error().Err(err).Str("event", eventType).Msg("Failed to marshal event.")
		return
	}

	if !conn.Send(data) {
		d.logger.Warn().Str("event", eventType).Msg("Target connection dropped the event.")
	}
}
