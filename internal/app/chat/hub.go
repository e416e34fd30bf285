/*
Package chat contains the realtime core of the moderated chat server.

This file defines the Hub struct, which owns the presence registry, the
moderation queue, and the delivery router for the single public chatroom, and
spawns a session gateway for each incoming connection. The Hub is created once
per server instance and injected where needed; nothing in the core is a
package-level singleton, so tests run isolated hubs side by side.
*/
package chat

import (
	"context"

	"github.com/rs/zerolog"

	"modchat/internal/app/message"
	"modchat/internal/app/user"
	"modchat/internal/pkg/logx"
)

// Store is the persistent message backend the core writes through. The
// Postgres store implements it; tests substitute an in-memory fake. Approve
// and Reject must be conditional on the pending state and report "no row
// matched" as (nil, nil) and (false, nil) respectively: that conditional
// write is the primary exactly-once defense for moderation.
type Store interface {
	CreatePublicMessage(ctx context.Context, senderID, content string) (*message.PublicMessage, error)
	ApprovePublicMessage(ctx context.Context, messageID, adminID string) (*message.PublicMessage, error)
	RejectPublicMessage(ctx context.Context, messageID string) (bool, error)
	ListPublicMessages(ctx context.Context, approved bool, limit, offset int) ([]message.PublicMessage, error)
	CreatePrivateMessage(ctx context.Context, senderID, recipientID, content string) (*message.PrivateMessage, error)
}

// Hub wires the realtime core together for one server process.
type Hub struct {
	registry  *Registry
	queue     *Queue
	router    *Router
	directory user.Directory
	store     Store
	logger    zerolog.Logger
}

// NewHub constructs the realtime core over the given user directory and
// message store.
func NewHub(directory user.Directory, store Store) *Hub {
	registry := NewRegistry()

	return &Hub{
		registry:  registry,
		queue:     NewQueue(store),
		router:    NewRouter(registry),
		directory: directory,
		store:     store,
		logger:    logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// NewSession binds a fresh, unauthenticated session gateway to the connection.
func (h *Hub) NewSession(conn Conn) *Session {
	return newSession(h, conn)
}

// Registry exposes the presence table for read-side consumers (handlers
// checking who is online, account deletion kicking live sessions).
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Queue exposes the moderation queue so the REST moderation endpoints share
// the same state machine and duplicate suppression as the socket path.
func (h *Hub) Queue() *Queue {
	return h.queue
}

// Router exposes the delivery router for REST endpoints that trigger realtime
// fan-out (moderation fallback path, private send).
func (h *Hub) Router() *Router {
	return h.router
}

// Shutdown force-closes every live connection. In-flight persistence calls
// complete on their own; their broadcasts are simply undeliverable.
func (h *Hub) Shutdown() {
	conns := h.registry.Conns()
	h.logger.Info().Int("connections", len(conns)).Msg("Shutting down hub, closing live connections.")

	for _, conn := range conns {
		conn.Kick("Server is shutting down.")
	}
}
