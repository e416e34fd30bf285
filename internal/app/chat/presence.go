/*
Package chat contains the realtime core of the moderated chat server.

This file defines the Registry struct, the process-wide presence table. It maps
each identified user to their live connection and role, and feeds both the
online-user broadcasts and the admin fan-out for moderation events.
*/
package chat

import (
	"sort"
	"sync"
)

// Conn is the transport handle the core routes events to. The WebSocket client
// implements it; tests substitute an in-memory recorder.
type Conn interface {
	// Send enqueues a serialized event for delivery. It never blocks; it
	// reports false when the frame was dropped because the connection is
	// saturated or closed.
	Send(data []byte) bool

	// Kick force-closes the connection, used when a newer connection from the
	// same user supersedes it.
	Kick(reason string)
}

// Entry is one row of the presence table. Username and role are denormalized
// at identify time so broadcasts never touch the user directory.
type Entry struct {
	UserID   string
	Username string
	IsAdmin  bool
	Conn     Conn
}

// OnlineUser is the client-facing shape of a presence entry, used in
// online_users snapshots.
type OnlineUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Registry tracks which users currently hold an open connection. It holds at
// most one entry per user: registering again overwrites the previous entry
// (last-connect-wins). The registry is owned by the Hub and passed to sessions
// by reference, never accessed as a global.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry constructs an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register inserts or overwrites the entry for entry.UserID. It returns the
// superseded connection when a different live connection held the slot, so the
// caller can close it; nil otherwise.
func (r *Registry) Register(entry Entry) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	var superseded Conn
	if prev, ok := r.entries[entry.UserID]; ok && prev.Conn != entry.Conn {
		superseded = prev.Conn
	}

	e := entry
	r.entries[entry.UserID] = &e
	return superseded
}

// Unregister removes the entry bound to the given connection. It reports
// whether an entry was removed: a connection that disconnected before
// identifying, or that was superseded by a newer one, removes nothing.
func (r *Registry) Unregister(conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, entry := range r.entries {
		if entry.Conn == conn {
			delete(r.entries, userID)
			return true
		}
	}
	return false
}

// Lookup returns the connection currently bound to the user, if any.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.Conn, true
}

// Online returns a snapshot of all present users, sorted by username so that
// consecutive snapshots are stable for client-side diffing.
func (r *Registry) Online() []OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]OnlineUser, 0, len(r.entries))
	for _, entry := range r.entries {
		users = append(users, OnlineUser{
			ID:       entry.UserID,
			Username: entry.Username,
			IsAdmin:  entry.IsAdmin,
		})
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users
}

// Admins returns the connections of all present admins, for moderation fan-out.
func (r *Registry) Admins() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.IsAdmin {
			conns = append(conns, entry.Conn)
		}
	}
	return conns
}

// Conns returns every live connection, used for full broadcasts.
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.entries))
	for _, entry := range r.entries {
		conns = append(conns, entry.Conn)
	}
	return conns
}
