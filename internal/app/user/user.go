/*
Package user contains core data structures related to user identity.

It defines the basic representation of a user within the chat system (the User
struct) and the Directory interface through which the realtime core resolves
user identities. The core never mutates user records; account management lives
behind the persistent store.
*/
package user

import (
	"context"
	"time"
)

// User represents a registered account in the chat system.
// Fields use JSON tags for serialization in API and WebSocket responses.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`

	// Username is the unique display name chosen at registration.
	Username string `json:"username"`

	// IsAdmin reports whether the user may moderate public messages.
	IsAdmin bool `json:"isAdmin"`

	// IsDeleted marks a soft-deleted account. Deleted users cannot log in or
	// identify on the socket; lookups filter them out.
	IsDeleted bool `json:"-"`

	LastSeenAt *time.Time `json:"lastSeen,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Ref is a lightweight user reference embedded in message payloads.
type Ref struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Directory resolves user identities for the realtime core. Implementations
// return (nil, nil) when no live account matches, so callers can distinguish
// "absent or deleted" from a lookup failure.
type Directory interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
}
