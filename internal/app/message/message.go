/*
Package message defines the persistent message types shared by the realtime
core, the REST handlers, and the Postgres store.

A public message is created pending and reaches exactly one terminal state:
approved (kept forever, read-only) or rejected (purged from the store). Private
messages are never deleted; their read flag flips when the recipient fetches
the conversation.
*/
package message

import (
	"time"

	"modchat/internal/app/user"
)

// PublicMessage is a chatroom message subject to admin moderation.
type PublicMessage struct {
	ID      string   `json:"id"`
	Sender  user.Ref `json:"sender"`
	Content string   `json:"content"`

	// Approved is false while the message awaits moderation. A rejected
	// message is deleted outright, so a stored message is either pending
	// or approved.
	Approved bool `json:"approved"`

	// ApprovedBy identifies the admin who approved the message; nil while pending.
	ApprovedBy *user.Ref  `json:"approvedBy"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PrivateMessage is a direct message between two distinct users.
type PrivateMessage struct {
	ID        string   `json:"id"`
	Sender    user.Ref `json:"sender"`
	Recipient user.Ref `json:"recipient"`
	Content   string   `json:"content"`

	Read   bool       `json:"read"`
	ReadAt *time.Time `json:"readAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationSummary describes one private conversation partner for the
// conversation list view: who the partner is, when the last message was
// exchanged, and how many of their messages remain unread.
type ConversationSummary struct {
	UserID          string    `json:"userId"`
	Username        string    `json:"username"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
}
