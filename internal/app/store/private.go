package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"modchat/internal/app/message"
)

const privateMessageQuery = `
	SELECT pm.id::text,
	       pm.sender_id::text, su.username,
	       pm.recipient_id::text, ru.username,
	       pm.content, pm.read, pm.read_at,
	       pm.created_at, pm.updated_at
	FROM private_messages pm
	JOIN users su ON pm.sender_id = su.id
	JOIN users ru ON pm.recipient_id = ru.id`

func scanPrivateMessage(row pgx.Row) (*message.PrivateMessage, error) {
	var m message.PrivateMessage
	err := row.Scan(&m.ID,
		&m.Sender.ID, &m.Sender.Username,
		&m.Recipient.ID, &m.Recipient.Username,
		&m.Content, &m.Read, &m.ReadAt,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreatePrivateMessage persists a direct message and returns it with both
// party usernames resolved.
func (s *Store) CreatePrivateMessage(ctx context.Context, senderID, recipientID, content string) (*message.PrivateMessage, error) {
	id := uuid.NewString()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO private_messages (id, sender_id, recipient_id, content)
		VALUES ($1, $2, $3, $4)`, id, senderID, recipientID, content)
	if err != nil {
		return nil, fmt.Errorf("store: create private message: %w", err)
	}

	return s.GetPrivateMessage(ctx, id)
}

// GetPrivateMessage returns the private message with the given id, or
// (nil, nil) when absent.
func (s *Store) GetPrivateMessage(ctx context.Context, id string) (*message.PrivateMessage, error) {
	row := s.pool.QueryRow(ctx, privateMessageQuery+` WHERE pm.id = $1`, id)

	m, err := scanPrivateMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get private message: %w", err)
	}
	return m, nil
}

// ConversationBetween returns the messages exchanged between two users in
// either direction, most recent first.
func (s *Store) ConversationBetween(ctx context.Context, userID, otherID string, limit int) ([]message.PrivateMessage, error) {
	rows, err := s.pool.Query(ctx, privateMessageQuery+`
		WHERE (pm.sender_id = $1 AND pm.recipient_id = $2)
		   OR (pm.sender_id = $2 AND pm.recipient_id = $1)
		ORDER BY pm.created_at DESC
		LIMIT $3`, userID, otherID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: conversation between: %w", err)
	}
	defer rows.Close()

	return collectPrivateMessages(rows)
}

func collectPrivateMessages(rows pgx.Rows) ([]message.PrivateMessage, error) {
	messages := make([]message.PrivateMessage, 0)
	for rows.Next() {
		var m message.PrivateMessage
		err := rows.Scan(&m.ID,
			&m.Sender.ID, &m.Sender.Username,
			&m.Recipient.ID, &m.Recipient.Username,
			&m.Content, &m.Read, &m.ReadAt,
			&m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("store: scan private message row: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ConversationsFor summarizes the user's private conversations: one row per
// partner with the last exchange time and how many of that partner's messages
// remain unread, ordered by recency.
func (s *Store) ConversationsFor(ctx context.Context, userID string, limit int) ([]message.ConversationSummary, error) {
	rows, err := s.pool.Query(ctx, `
		WITH last_messages AS (
			SELECT CASE
			           WHEN pm.sender_id = $1 THEN pm.recipient_id
			           ELSE pm.sender_id
			       END AS other_user_id,
			       MAX(pm.created_at) AS last_message_time
			FROM private_messages pm
			WHERE pm.sender_id = $1 OR pm.recipient_id = $1
			GROUP BY other_user_id
		)
		SELECT lm.other_user_id::text,
		       u.username,
		       lm.last_message_time,
		       (SELECT COUNT(*)
		        FROM private_messages
		        WHERE recipient_id = $1 AND sender_id = lm.other_user_id AND NOT read)
		FROM last_messages lm
		JOIN users u ON u.id = lm.other_user_id
		ORDER BY lm.last_message_time DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: conversations for user: %w", err)
	}
	defer rows.Close()

	summaries := make([]message.ConversationSummary, 0)
	for rows.Next() {
		var cs message.ConversationSummary
		if err := rows.Scan(&cs.UserID, &cs.Username, &cs.LastMessageTime, &cs.UnreadCount); err != nil {
			return nil, fmt.Errorf("store: scan conversation summary: %w", err)
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

// UnreadCount returns how many private messages addressed to the user are
// still unread, across all senders.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM private_messages
		WHERE recipient_id = $1 AND NOT read`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: unread count: %w", err)
	}
	return count, nil
}

// MarkConversationRead flips every unread message from senderID to
// recipientID to read in one batch, returning how many rows changed. Called
// when the recipient opens the conversation.
func (s *Store) MarkConversationRead(ctx context.Context, recipientID, senderID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE private_messages
		SET read = TRUE, read_at = now(), updated_at = now()
		WHERE recipient_id = $1 AND sender_id = $2 AND NOT read`, recipientID, senderID)
	if err != nil {
		return 0, fmt.Errorf("store: mark conversation read: %w", err)
	}
	return tag.RowsAffected(), nil
}
