package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"modchat/internal/app/message"
	"modchat/internal/app/user"
)

const publicMessageQuery = `
	SELECT m.id::text, m.sender_id::text, u.username,
	       m.content, m.approved,
	       m.approved_by::text, ua.username,
	       m.approved_at, m.created_at, m.updated_at
	FROM messages m
	JOIN users u ON m.sender_id = u.id
	LEFT JOIN users ua ON m.approved_by = ua.id`

func scanPublicMessage(row pgx.Row) (*message.PublicMessage, error) {
	var m message.PublicMessage
	var approvedByID, approvedByName *string

	err := row.Scan(&m.ID, &m.Sender.ID, &m.Sender.Username,
		&m.Content, &m.Approved,
		&approvedByID, &approvedByName,
		&m.ApprovedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if approvedByID != nil {
		ref := user.Ref{ID: *approvedByID}
		if approvedByName != nil {
			ref.Username = *approvedByName
		}
		m.ApprovedBy = &ref
	}
	return &m, nil
}

// CreatePublicMessage persists a new pending message and returns it with the
// sender's username resolved for display.
func (s *Store) CreatePublicMessage(ctx context.Context, senderID, content string) (*message.PublicMessage, error) {
	id := uuid.NewString()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, content)
		VALUES ($1, $2, $3)`, id, senderID, content)
	if err != nil {
		return nil, fmt.Errorf("store: create public message: %w", err)
	}

	return s.GetPublicMessage(ctx, id)
}

// GetPublicMessage returns the message with the given id, or (nil, nil) when
// absent (never created, or rejected and purged).
func (s *Store) GetPublicMessage(ctx context.Context, id string) (*message.PublicMessage, error) {
	row := s.pool.QueryRow(ctx, publicMessageQuery+` WHERE m.id = $1`, id)

	m, err := scanPublicMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get public message: %w", err)
	}
	return m, nil
}

// ApprovePublicMessage marks a still-pending message approved by adminID and
// returns the updated record. The update matches only unapproved rows, so of
// two racing approvals exactly one mutates the row; the loser gets (nil, nil),
// the same outcome as an unknown or already-terminal id.
func (s *Store) ApprovePublicMessage(ctx context.Context, messageID, adminID string) (*message.PublicMessage, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET approved = TRUE, approved_by = $2, approved_at = now(), updated_at = now()
		WHERE id = $1 AND NOT approved`, messageID, adminID)
	if err != nil {
		return nil, fmt.Errorf("store: approve public message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	return s.GetPublicMessage(ctx, messageID)
}

// RejectPublicMessage deletes a message if and only if it is still pending,
// reporting whether a deletion occurred.
func (s *Store) RejectPublicMessage(ctx context.Context, messageID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM messages
		WHERE id = $1 AND NOT approved`, messageID)
	if err != nil {
		return false, fmt.Errorf("store: reject public message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListPublicMessages returns messages in the given moderation state, most
// recent first.
func (s *Store) ListPublicMessages(ctx context.Context, approved bool, limit, offset int) ([]message.PublicMessage, error) {
	rows, err := s.pool.Query(ctx, publicMessageQuery+`
		WHERE m.approved = $1
		ORDER BY m.created_at DESC
		LIMIT $2 OFFSET $3`, approved, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list public messages: %w", err)
	}
	defer rows.Close()

	messages := make([]message.PublicMessage, 0)
	for rows.Next() {
		var m message.PublicMessage
		var approvedByID, approvedByName *string

		err := rows.Scan(&m.ID, &m.Sender.ID, &m.Sender.Username,
			&m.Content, &m.Approved,
			&approvedByID, &approvedByName,
			&m.ApprovedAt, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("store: scan public message row: %w", err)
		}

		if approvedByID != nil {
			ref := user.Ref{ID: *approvedByID}
			if approvedByName != nil {
				ref.Username = *approvedByName
			}
			m.ApprovedBy = &ref
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
