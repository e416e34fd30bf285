/*
Package chat contains the realtime core of the moderated chat server.

This file defines the Queue struct, which owns the lifecycle of a public
message from submission to its single terminal state. Approvals and rejections
arrive over an unordered, possibly-duplicated channel (socket retries plus the
REST fallback path), so the queue guards each transition twice: an in-memory
in-flight set rejects concurrent duplicates cheaply, and the store's
conditional update (matching only still-pending rows) guarantees at most one
mutation per message even if the fast path is bypassed.
*/
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"modchat/internal/app/message"
	"modchat/internal/pkg/errs"
	"modchat/internal/pkg/logx"
)

// MaxContentBytes is the maximum allowed size (in bytes) of message content.
const MaxContentBytes = 5000

// ErrDuplicateInFlight reports that a moderation action for the same message
// id is already mid-transition. Callers treat it as a silent no-op: the
// duplicate produced no side effect, and surfacing it would only make
// double-click races noisy in admin UIs.
var ErrDuplicateInFlight = errors.New("chat: moderation action already in flight")

// Queue owns the public-message moderation state machine.
type Queue struct {
	store Store

	// mu protects inflight. Held only for the check-and-insert and the
	// removal, never across a store call.
	mu       sync.Mutex
	inflight map[string]struct{}

	logger zerolog.Logger
}

// NewQueue constructs a moderation queue backed by the given store.
func NewQueue(store Store) *Queue {
	return &Queue{
		store:    store,
		inflight: make(map[string]struct{}),
		logger:   logx.Logger().With().Str("component", "ModerationQueue").Logger(),
	}
}

// Submit validates and persists a new public message in the pending state.
func (q *Queue) Submit(ctx context.Context, senderID, content string) (*message.PublicMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errs.NewError(errs.ErrMessageEmpty)
	}
	if len(content) > MaxContentBytes {
		return nil, errs.NewError(errs.ErrMessageTooLong)
	}

	msg, err := q.store.CreatePublicMessage(ctx, senderID, content)
	if err != nil {
		q.logger.Error().Err(err).Str("sender_id", senderID).Msg("Failed to persist pending message.")
		return nil, errs.NewError(errs.ErrUnknown)
	}

	q.logger.Info().Str("message_id", msg.ID).Str("sender_id", senderID).Msg("Public message submitted for approval.")
	return msg, nil
}

// Approve transitions a pending message to approved on behalf of adminID.
// It returns ErrDuplicateInFlight when the same id is already mid-transition,
// and ErrMessageNotPending when the message does not exist or already reached
// a terminal state.
func (q *Queue) Approve(ctx context.Context, messageID, adminID string) (*message.PublicMessage, error) {
	if !q.begin(messageID) {
		return nil, ErrDuplicateInFlight
	}
	defer q.end(messageID)

	msg, err := q.store.ApprovePublicMessage(ctx, messageID, adminID)
	if err != nil {
		q.logger.Error().Err(err).Str("message_id", messageID).Msg("Approve failed at store.")
		return nil, errs.NewError(errs.ErrUnknown)
	}
	if msg == nil {
		return nil, errs.NewError(errs.ErrMessageNotPending)
	}

	q.logger.Info().Str("message_id", messageID).Str("admin_id", adminID).Msg("Message approved.")
	return msg, nil
}

// Reject purges a message if and only if it is still pending. It reports
// whether a deletion occurred; a false result with nil error means the message
// was unknown or already terminal.
func (q *Queue) Reject(ctx context.Context, messageID string) (bool, error) {
	if !q.begin(messageID) {
		return false, ErrDuplicateInFlight
	}
	defer q.end(messageID)

	deleted, err := q.store.RejectPublicMessage(ctx, messageID)
	if err != nil {
		q.logger.Error().Err(err).Str("message_id", messageID).Msg("Reject failed at store.")
		return false, errs.NewError(errs.ErrUnknown)
	}

	if deleted {
		q.logger.Info().Str("message_id", messageID).Msg("Message rejected and purged.")
	}
	return deleted, nil
}

// ListPending returns messages awaiting moderation, most recent first.
func (q *Queue) ListPending(ctx context.Context, limit, offset int) ([]message.PublicMessage, error) {
	return q.store.ListPublicMessages(ctx, false, limit, offset)
}

// ListApproved returns approved messages, most recent first.
func (q *Queue) ListApproved(ctx context.Context, limit, offset int) ([]message.PublicMessage, error) {
	return q.store.ListPublicMessages(ctx, true, limit, offset)
}

// begin performs the synchronous check-and-insert on the in-flight set. It
// must be called before any store operation for the id, and end must run even
// when that operation fails, so an error mid-transition cannot leave the id
// permanently stuck.
func (q *Queue) begin(messageID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, busy := q.inflight[messageID]; busy {
		return false
	}
	q.inflight[messageID] = struct{}{}
	return true
}

func (q *Queue) end(messageID string) {
	q.mu.Lock()
	delete(q.inflight, messageID)
	q.mu.Unlock()
}
