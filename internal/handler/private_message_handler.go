/*
Package handler provides HTTP handler functions for private messaging.

Fetching a conversation also marks every unread message from that partner as
read, in one batch. Sending through REST drives the same delivery router as
the socket path, so an online recipient still gets the realtime event.
*/
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"modchat/internal/app/chat"
	"modchat/internal/pkg/errs"
	"modchat/internal/pkg/logx"
	"modchat/internal/pkg/req"
	"modchat/internal/pkg/resp"
)

const defaultConversationLimit = 100

// HandleUnreadCount returns how many private messages addressed to the caller
// are still unread.
func HandleUnreadCount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := requireUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		count, err := deps.Store.UnreadCount(r.Context(), u.ID)
		if err != nil {
			logx.Error(err, "failed to count unread messages", "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"unreadCount": count})
	}
}

// HandleListConversations summarizes the caller's private conversations.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := requireUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		summaries, err := deps.Store.ConversationsFor(r.Context(), u.ID, 20)
		if err != nil {
			logx.Error(err, "failed to list conversations", "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, summaries)
	}
}

// HandleGetConversation returns the message history with one partner and
// marks every unread message from that partner as read.
func HandleGetConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := requireUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		otherID := chi.URLParam(r, "userId")
		other, err := deps.Store.FindByID(r.Context(), otherID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if other == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		messages, err := deps.Store.ConversationBetween(r.Context(), u.ID, other.ID, defaultConversationLimit)
		if err != nil {
			logx.Error(err, "failed to fetch conversation", "user_id", u.ID, "other_id", other.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if _, err := deps.Store.MarkConversationRead(r.Context(), u.ID, other.ID); err != nil {
			// The read flip is best-effort here; the fetch itself succeeded.
			logx.Error(err, "failed to mark conversation read", "user_id", u.ID, "other_id", other.ID)
		}

		resp.RespondSuccess(w, r, messages)
	}
}

type SendPrivateMessageInput struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

// HandleSendPrivateMessage persists a direct message and routes it to the
// recipient's live connection if present.
func HandleSendPrivateMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := requireUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input SendPrivateMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Recipient == "" || input.Recipient == u.ID {
			resp.RespondError(w, r, errs.NewError(errs.ErrSelfMessage))
			return
		}
		if strings.TrimSpace(input.Content) == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageEmpty))
			return
		}
		if len(input.Content) > chat.MaxContentBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageTooLong))
			return
		}

		recipient, err := deps.Store.FindByID(r.Context(), input.Recipient)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if recipient == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrRecipientNotFound))
			return
		}

		created, err := deps.Store.CreatePrivateMessage(r.Context(), u.ID, recipient.ID, input.Content)
		if err != nil {
			logx.Error(err, "failed to persist private message", "sender_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		deps.Hub.Router().DeliverPrivate(created)

		resp.RespondSuccess(w, r, created)
	}
}
