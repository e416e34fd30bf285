/*
Package handler provides HTTP handler functions for public message reads and moderation.

The REST moderation endpoints are the fallback path for admin clients whose
socket is degraded. They drive the same moderation queue and delivery fan-out
as the socket actions, so a retry arriving on both paths still results in at
most one state change.
*/
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"modchat/internal/app/chat"
	"modchat/internal/pkg/errs"
	"modchat/internal/pkg/req"
	"modchat/internal/pkg/resp"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 500
)

func listParams(r *http.Request) (limit, offset int) {
	limit = defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxMessageLimit {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

type CreateMessageInput struct {
	Content string `json:"content"`
}

// HandleCreateMessage submits a public message for moderation on behalf of
// the authenticated caller. It goes through the same queue and admin fan-out
// as the socket path.
func HandleCreateMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := requireUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input CreateMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		created, err := deps.Hub.Queue().Submit(r.Context(), u.ID, input.Content)
		if err != nil {
			respondModerationError(w, r, err)
			return
		}

		deps.Hub.Router().NotifyPendingToAdmins(created)

		resp.RespondSuccess(w, r, created)
	}
}

// HandleListApprovedMessages returns the approved public history, most recent first.
func HandleListApprovedMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := requireUser(deps, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		limit, offset := listParams(r)
		messages, err := deps.Hub.Queue().ListApproved(r.Context(), limit, offset)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, messages)
	}
}

// HandleListPendingMessages returns messages awaiting moderation. Admin only.
func HandleListPendingMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := requireAdmin(deps, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		limit, offset := listParams(r)
		messages, err := deps.Hub.Queue().ListPending(r.Context(), limit, offset)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, messages)
	}
}

// HandleApproveMessage terminally approves a pending message and triggers the
// same realtime fan-out as the socket path. Admin only.
func HandleApproveMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, customErr := requireAdmin(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		messageID := chi.URLParam(r, "id")
		approved, err := deps.Hub.Queue().Approve(r.Context(), messageID, admin.ID)
		if errors.Is(err, chat.ErrDuplicateInFlight) {
			// The same id is mid-transition on another path. No side effect
			// here; the winning action broadcasts the outcome.
			resp.RespondSuccess(w, r, nil)
			return
		}
		if err != nil {
			respondModerationError(w, r, err)
			return
		}

		deps.Hub.Router().BroadcastApproved(approved)
		deps.Hub.Router().NotifyApprovedToAdmins(messageID)

		resp.RespondSuccess(w, r, approved)
	}
}

// HandleRejectMessage terminally rejects (purges) a pending message. Admin only.
func HandleRejectMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := requireAdmin(deps, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		messageID := chi.URLParam(r, "id")
		deleted, err := deps.Hub.Queue().Reject(r.Context(), messageID)
		if errors.Is(err, chat.ErrDuplicateInFlight) {
			resp.RespondSuccess(w, r, nil)
			return
		}
		if err != nil {
			respondModerationError(w, r, err)
			return
		}
		if !deleted {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageNotPending))
			return
		}

		deps.Hub.Router().NotifyRejectedToAdmins(messageID)

		resp.RespondSuccess(w, r, map[string]any{"id": messageID})
	}
}

func respondModerationError(w http.ResponseWriter, r *http.Request, err error) {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		resp.RespondError(w, r, customErr)
		return
	}
	resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
}
