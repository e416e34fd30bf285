/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"modchat/internal/pkg/errs"
	"modchat/internal/pkg/logx"
	"modchat/internal/pkg/req"
	"modchat/internal/pkg/resp"
)

// HandleListUsers returns every live account. Admin only.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := requireAdmin(deps, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		users, err := deps.Store.ListUsers(r.Context())
		if err != nil {
			logx.Error(err, "failed to list users")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, users)
	}
}

// HandleSearchUsers returns live accounts matching the username fragment.
// Available to every authenticated user (needed for starting private chats).
func HandleSearchUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := requireUser(deps, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		query := chi.URLParam(r, "username")
		if query == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		users, err := deps.Store.SearchUsers(r.Context(), query)
		if err != nil {
			logx.Error(err, "failed to search users", "query", query)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, users)
	}
}

// HandleGetUser returns a single live account by id.
func HandleGetUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := requireUser(deps, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		id := chi.URLParam(r, "id")
		u, err := deps.Store.FindByID(r.Context(), id)
		if err != nil {
			logx.Error(err, "failed to fetch user", "user_id", id)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if u == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		resp.RespondSuccess(w, r, u)
	}
}

type UpdateUserInput struct {
	// IsAdmin, when present, changes the role flag.
	IsAdmin *bool `json:"isAdmin,omitempty"`

	// Password, when non-empty, resets the account password.
	Password string `json:"password,omitempty"`
}

// HandleUpdateUserRole changes a user's admin flag and/or resets their
// password. Admin only. A live session of the affected user keeps the role
// captured at identify time until it reconnects.
func HandleUpdateUserRole(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := requireAdmin(deps, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input UpdateUserInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if input.IsAdmin == nil && input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		id := chi.URLParam(r, "id")

		if input.Password != "" {
			if !validPasswordLength(input.Password) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
				return
			}

			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}

			updated, err := deps.Store.SetPassword(r.Context(), id, string(hashedPassword))
			if err != nil {
				logx.Error(err, "failed to reset user password", "user_id", id)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
			if !updated {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
		}

		if input.IsAdmin != nil {
			updated, err := deps.Store.SetAdmin(r.Context(), id, *input.IsAdmin)
			if err != nil {
				logx.Error(err, "failed to update user role", "user_id", id)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
			if !updated {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
		}

		u, err := deps.Store.FindByID(r.Context(), id)
		if err != nil || u == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, u)
	}
}

// HandleDeleteUser soft-deletes an account. Admin only. A live connection of
// the deleted user is kicked; presence cleanup runs through the normal
// disconnect path.
func HandleDeleteUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, customErr := requireAdmin(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		id := chi.URLParam(r, "id")
		if id == admin.ID {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		deleted, err := deps.Store.SoftDeleteUser(r.Context(), id)
		if err != nil {
			logx.Error(err, "failed to delete user", "user_id", id)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !deleted {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		if conn, ok := deps.Hub.Registry().Lookup(id); ok {
			conn.Kick("Your account has been deactivated.")
		}

		resp.RespondSuccess(w, r, map[string]any{"id": id})
	}
}
