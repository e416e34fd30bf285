package handler

import (
	"net/http"

	"modchat/internal/app/chat"
	"modchat/internal/app/store"
	"modchat/internal/app/user"
	"modchat/internal/configs"
	"modchat/internal/pkg/auth/jwt"
	"modchat/internal/pkg/errs"
)

// AppDeps bundles the shared collaborators injected into every handler.
type AppDeps struct {
	Hub    *chat.Hub
	Store  *store.Store
	Config *configs.AppConfig
}

// requireUser resolves the authenticated user behind the request, re-reading
// the account so revoked or deleted users are refused even with a valid token.
func requireUser(deps *AppDeps, r *http.Request) (*user.User, *errs.CustomError) {
	identity := jwt.GetPayloadFromContext(r)
	if identity == nil {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	u, err := deps.Store.FindByID(r.Context(), identity.ID)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown)
	}
	if u == nil {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}
	return u, nil
}

// requireAdmin is requireUser plus a fresh role check. REST moderation and
// user management always verify the stored role, unlike the socket path where
// the role is captured at identify time.
func requireAdmin(deps *AppDeps, r *http.Request) (*user.User, *errs.CustomError) {
	u, customErr := requireUser(deps, r)
	if customErr != nil {
		return nil, customErr
	}
	if !u.IsAdmin {
		return nil, errs.NewError(errs.ErrNotAdmin)
	}
	return u, nil
}
