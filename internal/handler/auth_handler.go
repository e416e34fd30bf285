/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"net/http"
	"regexp"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"modchat/internal/app/db"
	"modchat/internal/pkg/auth/jwt"
	"modchat/internal/pkg/errs"
	"modchat/internal/pkg/logx"
	"modchat/internal/pkg/req"
	"modchat/internal/pkg/resp"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// validPasswordLength bounds password length in runes, shared by registration
// and admin-initiated password resets.
func validPasswordLength(password string) bool {
	n := utf8.RuneCountInString(password)
	return n >= 6 && n <= 50
}

type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister processes the request to create a new user account with only username and password.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !usernameRegex.MatchString(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		if !validPasswordLength(input.Password) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		u, err := deps.Store.CreateUser(r.Context(), input.Username, string(hashedPassword), false)
		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("registration conflict: username already exists", "username", input.Username)
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "failed to create user in database")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		token, err := issueToken(deps, u.ID, u.Username, u.IsAdmin)
		if err != nil {
			logx.Error(err, "failed to generate token after registration")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  u,
		})
	}
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin verifies user credentials and issues a JWT token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, hash, err := deps.Store.Credentials(r.Context(), input.Username)
		if err != nil {
			logx.Error(err, "login: credentials lookup failed", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if u == nil {
			logx.Warn("login: unknown username", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := deps.Store.TouchLastSeen(r.Context(), u.ID); err != nil {
			logx.Error(err, "login: failed to update last_seen_at", "user_id", u.ID)
		}

		token, err := issueToken(deps, u.ID, u.Username, u.IsAdmin)
		if err != nil {
			logx.Error(err, "login: jwt generation failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  u,
		})
	}
}

// HandleGetMe returns the authenticated user's own account.
func HandleGetMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := requireUser(deps, r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, u)
	}
}

func issueToken(deps *AppDeps, id, username string, isAdmin bool) (string, error) {
	payload := &jwt.Payload{
		ID:       id,
		Username: username,
		IsAdmin:  isAdmin,
	}
	return jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.UserIdentityExpiration)
}
