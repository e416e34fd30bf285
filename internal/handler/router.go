/*
Package handler provides the HTTP handlers and routing setup for the moderated chat server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"modchat/internal/pkg/auth/jwt"
	"modchat/internal/pkg/limiter"
	"modchat/internal/pkg/logx"
	"modchat/internal/pkg/resp"
)

const (
	LoginRate    = 0.5
	LoginBurst   = 5
	ConnectRate  = 0.2
	ConnectBurst = 5
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	loginLimiter := limiter.NewIPRateLimiter(rate.Limit(LoginRate), LoginBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "ModChat Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", HandleRegister(deps))
			auth.With(loginLimiter.Middleware).Post("/login", HandleLogin(deps))
			auth.Get("/me", HandleGetMe(deps))
		})

		api.Route("/users", func(users chi.Router) {
			users.Get("/", HandleListUsers(deps))
			users.Get("/search/{username}", HandleSearchUsers(deps))
			users.Get("/{id}", HandleGetUser(deps))
			users.Put("/{id}", HandleUpdateUserRole(deps))
			users.Delete("/{id}", HandleDeleteUser(deps))
		})

		api.Route("/messages", func(messages chi.Router) {
			messages.Get("/", HandleListApprovedMessages(deps))
			messages.Post("/", HandleCreateMessage(deps))
			messages.Get("/pending", HandleListPendingMessages(deps))
			messages.Put("/{id}/approve", HandleApproveMessage(deps))
			messages.Delete("/{id}", HandleRejectMessage(deps))

			messages.Route("/private", func(private chi.Router) {
				private.Get("/unread", HandleUnreadCount(deps))
				private.Get("/conversations", HandleListConversations(deps))
				private.Get("/{userId}", HandleGetConversation(deps))
				private.Post("/", HandleSendPrivateMessage(deps))
			})
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
