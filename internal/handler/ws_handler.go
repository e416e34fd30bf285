/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
upgrading the HTTP connection to WebSocket, and initiating the client lifecycle. A
connection starts unauthenticated; identity comes either from a JWT passed in the
token query parameter or from a later user_connected action.
*/
package handler

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"modchat/internal/app/chat"
	"modchat/internal/pkg/auth/jwt"
	"modchat/internal/pkg/errs"
	"modchat/internal/pkg/limiter"
	"modchat/internal/pkg/logx"
	"modchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		// Optional token identity, resolved before the upgrade so a bad token
		// only logs a warning while the connection still proceeds
		// unauthenticated.
		var tokenUserID string
		if tokenString := r.URL.Query().Get("token"); tokenString != "" {
			payload, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
			if err != nil {
				logx.Warn("WebSocket token invalid, connection starts unauthenticated.", "error", err)
			} else {
				tokenUserID = payload.ID
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(conn)
		session := deps.Hub.NewSession(client)

		go client.WritePump()

		// Actions run on a background context: a disconnect mid-operation
		// lets in-flight persistence complete rather than cancelling it.
		ctx := context.Background()

		if tokenUserID != "" {
			session.Identify(ctx, tokenUserID)
		}

		client.ReadPump(ctx, session)
	}
}
