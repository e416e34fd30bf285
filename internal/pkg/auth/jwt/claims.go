package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims for the chat server.
// It includes standard claims required by the JWT specification and custom claims
// necessary for identifying and authorizing users.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the unique identifier of the authenticated user.
	ID string `json:"id"`

	// Username is the user's display name, denormalized into the token so that
	// clients can render it without an extra profile fetch.
	Username string `json:"username"`

	// IsAdmin reports whether the user held the admin role when the token was
	// issued. Authoritative role checks re-read the user record; this claim is
	// a hint for client UIs only.
	IsAdmin bool `json:"is_admin"`
}
