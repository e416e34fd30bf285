/*
Package store implements the persistent backend of the chat server on
PostgreSQL via pgx. It provides the user directory consumed by the realtime
core and the handlers, and the public/private message store behind the
moderation queue.

Moderation writes are conditional on the pending state (UPDATE/DELETE matching
only unapproved rows), so a racing duplicate action mutates at most one row
regardless of scheduling.
*/
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"modchat/internal/pkg/logx"
)

// Store bundles all Postgres-backed queries behind one connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New constructs a Store over an initialized connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: logx.Logger().With().Str("component", "Store").Logger(),
	}
}
