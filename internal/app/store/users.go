package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"modchat/internal/app/user"
)

const userColumns = `id::text, username, is_admin, is_deleted, last_seen_at, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Username, &u.IsAdmin, &u.IsDeleted, &u.LastSeenAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new account with the given bcrypt hash.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		uuid.NewString(), username, passwordHash, isAdmin)

	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("store: create user: %w", err)
	}
	return u, nil
}

// FindByID returns the live account with the given id, or (nil, nil) when no
// such account exists or it was soft-deleted. Implements user.Directory.
func (s *Store) FindByID(ctx context.Context, id string) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND NOT is_deleted`, id)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find user by id: %w", err)
	}
	return u, nil
}

// FindByUsername returns the live account with the given username, or
// (nil, nil) when absent. Implements user.Directory.
func (s *Store) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 AND NOT is_deleted`, username)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find user by username: %w", err)
	}
	return u, nil
}

// Credentials returns the live account and its password hash for login
// verification, or (nil, "", nil) when the username is unknown.
func (s *Store) Credentials(ctx context.Context, username string) (*user.User, string, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`, password_hash
		FROM users
		WHERE username = $1 AND NOT is_deleted`, username)

	var u user.User
	var hash string
	err := row.Scan(&u.ID, &u.Username, &u.IsAdmin, &u.IsDeleted, &u.LastSeenAt, &u.CreatedAt, &u.UpdatedAt, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("store: credentials lookup: %w", err)
	}
	return &u, hash, nil
}

// ListUsers returns all live accounts ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE NOT is_deleted
		ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// SearchUsers returns live accounts whose username contains the query,
// case-insensitively.
func (s *Store) SearchUsers(ctx context.Context, query string) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username ILIKE '%' || $1 || '%' AND NOT is_deleted
		ORDER BY username`, query)
	if err != nil {
		return nil, fmt.Errorf("store: search users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]user.User, error) {
	users := make([]user.User, 0)
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Username, &u.IsAdmin, &u.IsDeleted, &u.LastSeenAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetAdmin updates the role flag. A live session of the affected user keeps
// its previously captured role until it reconnects.
func (s *Store) SetAdmin(ctx context.Context, id string, isAdmin bool) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET is_admin = $2, updated_at = now()
		WHERE id = $1 AND NOT is_deleted`, id, isAdmin)
	if err != nil {
		return false, fmt.Errorf("store: set admin: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetPassword replaces the account's password hash. Existing sessions and
// tokens stay valid; only future logins verify against the new hash.
func (s *Store) SetPassword(ctx context.Context, id, passwordHash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1 AND NOT is_deleted`, id, passwordHash)
	if err != nil {
		return false, fmt.Errorf("store: set password: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SoftDeleteUser marks an account deleted. The row is retained so historical
// messages keep resolving their sender.
func (s *Store) SoftDeleteUser(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return false, fmt.Errorf("store: soft delete user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TouchLastSeen records a successful login or identify.
func (s *Store) TouchLastSeen(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET last_seen_at = now(), updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: touch last seen: %w", err)
	}
	return nil
}

// EnsureAdmin creates or restores the bootstrap admin account. An existing
// account with the same username is promoted and undeleted; its password is
// left untouched.
func (s *Store) EnsureAdmin(ctx context.Context, username, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, is_admin)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (username)
		DO UPDATE SET is_admin = TRUE, is_deleted = FALSE, updated_at = now()`,
		uuid.NewString(), username, passwordHash)
	if err != nil {
		return fmt.Errorf("store: ensure admin: %w", err)
	}
	return nil
}
