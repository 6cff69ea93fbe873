package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SQLStore implements Store on Postgres.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a new SQL-backed user store.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	query := `SELECT id, email, email_verified, display_name, photo_url, anonymous, role, password_hash, created_at FROM users WHERE id = $1`
	if err := s.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (s *SQLStore) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	query := `SELECT id, email, email_verified, display_name, photo_url, anonymous, role, password_hash, created_at FROM users WHERE lower(email) = lower($1)`
	if err := s.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (s *SQLStore) Create(ctx context.Context, user User) error {
	query := `
		INSERT INTO users (id, email, email_verified, display_name, photo_url, anonymous, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.EmailVerified,
		user.DisplayName,
		user.PhotoURL,
		user.Anonymous,
		user.Role,
		user.PasswordHash,
		user.CreatedAt,
	)
	return err
}
