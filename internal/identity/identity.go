// Package identity owns the canonical user account records and their
// persistence. Accounts are keyed by email; federated sign-ins resolve
// to an existing account or create one on first exchange.
package identity

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no account matches.
var ErrNotFound = errors.New("identity: user not found")

// User is the canonical account record.
type User struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	EmailVerified bool      `db:"email_verified" json:"emailVerified"`
	DisplayName   string    `db:"display_name" json:"displayName,omitempty"`
	PhotoURL      string    `db:"photo_url" json:"photoURL,omitempty"`
	Anonymous     bool      `db:"anonymous" json:"anonymous"`
	Role          string    `db:"role" json:"role,omitempty"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Store is the persistence boundary for user accounts.
type Store interface {
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, user User) error
}
