package repository

import (
	"context"
	"errors"
	"time"

	"github.com/accsoftware/acc-backend/internal/domain/entity"
)

var (
	// ErrNotFound is returned when no user row matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when an insert would violate the unique
	// email index. The index is the final arbiter for concurrent sign-ups.
	ErrEmailTaken = errors.New("email already registered")
)

// UserRepository defines the persistence operations the auth subsystem needs.
// Every write is a single-row statement; the store's row atomicity is the
// only transactional guarantee relied upon.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	UpdateProfile(ctx context.Context, u *entity.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetOTP(ctx context.Context, id int64, otpHash string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, id int64) error
}
