package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accsoftware/acc-backend/internal/domain/entity"
	"github.com/accsoftware/acc-backend/internal/domain/repository"
)

// queryTimeout bounds every statement so a stalled connection cannot hold a
// request open past the client's patience.
const queryTimeout = 5 * time.Second

const uniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, last_name, contact, company, address, logo, image, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, u.Email, u.PasswordHash, u.Name, u.LastName, u.Contact, u.Company, u.Address, u.Logo, u.Image, u.Role)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrEmailTaken
		}
		return err
	}
	return nil
}

const userColumns = `id, email, password_hash, name, last_name, contact, company, address, logo, image, role, otp_hash, otp_expires_at, created_at, updated_at`

func (r *UserRepository) scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.LastName,
		&u.Contact, &u.Company, &u.Address, &u.Logo, &u.Image, &u.Role,
		&u.OTPHash, &u.OTPExpiresAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return r.scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return r.scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *entity.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $1, last_name = $2, contact = $3, company = $4, address = $5,
		    logo = $6, image = $7, updated_at = now()
		WHERE id = $8
	`, u.Name, u.LastName, u.Contact, u.Company, u.Address, u.Logo, u.Image, u.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, updated_at = now()
		WHERE id = $2
	`, passwordHash, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetOTP overwrites any pending code; digest and expiry move together.
func (r *UserRepository) SetOTP(ctx context.Context, id int64, otpHash string, expiresAt time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET otp_hash = $1, otp_expires_at = $2, updated_at = now()
		WHERE id = $3
	`, otpHash, expiresAt, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ClearOTP empties both fields in one statement so a verified code can never
// be replayed.
func (r *UserRepository) ClearOTP(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET otp_hash = '', otp_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
