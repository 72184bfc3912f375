package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, full_name, user_name, email, password_hash, user_type, created_at, updated_at`

type UsersRepo struct {
	pool    *pgxpool.Pool
	metrics *observability.Prom
}

// metrics may be nil (tests); ops are then executed unobserved.
func NewUsersRepo(pool *pgxpool.Pool, metrics *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, metrics: metrics}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.metrics == nil {
		return fn()
	}
	return r.metrics.ObserveDB(op, fn)
}

func (r *UsersRepo) Create(ctx context.Context, req user.RegisterRequest, passwordHash string) (user.User, error) {
	u := user.User{
		ID:           uuid.NewString(),
		FullName:     req.FullName,
		UserName:     req.UserName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		UserType:     req.UserType,
	}

	err := r.observe("users.create", func() error {
		return r.pool.QueryRow(
			ctx,
			`INSERT INTO users (id, full_name, user_name, email, password_hash, user_type)
	         VALUES ($1, $2, $3, $4, $5, $6)
	         RETURNING created_at, updated_at`,
			u.ID, u.FullName, u.UserName, u.Email, u.PasswordHash, u.UserType,
		).Scan(&u.CreatedAt, &u.UpdatedAt)
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+`
	         FROM users
	         WHERE lower(email) = lower($1)`,
			email,
		).Scan(
			&u.ID,
			&u.FullName,
			&u.UserName,
			&u.Email,
			&u.PasswordHash,
			&u.UserType,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT `+userColumns+`
	         FROM users
	         WHERE id = $1`,
			id,
		).Scan(
			&u.ID,
			&u.FullName,
			&u.UserName,
			&u.Email,
			&u.PasswordHash,
			&u.UserType,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// Update patches only the supplied fields; passwordHash is non-nil only when
// the caller provided a new password.
func (r *UsersRepo) Update(ctx context.Context, id string, req user.UpdateRequest, passwordHash *string) (user.User, error) {
	var u user.User

	err := r.observe("users.update", func() error {
		return r.pool.QueryRow(
			ctx,
			`UPDATE users SET
	            full_name     = COALESCE($2, full_name),
	            user_name     = COALESCE($3, user_name),
	            email         = COALESCE($4, email),
	            password_hash = COALESCE($5, password_hash),
	            user_type     = COALESCE($6, user_type),
	            updated_at    = now()
	         WHERE id = $1
	         RETURNING `+userColumns,
			id, req.FullName, req.UserName, req.Email, passwordHash, req.UserType,
		).Scan(
			&u.ID,
			&u.FullName,
			&u.UserName,
			&u.Email,
			&u.PasswordHash,
			&u.UserType,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}
	return u, nil
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
