package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfmark/shelfmark/internal/platform/httpx"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, first_name, second_name, nick_name, email, password_hash, role_id`

// Create inserts a new user and returns it with the generated id.
func (r *Repository) Create(ctx context.Context, u User) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (first_name, second_name, nick_name, email, password_hash, role_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+userColumns,
		u.FirstName, u.SecondName, u.NickName, u.Email, u.PasswordHash, u.RoleID)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("users: %w", httpx.ErrDuplicate)
		}
		return nil, fmt.Errorf("users: create: %w", err)
	}
	return created, nil
}

// FindByID fetches a user by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("users: find by id: %w", err)
	}
	return user, nil
}

// FindByNickName fetches a user by nickname.
func (r *Repository) FindByNickName(ctx context.Context, nickName string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE nick_name = $1`, nickName)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("users: find by nickname: %w", err)
	}
	return user, nil
}

// UpdateRole sets the user's role and reports whether a row changed.
func (r *Repository) UpdateRole(ctx context.Context, id int64, roleID int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role_id = $2 WHERE id = $1`, id, roleID)
	if err != nil {
		return false, fmt.Errorf("users: update role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.FirstName, &u.SecondName, &u.NickName, &u.Email, &u.PasswordHash, &u.RoleID); err != nil {
		return nil, err
	}
	return &u, nil
}
