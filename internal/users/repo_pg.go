package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())`
	_, err := r.DB.ExecContext(ctx, query, user.ID, user.Email, nullableString(user.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

const selectUser = `
SELECT id, email, password_hash, reset_token_hash, reset_expires_at, created_at, updated_at
FROM users
`

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	return r.getOne(ctx, selectUser+"WHERE id = $1\nLIMIT 1", userID)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, selectUser+"WHERE email = $1\nLIMIT 1", email)
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg string) (User, error) {
	var user User
	var passwordHash, resetHash sql.NullString
	var resetExpires sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&passwordHash,
		&resetHash,
		&resetExpires,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.PasswordHash = passwordHash.String
	user.ResetTokenHash = resetHash.String
	if resetExpires.Valid {
		t := resetExpires.Time
		user.ResetExpiresAt = &t
	}
	return user, nil
}

func (r *PGRepo) Update(ctx context.Context, user User) error {
	const query = `
UPDATE users
SET password_hash = $2, reset_token_hash = $3, reset_expires_at = $4, updated_at = now()
WHERE id = $1`
	var expires sql.NullTime
	if user.ResetExpiresAt != nil {
		expires = sql.NullTime{Time: *user.ResetExpiresAt, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx, query,
		user.ID,
		nullableString(user.PasswordHash),
		nullableString(user.ResetTokenHash),
		expires,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
