package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/db"
)

// FindUser returns the account for username, or nil when absent
func (r *Repository) FindUser(ctx context.Context, username string) (*db.UserAccount, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT username, name, role, secret_hash, device_token
		FROM users
		WHERE username = $1
	`

	u, err := scanUser(r.pool.QueryRow(ctx, query, db.NormalizeUsername(username)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Store("find user", err)
	}
	return u, nil
}

// ListUsers returns every account ordered by username
func (r *Repository) ListUsers(ctx context.Context) ([]db.UserAccount, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT username, name, role, secret_hash, device_token FROM users ORDER BY username`)
	if err != nil {
		return nil, apperror.Store("list users", err)
	}
	defer rows.Close()

	users := make([]db.UserAccount, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperror.Store("list users", err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, apperror.Store("list users", err)
	}
	return users, nil
}

// UpsertUsers inserts or updates name and role. Device tokens and secrets of
// existing accounts are kept, and so is the role when none is given. New
// accounts without a role become officers.
func (r *Repository) UpsertUsers(ctx context.Context, users []db.UserAccount) error {
	if err := r.ready(); err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}

	query := `
		INSERT INTO users (username, name, role)
		VALUES ($1, $2, COALESCE(NULLIF($3, ''), 'OFFICER'))
		ON CONFLICT (username) DO UPDATE
		SET name = EXCLUDED.name,
			role = CASE WHEN $3 = '' THEN users.role ELSE EXCLUDED.role END
	`

	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(query, db.NormalizeUsername(u.Username), u.Name, string(u.Role))
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return apperror.Store("upsert users", err)
	}
	return nil
}

// BindDevice sets the device token only while none is bound. It reports
// whether the token was stored.
func (r *Repository) BindDevice(ctx context.Context, username, token string) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET device_token = $2 WHERE username = $1 AND device_token IS NULL`,
		db.NormalizeUsername(username), token)
	if err != nil {
		return false, apperror.Store("bind device", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClearDevice removes the device lock of an account
func (r *Repository) ClearDevice(ctx context.Context, username string) error {
	if err := r.ready(); err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, `UPDATE users SET device_token = NULL WHERE username = $1`, db.NormalizeUsername(username)); err != nil {
		return apperror.Store("clear device", err)
	}
	return nil
}

// SetSecretHash stores a new secret hash for an account
func (r *Repository) SetSecretHash(ctx context.Context, username, hash string) error {
	if err := r.ready(); err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, `UPDATE users SET secret_hash = $2 WHERE username = $1`, db.NormalizeUsername(username), hash); err != nil {
		return apperror.Store("set secret", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*db.UserAccount, error) {
	var u db.UserAccount
	var role string
	if err := row.Scan(&u.Username, &u.Name, &role, &u.SecretHash, &u.DeviceToken); err != nil {
		return nil, err
	}
	u.Role = db.Role(role)
	return &u, nil
}
