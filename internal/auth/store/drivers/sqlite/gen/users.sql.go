package gen

import (
	"context"
	"database/sql"
)

const userColumns = `id, email, password_hash, name, auth_provider, is_active, is_deleted,
       is_email_verified, cognito_sub, totp_secret, totp_confirmed, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.AuthProvider,
		&u.IsActive,
		&u.IsDeleted,
		&u.IsEmailVerified,
		&u.CognitoSub,
		&u.TotpSecret,
		&u.TotpConfirmed,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + `
FROM users
WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const findLiveUser = `-- name: FindLiveUser :one
SELECT ` + userColumns + `
FROM users
WHERE id = ? AND is_active = 1 AND is_deleted = 0`

func (q *Queries) FindLiveUser(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, findLiveUser, id))
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + `
FROM users
WHERE email = ? AND is_deleted = 0`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const getUserByCognitoSub = `-- name: GetUserByCognitoSub :one
SELECT ` + userColumns + `
FROM users
WHERE cognito_sub = ?`

func (q *Queries) GetUserByCognitoSub(ctx context.Context, sub string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByCognitoSub, sub))
}

const createUser = `-- name: CreateUser :exec
INSERT INTO users (
    id, email, password_hash, name, auth_provider, is_active, is_deleted,
    is_email_verified, cognito_sub, totp_secret, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`

type CreateUserParams struct {
	ID              string
	Email           string
	PasswordHash    sql.NullString
	Name            string
	AuthProvider    string
	IsActive        bool
	IsEmailVerified bool
	CognitoSub      sql.NullString
	TotpSecret      sql.NullString
	CreatedAt       int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.ID,
		arg.Email,
		arg.PasswordHash,
		arg.Name,
		arg.AuthProvider,
		arg.IsActive,
		arg.IsEmailVerified,
		arg.CognitoSub,
		arg.TotpSecret,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const updateUserPasswordHash = `-- name: UpdateUserPasswordHash :execrows
UPDATE users
SET password_hash = ?, updated_at = ?
WHERE id = ?`

type UpdateUserPasswordHashParams struct {
	PasswordHash string
	UpdatedAt    int64
	ID           string
}

func (q *Queries) UpdateUserPasswordHash(ctx context.Context, arg UpdateUserPasswordHashParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateUserPasswordHash, arg.PasswordHash, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setUserTOTPSecretIfEmpty = `-- name: SetUserTOTPSecretIfEmpty :execrows
UPDATE users
SET totp_secret = ?, updated_at = ?
WHERE id = ? AND (totp_secret IS NULL OR totp_secret = '')`

type SetUserTOTPSecretIfEmptyParams struct {
	TotpSecret string
	UpdatedAt  int64
	ID         string
}

func (q *Queries) SetUserTOTPSecretIfEmpty(ctx context.Context, arg SetUserTOTPSecretIfEmptyParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, setUserTOTPSecretIfEmpty, arg.TotpSecret, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const confirmUserTOTP = `-- name: ConfirmUserTOTP :execrows
UPDATE users
SET totp_confirmed = 1, updated_at = ?
WHERE id = ? AND totp_secret IS NOT NULL AND totp_secret <> ''`

func (q *Queries) ConfirmUserTOTP(ctx context.Context, updatedAt int64, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, confirmUserTOTP, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markUserEmailVerified = `-- name: MarkUserEmailVerified :execrows
UPDATE users
SET is_email_verified = 1, updated_at = ?
WHERE id = ?`

func (q *Queries) MarkUserEmailVerified(ctx context.Context, updatedAt int64, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markUserEmailVerified, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const setUserActive = `-- name: SetUserActive :execrows
UPDATE users
SET is_active = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) SetUserActive(ctx context.Context, active bool, updatedAt int64, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, setUserActive, active, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const softDeleteUser = `-- name: SoftDeleteUser :execrows
UPDATE users
SET is_deleted = 1, is_active = 0, updated_at = ?
WHERE id = ? AND is_deleted = 0`

func (q *Queries) SoftDeleteUser(ctx context.Context, updatedAt int64, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, softDeleteUser, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteUser = `-- name: DeleteUser :execrows
DELETE FROM users
WHERE id = ?`

func (q *Queries) DeleteUser(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUser, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
