package gen

import (
	"context"
	"database/sql"
)

const tokenColumns = `id, user_id, token_type, jti, token, expire_at, blacklisted_at, created_at`

func scanToken(row interface{ Scan(...any) error }) (Token, error) {
	var t Token
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.TokenType,
		&t.Jti,
		&t.Token,
		&t.ExpireAt,
		&t.BlacklistedAt,
		&t.CreatedAt,
	)
	return t, err
}

const createToken = `-- name: CreateToken :exec
INSERT INTO tokens (id, user_id, token_type, jti, token, expire_at, blacklisted_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, NULL, ?)`

type CreateTokenParams struct {
	ID        string
	UserID    string
	TokenType string
	Jti       string
	Token     sql.NullString
	ExpireAt  int64
	CreatedAt int64
}

func (q *Queries) CreateToken(ctx context.Context, arg CreateTokenParams) error {
	_, err := q.db.ExecContext(ctx, createToken,
		arg.ID,
		arg.UserID,
		arg.TokenType,
		arg.Jti,
		arg.Token,
		arg.ExpireAt,
		arg.CreatedAt,
	)
	return err
}

const getLiveToken = `-- name: GetLiveToken :one
SELECT ` + tokenColumns + `
FROM tokens
WHERE jti = ? AND user_id = ? AND token_type = ? AND blacklisted_at IS NULL`

type GetLiveTokenParams struct {
	Jti       string
	UserID    string
	TokenType string
}

func (q *Queries) GetLiveToken(ctx context.Context, arg GetLiveTokenParams) (Token, error) {
	return scanToken(q.db.QueryRowContext(ctx, getLiveToken, arg.Jti, arg.UserID, arg.TokenType))
}

const getTokenByJTI = `-- name: GetTokenByJTI :one
SELECT ` + tokenColumns + `
FROM tokens
WHERE jti = ?`

func (q *Queries) GetTokenByJTI(ctx context.Context, jti string) (Token, error) {
	return scanToken(q.db.QueryRowContext(ctx, getTokenByJTI, jti))
}

const getLatestUserToken = `-- name: GetLatestUserToken :one
SELECT ` + tokenColumns + `
FROM tokens
WHERE user_id = ? AND token_type = ? AND blacklisted_at IS NULL
ORDER BY id DESC
LIMIT 1`

func (q *Queries) GetLatestUserToken(ctx context.Context, userID, tokenType string) (Token, error) {
	return scanToken(q.db.QueryRowContext(ctx, getLatestUserToken, userID, tokenType))
}

const deleteTokenByJTI = `-- name: DeleteTokenByJTI :execrows
DELETE FROM tokens
WHERE jti = ?`

func (q *Queries) DeleteTokenByJTI(ctx context.Context, jti string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTokenByJTI, jti)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteUserTokensOfType = `-- name: DeleteUserTokensOfType :execrows
DELETE FROM tokens
WHERE user_id = ? AND token_type = ? AND blacklisted_at IS NULL`

func (q *Queries) DeleteUserTokensOfType(ctx context.Context, userID, tokenType string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUserTokensOfType, userID, tokenType)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const blacklistToken = `-- name: BlacklistToken :execrows
UPDATE tokens
SET blacklisted_at = ?
WHERE jti = ? AND blacklisted_at IS NULL`

func (q *Queries) BlacklistToken(ctx context.Context, at int64, jti string) (int64, error) {
	res, err := q.db.ExecContext(ctx, blacklistToken, at, jti)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const blacklistUserTokens = `-- name: BlacklistUserTokens :execrows
UPDATE tokens
SET blacklisted_at = ?
WHERE user_id = ? AND token_type = ? AND blacklisted_at IS NULL`

func (q *Queries) BlacklistUserTokens(ctx context.Context, at int64, userID, tokenType string) (int64, error) {
	res, err := q.db.ExecContext(ctx, blacklistUserTokens, at, userID, tokenType)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpiredTokens = `-- name: DeleteExpiredTokens :execrows
DELETE FROM tokens
WHERE expire_at <= ?`

func (q *Queries) DeleteExpiredTokens(ctx context.Context, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredTokens, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countUserTokens = `-- name: CountUserTokens :one
SELECT COUNT(*)
FROM tokens
WHERE user_id = ? AND token_type = ? AND blacklisted_at IS NULL`

func (q *Queries) CountUserTokens(ctx context.Context, userID, tokenType string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUserTokens, userID, tokenType).Scan(&n)
	return n, err
}
