package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so a Tx can hand out the same repos bound to the
// transaction, and so nobody opens a transaction inside a transaction.
type Store interface {
	Users() Users
	Tokens() Tokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Inside fn only tx may be used.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// FindLiveUser returns the user only when is_active = 1 AND is_deleted = 0.
	FindLiveUser(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up a non-deleted user by lower-cased email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	GetUserByCognitoSub(ctx context.Context, sub string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID). A taken
	// email or cognito sub gives ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// SetTOTPSecret stores secret only if the user has none yet. It reports
	// whether the write happened.
	SetTOTPSecret(ctx context.Context, userID, secret string) (bool, error)

	// ConfirmTOTP marks the stored secret as proven. A user without a
	// secret gives ErrNotFound.
	ConfirmTOTP(ctx context.Context, userID string) error

	MarkEmailVerified(ctx context.Context, userID string) error
	SetActive(ctx context.Context, userID string, active bool) error
	SoftDeleteUser(ctx context.Context, userID string) error

	// PurgeUser hard-deletes the user; token rows cascade.
	PurgeUser(ctx context.Context, userID string) error
}

type Tokens interface {
	CreateToken(ctx context.Context, t domain.Token) error

	// GetLiveToken finds a non-blacklisted row by jti, owner and kind. Expiry
	// is not checked.
	GetLiveToken(ctx context.Context, jti, userID string, kind domain.TokenKind) (domain.Token, error)

	// GetTokenByJTI returns the row regardless of state.
	GetTokenByJTI(ctx context.Context, jti string) (domain.Token, error)

	// GetLatestUserToken returns the newest non-blacklisted row of kind.
	GetLatestUserToken(ctx context.Context, userID string, kind domain.TokenKind) (domain.Token, error)

	DeleteToken(ctx context.Context, jti string) error

	// DeleteUserTokensOfKind hard-deletes non-blacklisted rows of kind.
	DeleteUserTokensOfKind(ctx context.Context, userID string, kind domain.TokenKind) (int64, error)

	// BlacklistToken sets blacklisted_at if it is not already set. It
	// reports whether a row changed.
	BlacklistToken(ctx context.Context, jti string, at time.Time) (bool, error)

	// BlacklistUserTokens blacklists every live row of kind for the user.
	BlacklistUserTokens(ctx context.Context, userID string, kind domain.TokenKind, at time.Time) (int64, error)

	// DeleteExpiredTokens removes rows with expire_at <= now.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	// CountUserTokens counts non-blacklisted rows of kind, expired or not.
	CountUserTokens(ctx context.Context, userID string, kind domain.TokenKind) (int64, error)
}
