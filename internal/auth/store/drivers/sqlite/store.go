package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store/drivers/sqlite/gen"
	_ "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	db  *sql.DB
	q   *gen.Queries
	dsn string
	now func() time.Time
}

// NewStore opens the database at dsn. ":memory:" DSNs are pinned to a
// single connection, otherwise every pooled connection would see its own
// empty database.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
	} {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return NewStoreFromDB(db, dsn), nil
}

// NewStoreFromDB wraps an already opened handle. Tests use it with sqlmock.
func NewStoreFromDB(db *sql.DB, dsn string) *Store {
	return &Store{
		db:  db,
		q:   gen.New(db),
		dsn: dsn,
		now: time.Now,
	}
}

// WithClock replaces the time source used for created_at/updated_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx, s.now), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users   { return &usersRepo{q: s.q, now: s.now} }
func (s *Store) Tokens() store.Tokens { return &tokensRepo{q: s.q, now: s.now} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapWriteErr turns unique/primary key violations into ErrAlreadyExists.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return store.ErrAlreadyExists
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

// requireRow reports ErrNotFound for updates that touched nothing.
func requireRow(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func unixTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func mapNullUnixPtr(n sql.NullInt64) *time.Time {
	if n.Valid {
		t := unixTime(n.Int64)
		return &t
	}
	return nil
}

func mapUser(row gen.User) domain.User {
	return domain.User{
		ID:              row.ID,
		Email:           row.Email,
		PasswordHash:    mapNullStringPtr(row.PasswordHash),
		Name:            row.Name,
		AuthProvider:    domain.AuthProvider(row.AuthProvider),
		IsActive:        row.IsActive,
		IsDeleted:       row.IsDeleted,
		IsEmailVerified: row.IsEmailVerified,
		CognitoSub:      mapNullStringPtr(row.CognitoSub),
		TOTPSecret:      mapNullStringPtr(row.TotpSecret),
		TOTPConfirmed:   row.TotpConfirmed,
		CreatedAt:       unixTime(row.CreatedAt),
		UpdatedAt:       unixTime(row.UpdatedAt),
	}
}

func mapToken(row gen.Token) domain.Token {
	return domain.Token{
		ID:            row.ID,
		UserID:        row.UserID,
		Kind:          domain.TokenKind(row.TokenType),
		JTI:           row.Jti,
		Raw:           row.Token.String,
		ExpiresAt:     unixTime(row.ExpireAt),
		BlacklistedAt: mapNullUnixPtr(row.BlacklistedAt),
		CreatedAt:     unixTime(row.CreatedAt),
	}
}
