package gen

import "database/sql"

type User struct {
	ID              string
	Email           string
	PasswordHash    sql.NullString
	Name            string
	AuthProvider    string
	IsActive        bool
	IsDeleted       bool
	IsEmailVerified bool
	CognitoSub      sql.NullString
	TotpSecret      sql.NullString
	TotpConfirmed   bool
	CreatedAt       int64
	UpdatedAt       int64
}

type Token struct {
	ID            string
	UserID        string
	TokenType     string
	Jti           string
	Token         sql.NullString
	ExpireAt      int64
	BlacklistedAt sql.NullInt64
	CreatedAt     int64
}
