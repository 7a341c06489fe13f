package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store/drivers/sqlite/gen"
)

type tokensRepo struct {
	q   *gen.Queries
	now func() time.Time
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.Token) error {
	created := t.CreatedAt
	if created.IsZero() {
		created = r.now()
	}

	err := r.q.CreateToken(ctx, gen.CreateTokenParams{
		ID:        t.ID,
		UserID:    t.UserID,
		TokenType: string(t.Kind),
		Jti:       t.JTI,
		Token:     mapStringNull(t.Raw),
		ExpireAt:  t.ExpiresAt.Unix(),
		CreatedAt: created.Unix(),
	})
	return mapWriteErr(err)
}

func (r *tokensRepo) GetLiveToken(ctx context.Context, jti, userID string, kind domain.TokenKind) (domain.Token, error) {
	row, err := r.q.GetLiveToken(ctx, gen.GetLiveTokenParams{
		Jti:       jti,
		UserID:    userID,
		TokenType: string(kind),
	})
	if err != nil {
		return domain.Token{}, mapNotFound(err)
	}
	return mapToken(row), nil
}

func (r *tokensRepo) GetTokenByJTI(ctx context.Context, jti string) (domain.Token, error) {
	row, err := r.q.GetTokenByJTI(ctx, jti)
	if err != nil {
		return domain.Token{}, mapNotFound(err)
	}
	return mapToken(row), nil
}

func (r *tokensRepo) GetLatestUserToken(ctx context.Context, userID string, kind domain.TokenKind) (domain.Token, error) {
	row, err := r.q.GetLatestUserToken(ctx, userID, string(kind))
	if err != nil {
		return domain.Token{}, mapNotFound(err)
	}
	return mapToken(row), nil
}

func (r *tokensRepo) DeleteToken(ctx context.Context, jti string) error {
	return requireRow(r.q.DeleteTokenByJTI(ctx, jti))
}

func (r *tokensRepo) DeleteUserTokensOfKind(ctx context.Context, userID string, kind domain.TokenKind) (int64, error) {
	return r.q.DeleteUserTokensOfType(ctx, userID, string(kind))
}

func (r *tokensRepo) BlacklistToken(ctx context.Context, jti string, at time.Time) (bool, error) {
	n, err := r.q.BlacklistToken(ctx, at.Unix(), jti)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *tokensRepo) BlacklistUserTokens(ctx context.Context, userID string, kind domain.TokenKind, at time.Time) (int64, error) {
	return r.q.BlacklistUserTokens(ctx, at.Unix(), userID, string(kind))
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.q.DeleteExpiredTokens(ctx, now.Unix())
}

func (r *tokensRepo) CountUserTokens(ctx context.Context, userID string, kind domain.TokenKind) (int64, error) {
	return r.q.CountUserTokens(ctx, userID, string(kind))
}
