package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
	"github.com/aussiebroadwan/tokenauth/internal/auth/store/drivers/sqlite/gen"
)

type usersRepo struct {
	q   *gen.Queries
	now func() time.Time
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row, err := r.q.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) FindLiveUser(ctx context.Context, id string) (domain.User, error) {
	row, err := r.q.FindLiveUser(ctx, id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row, err := r.q.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) GetUserByCognitoSub(ctx context.Context, sub string) (domain.User, error) {
	row, err := r.q.GetUserByCognitoSub(ctx, sub)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	created := u.CreatedAt
	if created.IsZero() {
		created = r.now()
	}

	err := r.q.CreateUser(ctx, gen.CreateUserParams{
		ID:              u.ID,
		Email:           u.Email,
		PasswordHash:    mapOptionalString(u.PasswordHash),
		Name:            u.Name,
		AuthProvider:    string(u.AuthProvider),
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		CognitoSub:      mapOptionalString(u.CognitoSub),
		TotpSecret:      mapOptionalString(u.TOTPSecret),
		CreatedAt:       created.Unix(),
	})
	return mapWriteErr(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return requireRow(r.q.UpdateUserPasswordHash(ctx, gen.UpdateUserPasswordHashParams{
		PasswordHash: newHash,
		UpdatedAt:    r.now().Unix(),
		ID:           userID,
	}))
}

func (r *usersRepo) SetTOTPSecret(ctx context.Context, userID, secret string) (bool, error) {
	n, err := r.q.SetUserTOTPSecretIfEmpty(ctx, gen.SetUserTOTPSecretIfEmptyParams{
		TotpSecret: secret,
		UpdatedAt:  r.now().Unix(),
		ID:         userID,
	})
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *usersRepo) ConfirmTOTP(ctx context.Context, userID string) error {
	return requireRow(r.q.ConfirmUserTOTP(ctx, r.now().Unix(), userID))
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	return requireRow(r.q.MarkUserEmailVerified(ctx, r.now().Unix(), userID))
}

func (r *usersRepo) SetActive(ctx context.Context, userID string, active bool) error {
	return requireRow(r.q.SetUserActive(ctx, active, r.now().Unix(), userID))
}

func (r *usersRepo) SoftDeleteUser(ctx context.Context, userID string) error {
	return requireRow(r.q.SoftDeleteUser(ctx, r.now().Unix(), userID))
}

func (r *usersRepo) PurgeUser(ctx context.Context, userID string) error {
	return requireRow(r.q.DeleteUser(ctx, userID))
}
