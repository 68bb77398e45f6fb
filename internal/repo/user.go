package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/streamhub/internal/domain"
	"github.com/Skotchmaster/streamhub/internal/hash"
	"github.com/Skotchmaster/streamhub/internal/models"
)

// FindByUsernameOrEmail matches on whichever identifiers are non-empty.
func (r *GormRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	q := r.DB.WithContext(ctx)
	switch {
	case username != "" && email != "":
		q = q.Where("username = ? OR email = ?", username, email)
	case username != "":
		q = q.Where("username = ?", username)
	case email != "":
		q = q.Where("email = ?", email)
	default:
		return nil, fmt.Errorf("find user: username or email required: %w", domain.ErrValidation)
	}

	var user models.User
	if err := q.First(&user).Error; err != nil {
		return nil, wrapDBError("find user", err)
	}
	return &user, nil
}

func (r *GormRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, wrapDBError("find user by id", err)
	}
	return &user, nil
}

func (r *GormRepo) VerifyPassword(user *models.User, password string) bool {
	if user == nil {
		return false
	}
	return hash.CheckPassword(user.PasswordHash, password)
}

func (r *GormRepo) Create(ctx context.Context, u *models.User) error {
	if err := validateUser(u); err != nil {
		return err
	}

	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", u.Username, u.Email).
		Count(&count).Error; err != nil {
		return wrapDBError("create user", err)
	}
	if count > 0 {
		return fmt.Errorf("create user: %w", domain.ErrConflict)
	}

	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		return wrapDBError("create user", err)
	}
	return nil
}

// Save writes every column of u. Without ValidateAll the record is written as is.
func (r *GormRepo) Save(ctx context.Context, u *models.User, opts SaveOptions) error {
	if opts.ValidateAll {
		if err := validateUser(u); err != nil {
			return err
		}
	}
	if err := r.DB.WithContext(ctx).Save(u).Error; err != nil {
		return wrapDBError("save user", err)
	}
	return nil
}

// SetRefreshToken overwrites the refresh-token slot and touches no other column.
func (r *GormRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("refresh_token", token)
	if res.Error != nil {
		return wrapDBError("set refresh token", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set refresh token: %w", domain.ErrNotFound)
	}
	return nil
}

// SwapRefreshToken replaces old with next only if old is still the stored value.
// It reports false when another writer got there first.
func (r *GormRepo) SwapRefreshToken(ctx context.Context, id uuid.UUID, old, next string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", id, old).
		Update("refresh_token", next)
	if res.Error != nil {
		return false, wrapDBError("swap refresh token", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("refresh_token", nil).Error
	if err != nil {
		return wrapDBError("clear refresh token", err)
	}
	return nil
}

func (r *GormRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return wrapDBError("update password", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update password: %w", domain.ErrNotFound)
	}
	return nil
}

func validateUser(u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil: %w", domain.ErrValidation)
	}
	var missing []string
	if strings.TrimSpace(u.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(u.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(u.FullName) == "" {
		missing = append(missing, "fullName")
	}
	if strings.TrimSpace(u.Avatar) == "" {
		missing = append(missing, "avatar")
	}
	if u.PasswordHash == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s: %w", strings.Join(missing, ", "), domain.ErrValidation)
	}
	return nil
}
