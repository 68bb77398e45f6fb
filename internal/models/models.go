package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"      json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"      json:"username"`
	Email        string    `gorm:"uniqueIndex;not null"      json:"email"`
	FullName     string    `gorm:"not null"                  json:"fullName"`
	Avatar       string    `gorm:"not null"                  json:"avatar"`
	CoverImage   string    `                                 json:"coverImage"`
	PasswordHash string    `gorm:"not null"                  json:"-"`
	RefreshToken *string   `gorm:"column:refresh_token"      json:"-"`
	CreatedAt    time.Time `                                 json:"createdAt"`
	UpdatedAt    time.Time `                                 json:"updatedAt"`
}

// PublicUser is what leaves the service: no password hash, no refresh token.
type PublicUser struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// CurrentRefreshToken returns the stored refresh token or "" when the slot is empty.
func (u *User) CurrentRefreshToken() string {
	if u.RefreshToken == nil {
		return ""
	}
	return *u.RefreshToken
}
