package transport

import (
	"time"

	"github.com/Skotchmaster/streamhub/internal/models"
)

// APIResponse is the body of every successful response.
type APIResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type APIError struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func OK(status int, data any, message string) APIResponse {
	return APIResponse{StatusCode: status, Data: data, Message: message, Success: status < 400}
}

func Fail(status int, message string) APIError {
	return APIError{StatusCode: status, Message: message, Success: false}
}

type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email"    form:"email"`
	Password string `json:"password" form:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" form:"oldPassword"`
	NewPassword string `json:"newPassword" form:"newPassword"`
}

type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

type LoginResponse struct {
	User *models.PublicUser `json:"user"`
	TokenPair
}
