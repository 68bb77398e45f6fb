// Package domain holds the error kinds shared by the store, the token service
// and the session coordinator. Callers match them with errors.Is.
package domain

import "errors"

var (
	ErrValidation         = errors.New("validation")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrMissingToken  = errors.New("missing token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrTokenMismatch = errors.New("refresh token mismatch")

	ErrPersistence = errors.New("persistence failure")
	ErrUpload      = errors.New("media upload failed")
)
