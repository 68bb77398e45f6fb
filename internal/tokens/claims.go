package tokens

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is the closed claim set of an access token. Subject is the user id.
type AccessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only the user id (Subject) and a unique token id.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// AccessIdentity is the data embedded into a new access token.
type AccessIdentity struct {
	UserID   string
	Username string
	Email    string
	FullName string
}
