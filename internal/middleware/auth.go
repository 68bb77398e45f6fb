package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/streamhub/internal/domain"
	"github.com/Skotchmaster/streamhub/internal/logging"
	"github.com/Skotchmaster/streamhub/internal/tokens"
	"github.com/Skotchmaster/streamhub/internal/transport"
)

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
)

type AccessVerifier interface {
	VerifyAccessToken(token string) (*tokens.AccessClaims, error)
}

type SimpleAuth struct {
	Tokens  AccessVerifier
	Cookies transport.Cookies
}

func NewSimpleAuth(v AccessVerifier, cookies transport.Cookies) *SimpleAuth {
	return &SimpleAuth{Tokens: v, Cookies: cookies}
}

// RequireAuth accepts the access token from the accessToken cookie or an
// "Authorization: Bearer" header and puts the user id into the echo context.
func (m *SimpleAuth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context())

		raw := accessTokenFrom(c.Request())
		if raw == "" {
			l.Warn("auth_failed", "status", 401, "reason", "missing access token")
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized request").SetInternal(domain.ErrMissingToken)
		}

		claims, err := m.Tokens.VerifyAccessToken(raw)
		if err != nil {
			c.SetCookie(m.Cookies.Delete(transport.AccessCookie))
			msg := "invalid access token"
			if errors.Is(err, domain.ErrExpiredToken) {
				msg = "access token expired"
			}
			l.Warn("auth_failed", "status", 401, "reason", msg, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, msg).SetInternal(err)
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token").SetInternal(domain.ErrInvalidToken)
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxUsername, claims.Username)

		ctx := logging.IntoContext(c.Request().Context(), l.With("user_id", userID.String()))
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

// UserID returns the id RequireAuth stored for this request.
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ctxUserID).(uuid.UUID)
	return id, ok
}

func accessTokenFrom(r *http.Request) string {
	if ck, err := r.Cookie(transport.AccessCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := r.Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
