package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/streamhub/internal/logging"
	"github.com/Skotchmaster/streamhub/internal/tokens"
	"github.com/Skotchmaster/streamhub/internal/transport"
)

func newTokenService() *tokens.Service {
	return tokens.NewService([]byte("access"), []byte("refresh"), time.Minute, time.Hour)
}

func okHandler(c echo.Context) error {
	id, ok := UserID(c)
	if !ok {
		return c.String(http.StatusInternalServerError, "no user")
	}
	return c.String(http.StatusOK, id.String())
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	tks := newTokenService()
	userID := uuid.New()
	valid, _, err := tks.IssueAccessToken(tokens.AccessIdentity{UserID: userID.String(), Username: "alice"})
	require.NoError(t, err)

	expiredSvc := newTokenService()
	expiredSvc.AccessTTL = -time.Minute
	expired, _, err := expiredSvc.IssueAccessToken(tokens.AccessIdentity{UserID: userID.String()})
	require.NoError(t, err)

	refresh, _, err := tks.IssueRefreshToken(userID.String())
	require.NoError(t, err)

	tests := []struct {
		name     string
		setup    func(r *http.Request)
		wantCode int
		wantMsg  string
	}{
		{
			name:     "cookie",
			setup:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: transport.AccessCookie, Value: valid}) },
			wantCode: http.StatusOK,
		},
		{
			name:     "bearer header",
			setup:    func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+valid) },
			wantCode: http.StatusOK,
		},
		{
			name:     "missing",
			setup:    func(r *http.Request) {},
			wantCode: http.StatusUnauthorized,
			wantMsg:  "unauthorized request",
		},
		{
			name:     "expired",
			setup:    func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+expired) },
			wantCode: http.StatusUnauthorized,
			wantMsg:  "access token expired",
		},
		{
			name:     "refresh token as access",
			setup:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: transport.AccessCookie, Value: refresh}) },
			wantCode: http.StatusUnauthorized,
			wantMsg:  "invalid access token",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			mw := NewSimpleAuth(tks, transport.Cookies{Secure: true})
			err := mw.RequireAuth(okHandler)(c)

			if tt.wantCode == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, userID.String(), rec.Body.String())
				return
			}

			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tt.wantCode, he.Code)
			assert.Equal(t, tt.wantMsg, he.Message)
		})
	}
}

func TestUserID_Missing(t *testing.T) {
	t.Parallel()

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, ok := UserID(c)
	assert.False(t, ok)
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := logging.NewWithWriter(&buf, "debug")

	e := echo.New()
	e.Use(RequestLogger(base))
	e.GET("/ok", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("inside_handler")
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "nope")
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderXRequestID, "rid-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "rid-1", rec.Header().Get(echo.HeaderXRequestID))
	assert.Contains(t, buf.String(), `"msg":"inside_handler"`)
	assert.Contains(t, buf.String(), `"request_id":"rid-1"`)

	buf.Reset()
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"status":418`)
}
