package httpserver

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/streamhub/internal/domain"
	"github.com/Skotchmaster/streamhub/internal/logging"
	"github.com/Skotchmaster/streamhub/internal/media"
	"github.com/Skotchmaster/streamhub/internal/middleware"
	"github.com/Skotchmaster/streamhub/internal/service"
	"github.com/Skotchmaster/streamhub/internal/transport"
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Cookies transport.Cookies
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	in := service.RegisterInput{
		FullName: c.FormValue("fullName"),
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
	}

	avatar, closeAvatar, err := formFile(c, "avatar")
	if err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid avatar upload")
	}
	defer closeAvatar()
	cover, closeCover, err := formFile(c, "coverImage")
	if err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cover image upload")
	}
	defer closeCover()
	in.Avatar, in.CoverImage = avatar, cover

	user, err := h.Svc.Register(ctx, in)
	if err != nil {
		return toHTTPError(err)
	}

	l.Info("register_successful", "user_id", user.ID)
	return c.JSON(http.StatusCreated, transport.OK(http.StatusCreated, user, "user registered successfully"))
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, service.LoginInput{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		return toHTTPError(err)
	}

	h.setSessionCookies(c, res)
	l.Info("login_successful")

	return c.JSON(http.StatusOK, transport.OK(http.StatusOK, transport.LoginResponse{
		User:      res.User,
		TokenPair: tokenPair(res),
	}, "user logged in successfully"))
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var token string
	if ck, err := c.Cookie(transport.RefreshCookie); err == nil {
		token = ck.Value
	}
	if token == "" {
		var req transport.RefreshRequest
		if err := c.Bind(&req); err != nil {
			l.Warn("refresh_error", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		token = req.RefreshToken
	}

	res, err := h.Svc.Refresh(ctx, token)
	if err != nil {
		if code, _ := StatusFor(err); code == http.StatusUnauthorized {
			h.clearSessionCookies(c)
		}
		return toHTTPError(err)
	}

	h.setSessionCookies(c, res)
	l.Info("refresh_successful")
	return c.JSON(http.StatusOK, transport.OK(http.StatusOK, tokenPair(res), "access token refreshed"))
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	userID, ok := middleware.UserID(c)
	if !ok {
		return toHTTPError(domain.ErrMissingToken)
	}

	if err := h.Svc.LogOut(ctx, userID); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot clear refresh token", "error", err)
		return toHTTPError(err)
	}

	h.clearSessionCookies(c)
	l.Info("successful_logout")
	return c.JSON(http.StatusOK, transport.OK(http.StatusOK, struct{}{}, "user logged out"))
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_change_password")

	userID, ok := middleware.UserID(c)
	if !ok {
		return toHTTPError(domain.ErrMissingToken)
	}

	var req transport.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("change_password_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.ChangePassword(ctx, userID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid old password").SetInternal(err)
		}
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, transport.OK(http.StatusOK, struct{}{}, "password changed successfully"))
}

func (h *AuthHTTP) CurrentUser(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return toHTTPError(domain.ErrMissingToken)
	}

	user, err := h.Svc.CurrentUser(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, transport.OK(http.StatusOK, user, "current user fetched successfully"))
}

func (h *AuthHTTP) setSessionCookies(c echo.Context, res *service.LoginResult) {
	c.SetCookie(h.Cookies.Create(transport.AccessCookie, res.AccessToken, res.AccessExp))
	c.SetCookie(h.Cookies.Create(transport.RefreshCookie, res.RefreshToken, res.RefreshExp))
}

func (h *AuthHTTP) clearSessionCookies(c echo.Context) {
	c.SetCookie(h.Cookies.Delete(transport.AccessCookie))
	c.SetCookie(h.Cookies.Delete(transport.RefreshCookie))
}

func tokenPair(res *service.LoginResult) transport.TokenPair {
	return transport.TokenPair{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		AccessExpiresAt:  res.AccessExp,
		RefreshExpiresAt: res.RefreshExp,
	}
}

// formFile opens an optional multipart file. A missing field yields a nil file.
func formFile(c echo.Context, field string) (*media.File, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	return &media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}, closer(f), nil
}

func closer(f multipart.File) func() {
	return func() { _ = f.Close() }
}
