package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/streamhub/internal/middleware"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Auth        *middleware.SimpleAuth

	// CSRF is nil when the check is disabled.
	CSRF *middleware.CSRFConfig

	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
		}
		return c.NoContent(http.StatusOK)
	})

	users := e.Group("/api/v1/users")
	if d.CSRF != nil {
		users.Use(middleware.CSRF(*d.CSRF))
	}

	users.POST("/register", d.AuthHandler.Register)
	users.POST("/login", d.AuthHandler.Login)
	users.POST("/refresh-token", d.AuthHandler.Refresh)

	private := users.Group("")
	private.Use(d.Auth.RequireAuth)

	private.POST("/logout", d.AuthHandler.LogOut)
	private.POST("/change-password", d.AuthHandler.ChangePassword)
	private.GET("/current-user", d.AuthHandler.CurrentUser)
}
