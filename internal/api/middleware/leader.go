package middleware

import (
	"net/http"

	"player-auction/internal/domain"
	"player-auction/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequireLeader refuses round commands on an instance that does not hold
// auction leadership.
func RequireLeader(isLeader func() bool, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !isLeader() {
				log.Warn("Rejected command, not leader", "path", c.Request().URL.Path)
				return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
					"error": domain.ErrNotLeader.Error(),
					"retry": true,
				})
			}
			return next(c)
		}
	}
}
