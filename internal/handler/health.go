package handler

import (
    "context"
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Health is used by load balancers and monitoring to verify that the service
// is running and can reach its database.  It returns a plain text "ok".
func Health(db *sql.DB) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            return c.String(http.StatusServiceUnavailable, "database unavailable")
        }
        return c.String(http.StatusOK, "ok")
    }
}
