package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// InfoHandler reports build and mode information to clients.
type InfoHandler struct {
    Version  string
    TestMode bool
}

func (h *InfoHandler) Info(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"version": h.Version, "test_mode": h.TestMode})
}

// Check is a connectivity probe for clients; it answers an empty 200.
func (h *InfoHandler) Check(c echo.Context) error {
    return c.NoContent(http.StatusOK)
}
