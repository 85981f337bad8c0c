package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/openwifi/scan-server/internal/stats"
)

type StatsHandler struct {
    Stats *stats.Cache
    Log   zerolog.Logger
}

// All returns every registered statistic as {name: value}.
func (h *StatsHandler) All(c echo.Context) error {
    all, err := h.Stats.All(c.Request().Context())
    if err != nil {
        h.Log.Error().Err(err).Msg("compute statistics")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, all)
}

func (h *StatsHandler) One(c echo.Context) error {
    name := c.Param("name")
    v, err := h.Stats.Get(c.Request().Context(), name)
    if errors.Is(err, stats.ErrUnknownStat) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown statistic", "names": h.Stats.Names()})
    }
    if err != nil {
        h.Log.Error().Err(err).Str("stat", name).Msg("compute statistic")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"name": name, "value": v})
}
