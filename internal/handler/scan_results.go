// Package handler exposes the HTTP surface of the scan-result service.
package handler

import (
    "context"
    "errors"
    "io"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/openwifi/scan-server/internal/config"
    "github.com/openwifi/scan-server/internal/middleware"
    "github.com/openwifi/scan-server/internal/model"
    "github.com/openwifi/scan-server/internal/service"
    "github.com/openwifi/scan-server/internal/validator"
)

// Syncer reads the live feed after a cursor.
type Syncer interface {
    Since(ctx context.Context, lastID uint64, limit int, excludeCID string) ([]model.ScanResult, error)
}

// ScanResultHandler serves submission and incremental sync.
type ScanResultHandler struct {
    Ingestor *service.Ingestor
    Syncer   Syncer
    Cfg      config.IngestConfig
    Log      zerolog.Logger
}

// Post accepts one scan result object or an array of them.  A single object
// is answered with its new id, or null when it was a duplicate or discarded
// for accuracy; an array is answered with one such entry per element.
func (h *ScanResultHandler) Post(c echo.Context) error {
    cid := middleware.ClientID(c)
    if cid == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing " + middleware.HeaderClientID + " header"})
    }

    body, err := io.ReadAll(io.LimitReader(c.Request().Body, h.Cfg.MaxBodyBytes+1))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unable to read body"})
    }
    if int64(len(body)) > h.Cfg.MaxBodyBytes {
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "body too large"})
    }

    records, batch, err := validator.Decode(body)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    if len(records) > h.Cfg.MaxBatchSize {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "too many scan results in one request"})
    }

    results, err := h.Ingestor.Submit(c.Request().Context(), service.Submission{
        ClientID: cid,
        UserID:   middleware.UserID(c),
        Records:  records,
    })
    if err != nil {
        var fe *validator.FieldError
        if errors.As(err, &fe) {
            resp := echo.Map{"error": err.Error(), "field": fe.Field}
            var re *service.RecordError
            if errors.As(err, &re) {
                resp["index"] = re.Index
            }
            return c.JSON(http.StatusBadRequest, resp)
        }
        h.Log.Error().Err(err).Str("cid", cid).Msg("store scan results")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }

    ids := make([]*uint64, len(results))
    for i, r := range results {
        if r.Outcome == service.Stored {
            id := r.ID
            ids[i] = &id
        }
    }
    if !batch {
        return c.JSON(http.StatusOK, ids[0])
    }
    return c.JSON(http.StatusOK, ids)
}

// Sync returns up to limit scan results with ids above last_id, oldest
// first, leaving out those submitted by the calling client.  A limit of 0
// asks for the largest page the server allows.
func (h *ScanResultHandler) Sync(c echo.Context) error {
    lastID, err := strconv.ParseUint(c.Param("last_id"), 10, 64)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid last_id"})
    }
    limit, err := strconv.Atoi(c.Param("limit"))
    if err != nil || limit < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
    }
    if limit == 0 || limit > h.Cfg.MaxPageSize {
        limit = h.Cfg.MaxPageSize
    }

    rows, err := h.Syncer.Since(c.Request().Context(), lastID, limit, middleware.ClientID(c))
    if err != nil {
        h.Log.Error().Err(err).Uint64("last_id", lastID).Msg("sync scan results")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, rows)
}
