package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
)

const HeaderRequestID = "X-Request-ID"

// RequestLogger logs one line per request.  Successful requests log at debug,
// client errors at warn and server errors at error.  Every response carries an
// X-Request-ID, reusing the caller's when present.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            rid := c.Request().Header.Get(HeaderRequestID)
            if rid == "" {
                rid = uuid.NewString()
            }
            c.Response().Header().Set(HeaderRequestID, rid)

            err := next(c)
            if err != nil {
                c.Error(err)
            }

            status := c.Response().Status
            var ev *zerolog.Event
            switch {
            case status < 400:
                ev = log.Debug()
            case status < 500:
                ev = log.Warn()
            default:
                ev = log.Error()
            }
            ev.Str("request_id", rid).
                Str("method", c.Request().Method).
                Str("path", c.Request().URL.Path).
                Int("status", status).
                Str("cid", ClientID(c)).
                Str("ip", c.RealIP()).
                Dur("latency", time.Since(start)).
                Err(err).
                Msg("request")
            return nil
        }
    }
}
