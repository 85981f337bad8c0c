package middleware

// identity.go attaches the submitting client and, when a bearer token is
// present, the depersonalized user id to the Echo context.  Handlers read
// them back with ClientID and UserID.

import (
    "context"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"

    "github.com/openwifi/scan-server/internal/identity"
)

const (
    HeaderClientID  = "X-Client-ID"
    HeaderAuthToken = "X-Auth-Token"

    ctxClientID = "cid"
    ctxUserID   = "uid"

    maxClientIDLength = 128
)

// Authenticator resolves a bearer token to a depersonalized user id.
type Authenticator interface {
    Authenticate(ctx context.Context, token string) (string, error)
}

var _ Authenticator = (*identity.Cache)(nil)

// ClientIdentity stores the X-Client-ID header under "cid".  Over-long ids
// are rejected so they cannot bloat the unique index.
func ClientIdentity() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            cid := strings.TrimSpace(c.Request().Header.Get(HeaderClientID))
            if len(cid) > maxClientIDLength {
                return c.JSON(http.StatusBadRequest, echo.Map{"error": "client id too long"})
            }
            c.Set(ctxClientID, cid)
            return next(c)
        }
    }
}

// Authenticate resolves the caller's token through auth and stores the
// result under "uid".  When required is false a missing or rejected token
// leaves the caller anonymous; when true the request is refused.
func Authenticate(auth Authenticator, required bool, log zerolog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            token := bearerToken(c.Request())
            if token == "" {
                if required {
                    return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing auth token"})
                }
                c.Set(ctxUserID, "")
                return next(c)
            }

            uid, err := auth.Authenticate(c.Request().Context(), token)
            if err != nil {
                log.Info().Err(err).Str("cid", ClientID(c)).Msg("token verification failed")
                if required {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid auth token"})
                }
                uid = ""
            }
            c.Set(ctxUserID, uid)
            return next(c)
        }
    }
}

func bearerToken(r *http.Request) string {
    if t := strings.TrimSpace(r.Header.Get(HeaderAuthToken)); t != "" {
        return t
    }
    auth := r.Header.Get("Authorization")
    if strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    return ""
}

// ClientID returns the client id set by ClientIdentity, or "".
func ClientID(c echo.Context) string {
    if v, ok := c.Get(ctxClientID).(string); ok {
        return v
    }
    return ""
}

// UserID returns the depersonalized user id set by Authenticate, or "".
func UserID(c echo.Context) string {
    if v, ok := c.Get(ctxUserID).(string); ok {
        return v
    }
    return ""
}
