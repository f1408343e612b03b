package middleware // middleware holds the cross-cutting request checks shared by every route group

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/papegu/senegal-livres/internal/utils"
)

const principalKey = "principal"

// Principal is the verified caller.  Handlers read it with PrincipalFrom
// instead of re-checking tokens themselves.
type Principal struct {
    UserID uint64
    Role   string
}

// JWTAuth requires a valid Bearer access token and stores the Principal
// in the context.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearer(c)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(principalKey, Principal{UserID: claims.UserID, Role: claims.Role})
            return next(c)
        }
    }
}

// OptionalJWT lets anonymous requests through (guest checkout) but still
// rejects a token that is present and invalid, so a stale session is
// never silently downgraded to a guest.
func OptionalJWT(secret string) echo.MiddlewareFunc {
    required := JWTAuth(secret)
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        withAuth := required(next)
        return func(c echo.Context) error {
            if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
                return next(c)
            }
            return withAuth(c)
        }
    }
}

// PrincipalFrom returns the caller stored by JWTAuth or OptionalJWT.
func PrincipalFrom(c echo.Context) (Principal, bool) {
    p, ok := c.Get(principalKey).(Principal)
    return p, ok
}

func bearer(c echo.Context) (string, bool) {
    auth := c.Request().Header.Get(echo.HeaderAuthorization)
    if !strings.HasPrefix(auth, "Bearer ") {
        return "", false
    }
    raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    return raw, raw != ""
}
