package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
)

// RequireRole admits requests whose role claim, as stored by JWTAuth, is
// one of roles.  Role names compare case-insensitively.  Anything else is
// answered with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]struct{}, len(roles))
    for _, r := range roles {
        allowed[strings.ToUpper(r)] = struct{}{}
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, _ := c.Get(CtxRole).(string)
            if _, ok := allowed[strings.ToUpper(role)]; !ok || role == "" {
                return c.JSON(http.StatusForbidden, echo.Map{
                    "error":   "forbidden",
                    "message": "allocation requires an admission officer role",
                })
            }
            return next(c)
        }
    }
}
