package middleware

// identity.go holds the context keys written by JWTAuth and the helpers
// that read them back.  Officer identity is issued by the external
// identity provider; this service only verifies it.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
    CtxUserID = "user_id"
    CtxRole   = "role"
)

// Roles allowed to call the allocation API.
const (
    RoleOfficer = "OFFICER"
    RoleAdmin   = "ADMIN"
)

// UserID returns the authenticated officer id.  ok is false when no valid
// numeric subject is present.
func UserID(c echo.Context) (uint64, bool) {
    switch t := c.Get(CtxUserID).(type) {
    case uint64:
        return t, true
    case float64:
        if t > 0 {
            return uint64(t), true
        }
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, true
        }
    }
    return 0, false
}

// userKey is the identity used in rate limit keys; "anon" when the request
// is not authenticated.
func userKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
