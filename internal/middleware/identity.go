package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user id, or 0 for anonymous requests.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(CtxUserID).(uint64)
	return id
}

// Contact returns the caller's email claim, if any.
func Contact(c echo.Context) string {
	s, _ := c.Get(CtxContact).(string)
	return s
}

// userKey is the user id as used in rate limit keys; "anon" when unset.
func userKey(c echo.Context) string {
	if id := UserID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
