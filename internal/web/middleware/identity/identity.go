// Package identity installs the caller identity forwarded by the upstream
// gateway onto the request context.
package identity

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/glassview-analytics/glassview/internal/perm/resolve"
)

// HeaderUserID carries the authenticated user id set by the gateway.
const HeaderUserID = "X-Glassview-User-Id"

// New returns a middleware that parses HeaderUserID and installs the caller
// plus a per-request permission-row cache on the request context. Requests
// without the header pass through untouched; resolutions then hit the row
// store directly.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(HeaderUserID)
		if raw == "" {
			return c.Next()
		}

		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || userID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid " + HeaderUserID + " header"})
		}

		ctx := resolve.WithCurrentUser(c.UserContext(), userID)
		c.SetUserContext(resolve.WithRequestCache(ctx, userID))

		return c.Next()
	}
}
