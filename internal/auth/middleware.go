package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const claimsKey = "claims"

// Middleware rejects requests without a valid bearer token and stores the
// token's claims in the request locals.
func Middleware(tokens *TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		claims, ok := tokens.Validate(strings.TrimSpace(raw))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// ClaimsFrom returns the claims stored by Middleware, or nil on public routes.
func ClaimsFrom(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(claimsKey).(*Claims)
	return claims
}
