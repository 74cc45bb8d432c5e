// Package security sets response headers for the JSON API. The service
// never serves HTML, so the policy is a blanket deny on framing and
// scripts rather than a tuned allowlist.
package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	// AllowedOrigins extends connect-src for browser clients calling
	// the API directly.
	AllowedOrigins []string
	// IsDevelopment disables Strict-Transport-Security so local HTTP
	// setups keep working.
	IsDevelopment bool
}

func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	connectSrc := "'self'"
	if len(cfg.AllowedOrigins) > 0 {
		connectSrc += " " + strings.Join(cfg.AllowedOrigins, " ")
	}
	csp := strings.Join([]string{
		"default-src 'none'",
		"connect-src " + connectSrc,
		"frame-ancestors 'none'",
		"base-uri 'none'",
	}, "; ")

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", csp)

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		return c.Next()
	}
}
