package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

// HeadersMiddleware sets the security headers for a JSON API. HSTS is only sent over TLS
// and never in development.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	hstsMaxAge := 31536000
	if cfg.IsDevelopment {
		hstsMaxAge = 0
	}

	return helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		HSTSMaxAge:            hstsMaxAge,
		ContentSecurityPolicy: contentSecurityPolicy(cfg.AllowedOrigins),
		CrossOriginResourcePolicy: "cross-origin",
	})
}

func contentSecurityPolicy(origins []string) string {
	connect := append([]string{"'self'"}, origins...)
	return "default-src 'none'; " +
		"connect-src " + strings.Join(connect, " ") + "; " +
		"frame-ancestors 'none'; " +
		"base-uri 'none'; " +
		"form-action 'none'"
}
