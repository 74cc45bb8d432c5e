package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxQuestionLength   int
	MaxDocumentSize     int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQuestionLength == 0 {
		cfg.MaxQuestionLength = 5000
	}
	if cfg.MaxDocumentSize == 0 {
		cfg.MaxDocumentSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		path := c.Path()

		if strings.Contains(path, "/api/v1/rag/query") && c.Method() == "POST" {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			question, ok := req["question"].(string)
			if !ok || strings.TrimSpace(question) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Question is required and must be a string",
				})
			}

			if len(question) > cfg.MaxQuestionLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Question exceeds maximum length",
				})
			}

			if xssPattern.MatchString(question) {
				cfg.Logger.Warn("Potential XSS attempt",
					zap.String("ip", c.IP()),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid question content",
				})
			}
		}

		if strings.Contains(path, "/api/v1/documents") && c.Method() == "POST" {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			urlStr, ok := req["url"].(string)
			if !ok || urlStr == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "URL is required and must be a string",
				})
			}

			if !isValidURL(urlStr) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid URL format",
				})
			}

			html, ok := req["html"].(string)
			if ok && len(html) > cfg.MaxDocumentSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Document content exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}

func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != ""
}
