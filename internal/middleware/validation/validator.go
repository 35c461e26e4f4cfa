package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	// TextFields maps a top-level JSON field of free user text to its maximum length.
	TextFields      map[string]int
	MaxBodySize     int
	AllowedPrefixes []string
	Logger          *zap.Logger
}

// DefaultTextFields are the free-text fields of the contract routes.
func DefaultTextFields() map[string]int {
	return map[string]int{
		"user_description":     8000,
		"user_description_raw": 8000,
		"user_note":            4000,
	}
}

func reject(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"code":    status,
		"message": message,
		"kind":    "input",
	})
}

// Middleware screens JSON bodies on POST routes under AllowedPrefixes: it
// requires a JSON content type, strips null bytes from free-text fields and
// rejects markup injection in them. The cleaned body replaces the original.
func Middleware(cfg Config) fiber.Handler {
	if cfg.TextFields == nil {
		cfg.TextFields = DefaultTextFields()
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 2 * 1024 * 1024
	}
	if len(cfg.AllowedPrefixes) == 0 {
		cfg.AllowedPrefixes = []string{"/api/v1/"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost || !matchesPrefix(c.Path(), cfg.AllowedPrefixes) {
			return c.Next()
		}

		if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
			return reject(c, fiber.StatusUnsupportedMediaType, "Unsupported content type, expected application/json")
		}

		body := c.Body()
		if len(body) > cfg.MaxBodySize {
			return reject(c, fiber.StatusRequestEntityTooLarge, "Request body exceeds maximum size")
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return c.Next()
		}

		var req map[string]any
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			return reject(c, fiber.StatusBadRequest, "Invalid JSON format")
		}

		changed := false
		for field, maxLen := range cfg.TextFields {
			raw, present := req[field]
			if !present || raw == nil {
				continue
			}
			text, ok := raw.(string)
			if !ok {
				return reject(c, fiber.StatusBadRequest, fmt.Sprintf("%s must be a string", field))
			}
			if len([]rune(text)) > maxLen {
				return reject(c, fiber.StatusBadRequest, fmt.Sprintf("%s exceeds maximum length of %d", field, maxLen))
			}
			if containsXSS(text) {
				cfg.Logger.Warn("Potential XSS attempt",
					zap.String("ip", c.IP()),
					zap.String("path", c.Path()),
					zap.String("field", field),
				)
				return reject(c, fiber.StatusBadRequest, fmt.Sprintf("%s contains disallowed markup", field))
			}
			if clean := sanitizeString(text); clean != text {
				req[field] = clean
				changed = true
			}
		}

		if changed {
			cleaned, err := json.Marshal(req)
			if err != nil {
				return reject(c, fiber.StatusBadRequest, "Invalid JSON format")
			}
			c.Request().SetBody(cleaned)
		}

		return c.Next()
	}
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

func sanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
