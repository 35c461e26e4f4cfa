package validation

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() (*fiber.App, *[]byte) {
	var seen []byte
	app := fiber.New()
	app.Use(Middleware(Config{}))
	app.Post("/api/v1/contract/intake", func(c *fiber.Ctx) error {
		seen = append([]byte(nil), c.Body()...)
		return c.SendStatus(fiber.StatusOK)
	})
	return app, &seen
}

func post(t *testing.T, app *fiber.App, contentType, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/contract/intake", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	return resp.StatusCode, out
}

func TestMiddleware_SanitizesText(t *testing.T) {
	app, seen := newApp()

	status, _ := post(t, app, "application/json", `{"user_description":"  weekly lawn mowing\u0000 ","locale":"en-US","n":12.50}`)
	require.Equal(t, fiber.StatusOK, status)

	var got map[string]any
	require.NoError(t, json.Unmarshal(*seen, &got))
	assert.Equal(t, "weekly lawn mowing", got["user_description"])
	assert.Equal(t, "en-US", got["locale"])
	assert.Equal(t, 12.5, got["n"])
}

func TestMiddleware_Rejects(t *testing.T) {
	app, _ := newApp()

	cases := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"wrong content type", "text/plain", `hello`, fiber.StatusUnsupportedMediaType},
		{"bad json", "application/json", `{"user_description":`, fiber.StatusBadRequest},
		{"not a string", "application/json", `{"user_description": 5}`, fiber.StatusBadRequest},
		{"too long", "application/json", `{"user_note":"` + strings.Repeat("a", 4001) + `"}`, fiber.StatusBadRequest},
		{"markup", "application/json", `{"user_description":"<script>alert(1)</script>"}`, fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, out := post(t, app, tc.contentType, tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, "input", out["kind"])
		})
	}
}

func TestMiddleware_PlainProseAllowed(t *testing.T) {
	app, _ := newApp()
	status, _ := post(t, app, "application/json; charset=utf-8", `{"user_description":"Select plants, drop off mulch and update the client if we delete a visit."}`)
	assert.Equal(t, fiber.StatusOK, status)
}
