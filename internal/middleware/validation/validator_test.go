package validation

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/rag/query", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Post("/api/v1/documents", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func post(t *testing.T, app *fiber.App, path, contentType, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestValidQuestionPasses(t *testing.T) {
	app := newApp(Config{})
	status := post(t, app, "/api/v1/rag/query", "application/json", `{"question": "Что такое ИИС?"}`)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestEmptyQuestionRejected(t *testing.T) {
	app := newApp(Config{})
	status := post(t, app, "/api/v1/rag/query", "application/json", `{"question": "   "}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestOverlongQuestionRejected(t *testing.T) {
	app := newApp(Config{MaxQuestionLength: 100})
	long := strings.Repeat("а", 200)
	status := post(t, app, "/api/v1/rag/query", "application/json", `{"question": "`+long+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestXSSQuestionRejected(t *testing.T) {
	app := newApp(Config{})
	status := post(t, app, "/api/v1/rag/query", "application/json", `{"question": "<script>alert(1)</script>"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUnsupportedContentTypeRejected(t *testing.T) {
	app := newApp(Config{})
	status := post(t, app, "/api/v1/rag/query", "text/plain", `{"question": "вопрос"}`)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, status)
}

func TestDocumentURLValidation(t *testing.T) {
	app := newApp(Config{})

	status := post(t, app, "/api/v1/documents", "application/json", `{"url": "https://journal.tinkoff.ru/iis/", "html": "<p>x</p>"}`)
	assert.Equal(t, fiber.StatusOK, status)

	status = post(t, app, "/api/v1/documents", "application/json", `{"url": "ftp://bad", "html": "x"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status = post(t, app, "/api/v1/documents", "application/json", `{"html": "x"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}
