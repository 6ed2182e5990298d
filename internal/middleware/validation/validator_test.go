package validation

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *fiber.App {
	cfg.ChatPath = "/chat"
	cfg.UploadPath = "/files"
	app := fiber.New()
	app.Use(Middleware(cfg))
	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
	app.Post("/chat", ok)
	app.Post("/files", ok)
	app.Put("/other", ok)
	return app
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHasAllowedExtension(t *testing.T) {
	assert.True(t, HasAllowedExtension("notes.MD", DefaultExtensions))
	assert.True(t, HasAllowedExtension("report.pdf", DefaultExtensions))
	assert.False(t, HasAllowedExtension("setup.exe", DefaultExtensions))
	assert.False(t, HasAllowedExtension("README", DefaultExtensions))
}

func TestRejectsUnsupportedContentType(t *testing.T) {
	app := newApp(Config{})
	req := httptest.NewRequest(http.MethodPut, "/other", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/xml")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestChatQueryLength(t *testing.T) {
	app := newApp(Config{MaxQueryLength: 5})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"too long"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"ok"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUploadExtensionFilter(t *testing.T) {
	app := newApp(Config{})

	body, ct := multipartBody(t, "setup.exe", "MZ")
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)

	body, ct = multipartBody(t, "notes.md", "# notes")
	req = httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", ct)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUploadSizeLimit(t *testing.T) {
	app := newApp(Config{MaxFileSize: 4})

	body, ct := multipartBody(t, "notes.txt", "more than four bytes")
	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}
