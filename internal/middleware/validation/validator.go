package validation

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DefaultExtensions mirrors the upload picker: PDF, Markdown and plain text.
var DefaultExtensions = []string{".pdf", ".md", ".txt"}

type Config struct {
	MaxQueryLength      int
	MaxFileSize         int
	AllowedContentTypes []string
	AllowedExtensions   []string
	// ChatPath and UploadPath select the routes whose bodies get checked.
	ChatPath   string
	UploadPath string
	Logger     *zap.Logger
}

// HasAllowedExtension reports whether name ends in one of exts, ignoring
// case.
func HasAllowedExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 5000
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = 25 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "multipart/form-data"}
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultExtensions
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method == fiber.MethodPost || method == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if method != fiber.MethodPost {
			return c.Next()
		}

		switch c.Path() {
		case cfg.ChatPath:
			var req struct {
				Query string `json:"query"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if len(req.Query) > cfg.MaxQueryLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Query exceeds maximum length",
				})
			}

		case cfg.UploadPath:
			form, err := c.MultipartForm()
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Expected a multipart form with a file field",
				})
			}
			files := form.File["file"]
			if len(files) == 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "No file provided",
				})
			}
			first := files[0]
			if !HasAllowedExtension(first.Filename, cfg.AllowedExtensions) {
				cfg.Logger.Warn("Rejected upload with unsupported extension",
					zap.String("ip", c.IP()),
					zap.String("filename", first.Filename),
				)
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error":   "Unsupported file type",
					"allowed": cfg.AllowedExtensions,
				})
			}
			if first.Size > int64(cfg.MaxFileSize) {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "File exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}
