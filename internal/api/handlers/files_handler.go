package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/knowledge-capture/console/internal/models"
	"github.com/knowledge-capture/console/internal/upload"
	"github.com/knowledge-capture/console/pkg/logger"
)

type FilesHandler struct {
	upload *upload.Orchestrator
}

func NewFilesHandler(orchestrator *upload.Orchestrator) *FilesHandler {
	return &FilesHandler{
		upload: orchestrator,
	}
}

// ListFiles returns the cached listing, refreshing it first when
// ?refresh=true. A failed refresh still answers with the previous listing.
func (h *FilesHandler) ListFiles(c *fiber.Ctx) error {
	if c.QueryBool("refresh") {
		if err := h.upload.Refresh(c.UserContext()); err != nil {
			logger.Warn("Listing refresh failed", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"files": h.upload.Files(),
	})
}

// UploadFile sends the first file of the multipart form. The reply carries
// the upload status; a backend failure is reported through the error state
// rather than an HTTP error.
func (h *FilesHandler) UploadFile(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid multipart form",
		})
	}

	var uploads []models.FileUpload
	if parts := form.File["file"]; len(parts) > 0 {
		fh := parts[0]
		if len(parts) > 1 {
			logger.Debug("Multiple files posted, uploading the first",
				zap.Int("posted", len(parts)),
				zap.String("filename", fh.Filename),
			)
		}

		f, err := fh.Open()
		if err != nil {
			logger.Error("Failed to open uploaded file", zap.String("filename", fh.Filename), zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unreadable file",
			})
		}
		defer f.Close()

		uploads = append(uploads, models.FileUpload{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Body:        f,
		})
	}

	err = h.upload.Select(c.UserContext(), uploads...)
	switch {
	case errors.Is(err, upload.ErrNoFile):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	case errors.Is(err, models.ErrUploadInFlight):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "An upload is already in progress",
			"status": h.upload.Status(),
		})
	case errors.Is(err, models.ErrDismissRequired):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "Dismiss the previous upload error first",
			"status": h.upload.Status(),
		})
	}

	return c.JSON(h.upload.Status())
}

// DeleteFile always answers with the current listing. A failed delete
// leaves it unchanged.
func (h *FilesHandler) DeleteFile(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.upload.DeleteFile(c.UserContext(), id); errors.Is(err, upload.ErrNoFileID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File id is required",
		})
	}

	return c.JSON(fiber.Map{
		"files": h.upload.Files(),
	})
}

func (h *FilesHandler) UploadStatus(c *fiber.Ctx) error {
	return c.JSON(h.upload.Status())
}

func (h *FilesHandler) Dismiss(c *fiber.Ctx) error {
	if err := h.upload.Dismiss(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "Nothing to dismiss",
			"status": h.upload.Status(),
		})
	}
	return c.JSON(h.upload.Status())
}
