package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-capture/console/internal/models"
	"github.com/knowledge-capture/console/internal/upload"
	"github.com/knowledge-capture/console/pkg/identity"
)

type recordingStore struct {
	mu       sync.Mutex
	uploaded map[string]string
	files    []models.UploadedFile
}

func (s *recordingStore) Upload(ctx context.Context, userEmail string, file models.FileUpload) error {
	body, err := io.ReadAll(file.Body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[file.Name] = string(body)
	s.files = append(s.files, models.UploadedFile{ID: "65a1f0", Filename: file.Name, Status: models.FileStatusPending})
	return nil
}

func (s *recordingStore) ListFiles(ctx context.Context, userEmail string) ([]models.UploadedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.UploadedFile(nil), s.files...), nil
}

func (s *recordingStore) DeleteFile(ctx context.Context, userEmail, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.files {
		if f.ID == fileID {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return nil
		}
	}
	return upload.ErrNoFileID
}

func newFilesApp(store upload.Store) *fiber.App {
	h := NewFilesHandler(upload.NewOrchestrator(store, identity.Static("varun@example.com")))
	app := fiber.New()
	app.Get("/files", h.ListFiles)
	app.Post("/files", h.UploadFile)
	app.Delete("/files/:id", h.DeleteFile)
	return app
}

func TestUploadFileSendsOnlyFirstPart(t *testing.T) {
	store := &recordingStore{uploaded: map[string]string{}}
	app := newFilesApp(store)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range []string{"first.pdf", "second.md", "third.txt"} {
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("body of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, map[string]string{"first.pdf": "body of first.pdf"}, store.uploaded)
}

func TestUploadFileWithoutFilePart(t *testing.T) {
	app := newFilesApp(&recordingStore{uploaded: map[string]string{}})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("user_email", "x"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDeleteByListedID(t *testing.T) {
	store := &recordingStore{
		uploaded: map[string]string{},
		files:    []models.UploadedFile{{ID: "65a1f0", Filename: "report.pdf"}},
	}
	app := newFilesApp(store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/files?refresh=true", nil), -1)
	require.NoError(t, err)
	var listing struct {
		Files []models.UploadedFile `json:"files"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	require.Len(t, listing.Files, 1)
	require.Equal(t, "65a1f0", listing.Files[0].ID)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/files/"+listing.Files[0].ID, nil), -1)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Empty(t, listing.Files)
}
