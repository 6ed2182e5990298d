package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"go.uber.org/zap"

	"github.com/knowledge-capture/console/internal/endpoints"
	"github.com/knowledge-capture/console/internal/metrics"
	"github.com/knowledge-capture/console/internal/models"
	"github.com/knowledge-capture/console/internal/strategy"
	"github.com/knowledge-capture/console/pkg/circuitbreaker"
	"github.com/knowledge-capture/console/pkg/logger"
)

const (
	OpUpload    = "upload"
	OpListFiles = "list_files"
	OpDelete    = "delete_file"
	OpQuery     = "chat_query"

	maxErrorBody = 4096
)

type Client struct {
	endpoints  *endpoints.Registry
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

func NewClient(registry *endpoints.Registry, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		endpoints: registry,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type QueryRequest struct {
	Query     string      `json:"query"`
	UserEmail string      `json:"user_email"`
	Strategy  strategy.ID `json:"rag_strategy"`
}

type QueryResponse struct {
	Answer  string                  `json:"answer"`
	Sources []models.SourceCitation `json:"sources"`
}

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// IsClientError reports whether err is a 4xx reply. Those say nothing about
// backend health and do not trip the breaker.
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
}

func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	var resp QueryResponse
	err = c.do(ctx, OpQuery, &resp, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.ChatQuery(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	if resp.Sources == nil {
		resp.Sources = []models.SourceCitation{}
	}
	return &resp, nil
}

func (c *Client) ListFiles(ctx context.Context, userEmail string) ([]models.UploadedFile, error) {
	var files []models.UploadedFile
	err := c.do(ctx, OpListFiles, &files, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.ListFiles(userEmail), nil)
	})
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.UploadedFile{}
	}
	return files, nil
}

func (c *Client) DeleteFile(ctx context.Context, userEmail, fileID string) error {
	return c.do(ctx, OpDelete, nil, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoints.DeleteFile(fileID, userEmail), nil)
	})
}

// Upload sends the file and identity as one multipart form. The backend
// queues ingestion and answers as soon as the file is accepted.
func (c *Client) Upload(ctx context.Context, userEmail string, file models.FileUpload) error {
	if file.Body == nil {
		return errors.New("upload has no body")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", multipart.FileContentDisposition("file", file.Name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return fmt.Errorf("failed to read %s: %w", file.Name, err)
	}
	if err := mw.WriteField("user_email", userEmail); err != nil {
		return fmt.Errorf("failed to write user_email field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	payload := buf.Bytes()
	return c.do(ctx, OpUpload, nil, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Upload(), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", mw.FormDataContentType())
		return r, nil
	})
}

func (c *Client) do(ctx context.Context, op string, out interface{}, build func(context.Context) (*http.Request, error)) error {
	start := time.Now()

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return fmt.Errorf("failed to create %s request: %w", op, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s request failed: %w", op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &StatusError{Operation: op, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
		return nil
	})

	elapsed := time.Since(start)
	metrics.BackendRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	metrics.BackendRequestTotal.WithLabelValues(op, outcome(err)).Inc()

	if err != nil {
		logger.Debug("Backend call failed",
			zap.String("operation", op),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}

	logger.Debug("Backend call completed",
		zap.String("operation", op),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func outcome(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.As(err, &se) && se.StatusCode >= 500:
		return "status_5xx"
	case errors.As(err, &se) && se.StatusCode >= 400:
		return "status_4xx"
	case errors.As(err, &se):
		return "status_other"
	default:
		return "error"
	}
}
