package upload

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/knowledge-capture/console/internal/events"
	"github.com/knowledge-capture/console/internal/metrics"
	"github.com/knowledge-capture/console/internal/models"
	"github.com/knowledge-capture/console/pkg/identity"
	"github.com/knowledge-capture/console/pkg/logger"
)

// DefaultSuccessReset is how long the success state shows before idle.
const DefaultSuccessReset = 3 * time.Second

var (
	ErrNoFile   = errors.New("no file selected")
	ErrNoFileID = errors.New("file id is required")
)

// Store is the backend side of the knowledge base.
type Store interface {
	Upload(ctx context.Context, userEmail string, file models.FileUpload) error
	ListFiles(ctx context.Context, userEmail string) ([]models.UploadedFile, error)
	DeleteFile(ctx context.Context, userEmail, fileID string) error
}

// Timer is a pending reset that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Status is what a view shows for the current upload.
type Status struct {
	State    models.UploadState `json:"state"`
	Filename string             `json:"filename,omitempty"`
}

// Orchestrator runs the upload state machine and keeps the file listing.
type Orchestrator struct {
	store      Store
	identity   identity.Provider
	publisher  events.Publisher
	resetDelay time.Duration
	afterFunc  AfterFunc

	mu         sync.Mutex
	state      models.UploadState
	filename   string
	gen        uint64
	resetTimer Timer
	files      []models.UploadedFile
	issued     uint64
	applied    uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithResetDelay sets how long success lasts before returning to idle.
func WithResetDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.resetDelay = d
		}
	}
}

// WithAfterFunc replaces the timer used for the success reset.
func WithAfterFunc(f AfterFunc) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.afterFunc = f
		}
	}
}

// WithPublisher sends upload and files events after each change.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// NewOrchestrator starts idle with an empty listing.
func NewOrchestrator(store Store, id identity.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		identity:   id,
		publisher:  events.Discard{},
		resetDelay: DefaultSuccessReset,
		afterFunc:  realAfterFunc,
		files:      []models.UploadedFile{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) State() models.UploadState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Files returns the last applied listing.
func (o *Orchestrator) Files() []models.UploadedFile {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filesLocked()
}

// Select uploads the first of files. Drag-and-drop and picker selections
// both land here; extra files are ignored.
func (o *Orchestrator) Select(ctx context.Context, files ...models.FileUpload) error {
	if len(files) == 0 {
		return ErrNoFile
	}
	if len(files) > 1 {
		logger.Debug("Multiple files selected, uploading the first",
			zap.Int("selected", len(files)),
			zap.String("filename", files[0].Name),
		)
	}
	return o.Upload(ctx, files[0])
}

// Upload sends one file. It is rejected with models.ErrUploadInFlight while
// another upload runs and with models.ErrDismissRequired after a failure
// nobody has dismissed. A backend failure leaves the orchestrator in the
// error state and is returned; a success triggers one listing refresh.
func (o *Orchestrator) Upload(ctx context.Context, file models.FileUpload) error {
	o.mu.Lock()
	if err := o.transitionLocked(models.EventSelect); err != nil {
		o.mu.Unlock()
		return err
	}
	o.gen++
	if o.resetTimer != nil {
		o.resetTimer.Stop()
		o.resetTimer = nil
	}
	o.filename = file.Name
	st := o.statusLocked()
	o.mu.Unlock()
	o.publishStatus(st)

	ctx = context.WithoutCancel(ctx)
	err := o.send(ctx, file)

	o.mu.Lock()
	if err != nil {
		_ = o.transitionLocked(models.EventFail)
		st = o.statusLocked()
		o.mu.Unlock()
		o.publishStatus(st)

		logger.Error("Upload failed", zap.String("filename", file.Name), zap.Error(err))
		return err
	}

	_ = o.transitionLocked(models.EventSucceed)
	o.gen++
	gen := o.gen
	o.resetTimer = o.afterFunc(o.resetDelay, func() { o.reset(gen) })
	st = o.statusLocked()
	o.mu.Unlock()
	o.publishStatus(st)

	logger.Info("Upload accepted", zap.String("filename", file.Name), zap.Int64("size", file.Size))

	_ = o.Refresh(ctx)
	return nil
}

func (o *Orchestrator) send(ctx context.Context, file models.FileUpload) error {
	email, err := o.identity.Identity(ctx)
	if err != nil {
		return err
	}
	return o.store.Upload(ctx, email, file)
}

func (o *Orchestrator) reset(gen uint64) {
	o.mu.Lock()
	if gen != o.gen || o.state != models.UploadSuccess {
		o.mu.Unlock()
		return
	}
	_ = o.transitionLocked(models.EventReset)
	o.resetTimer = nil
	st := o.statusLocked()
	o.mu.Unlock()
	o.publishStatus(st)
}

// Dismiss acknowledges a failed upload and returns to idle.
func (o *Orchestrator) Dismiss() error {
	o.mu.Lock()
	if err := o.transitionLocked(models.EventDismiss); err != nil {
		o.mu.Unlock()
		return err
	}
	o.filename = ""
	st := o.statusLocked()
	o.mu.Unlock()
	o.publishStatus(st)
	return nil
}

// Refresh refetches the whole listing and replaces the local copy. When
// refreshes overlap, only a response newer than the last applied one is
// kept. Failures are logged and leave the listing as it was.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	email, err := o.identity.Identity(ctx)
	if err != nil {
		logger.Warn("Failed to resolve identity for file listing", zap.Error(err))
		return err
	}

	o.mu.Lock()
	o.issued++
	seq := o.issued
	o.mu.Unlock()

	files, err := o.store.ListFiles(ctx, email)
	if err != nil {
		logger.Warn("Failed to fetch files", zap.Error(err))
		return err
	}
	if files == nil {
		files = []models.UploadedFile{}
	}

	o.mu.Lock()
	if seq <= o.applied {
		o.mu.Unlock()
		metrics.ListingDiscardedTotal.Inc()
		logger.Debug("Discarding stale file listing", zap.Uint64("seq", seq))
		return nil
	}
	o.applied = seq
	o.files = files
	snapshot := o.filesLocked()
	o.mu.Unlock()

	o.publisher.Publish(events.Event{Type: events.TypeFiles, Payload: snapshot})
	return nil
}

// DeleteFile removes a file on the backend and refreshes the listing on
// success. Nothing local changes on failure.
func (o *Orchestrator) DeleteFile(ctx context.Context, fileID string) error {
	if strings.TrimSpace(fileID) == "" {
		return ErrNoFileID
	}

	email, err := o.identity.Identity(ctx)
	if err != nil {
		logger.Warn("Failed to resolve identity for delete", zap.Error(err))
		return err
	}

	if err := o.store.DeleteFile(ctx, email, fileID); err != nil {
		logger.Warn("Failed to delete", zap.String("file_id", fileID), zap.Error(err))
		return err
	}

	logger.Info("File deleted", zap.String("file_id", fileID))
	_ = o.Refresh(ctx)
	return nil
}

func (o *Orchestrator) transitionLocked(e models.UploadEvent) error {
	next, err := o.state.Next(e)
	if err != nil {
		return err
	}
	metrics.UploadTransitionsTotal.WithLabelValues(o.state.String(), next.String()).Inc()
	logger.Debug("Upload state changed",
		zap.String("from", o.state.String()),
		zap.String("to", next.String()),
		zap.String("event", e.String()),
	)
	o.state = next
	return nil
}

func (o *Orchestrator) statusLocked() Status {
	st := Status{State: o.state}
	if o.state != models.UploadIdle {
		st.Filename = o.filename
	}
	return st
}

func (o *Orchestrator) filesLocked() []models.UploadedFile {
	out := make([]models.UploadedFile, len(o.files))
	copy(out, o.files)
	return out
}

func (o *Orchestrator) publishStatus(st Status) {
	o.publisher.Publish(events.Event{Type: events.TypeUpload, Payload: st})
}
