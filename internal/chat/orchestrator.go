package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/knowledge-capture/console/internal/backend"
	"github.com/knowledge-capture/console/internal/events"
	"github.com/knowledge-capture/console/internal/metrics"
	"github.com/knowledge-capture/console/internal/models"
	"github.com/knowledge-capture/console/internal/strategy"
	"github.com/knowledge-capture/console/pkg/identity"
	"github.com/knowledge-capture/console/pkg/logger"
)

// FallbackAnswer replaces the assistant turn when a query fails for any reason.
const FallbackAnswer = "Sorry, I encountered an error."

var (
	ErrEmptyQuery      = errors.New("query is empty")
	ErrRequestInFlight = errors.New("a chat request is already in flight")
)

// Querier answers one question against the knowledge base.
type Querier interface {
	Query(ctx context.Context, req backend.QueryRequest) (*backend.QueryResponse, error)
}

// Orchestrator owns the conversation and allows one turn in flight.
type Orchestrator struct {
	querier   Querier
	identity  identity.Provider
	selector  *strategy.Selector
	publisher events.Publisher
	now       func() time.Time

	mu       sync.Mutex
	messages []models.ChatMessage
	draft    string
	awaiting bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGreeting seeds the conversation with one assistant message.
func WithGreeting(text string) Option {
	return func(o *Orchestrator) {
		if strings.TrimSpace(text) == "" {
			return
		}
		o.messages = append(o.messages, o.newMessage(models.RoleAssistant, text, nil))
	}
}

// WithPublisher sends a chat event after every conversation change.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator starts an empty conversation unless WithGreeting is given.
func NewOrchestrator(querier Querier, id identity.Provider, selector *strategy.Selector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		querier:   querier,
		identity:  id,
		selector:  selector,
		publisher: events.Discard{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Snapshot is a point-in-time copy of the conversation.
type Snapshot struct {
	Messages []models.ChatMessage `json:"messages"`
	Awaiting bool                 `json:"awaiting"`
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) Messages() []models.ChatMessage {
	return o.Snapshot().Messages
}

func (o *Orchestrator) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}

func (o *Orchestrator) Awaiting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.awaiting
}

func (o *Orchestrator) SetDraft(text string) {
	o.mu.Lock()
	o.draft = text
	o.mu.Unlock()
}

func (o *Orchestrator) Draft() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.draft
}

// Submit sends the current draft with the selected strategy.
func (o *Orchestrator) Submit(ctx context.Context) error {
	return o.SendMessage(ctx, o.Draft(), o.selector.Current().ID)
}

// SendMessage runs one user/assistant turn. Guard rejections (empty query,
// request already in flight, unknown strategy) change nothing and are
// returned. Once the user turn is accepted the call returns nil whatever
// the backend does: a failure becomes the fallback assistant message.
//
// The backend call is detached from ctx cancellation; an accepted turn
// always completes.
func (o *Orchestrator) SendMessage(ctx context.Context, query string, strategyID strategy.ID) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	if _, err := strategy.Lookup(strategyID); err != nil {
		return err
	}

	o.mu.Lock()
	if o.awaiting {
		o.mu.Unlock()
		return ErrRequestInFlight
	}
	o.messages = append(o.messages, o.newMessage(models.RoleUser, query, nil))
	o.draft = ""
	o.awaiting = true
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.publish(snap)

	reply := o.ask(context.WithoutCancel(ctx), query, strategyID)

	o.mu.Lock()
	o.messages = append(o.messages, reply)
	o.awaiting = false
	snap = o.snapshotLocked()
	o.mu.Unlock()
	o.publish(snap)

	return nil
}

func (o *Orchestrator) ask(ctx context.Context, query string, strategyID strategy.ID) models.ChatMessage {
	email, err := o.identity.Identity(ctx)
	if err != nil {
		logger.Error("Failed to resolve identity for chat query", zap.Error(err))
		metrics.ChatTurnsTotal.WithLabelValues("failed").Inc()
		return o.newMessage(models.RoleAssistant, FallbackAnswer, nil)
	}

	resp, err := o.querier.Query(ctx, backend.QueryRequest{
		Query:     query,
		UserEmail: email,
		Strategy:  strategyID,
	})
	if err != nil {
		logger.Error("Chat query failed",
			zap.String("strategy", string(strategyID)),
			zap.Error(err),
		)
		metrics.ChatTurnsTotal.WithLabelValues("failed").Inc()
		return o.newMessage(models.RoleAssistant, FallbackAnswer, nil)
	}

	sources := resp.Sources
	if sources == nil {
		sources = []models.SourceCitation{}
	}

	metrics.ChatTurnsTotal.WithLabelValues("answered").Inc()
	metrics.ChatSourcesCount.Observe(float64(len(sources)))
	logger.Info("Chat query answered",
		zap.String("strategy", string(strategyID)),
		zap.Int("sources", len(sources)),
	)

	return o.newMessage(models.RoleAssistant, resp.Answer, sources)
}

func (o *Orchestrator) newMessage(role models.Role, content string, sources []models.SourceCitation) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Sources:   sources,
		CreatedAt: o.now(),
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	msgs := make([]models.ChatMessage, len(o.messages))
	copy(msgs, o.messages)
	return Snapshot{Messages: msgs, Awaiting: o.awaiting}
}

func (o *Orchestrator) publish(snap Snapshot) {
	o.publisher.Publish(events.Event{Type: events.TypeChat, Payload: snap})
}
