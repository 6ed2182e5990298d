package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-capture/console/internal/backend"
	"github.com/knowledge-capture/console/internal/events"
	"github.com/knowledge-capture/console/internal/models"
	"github.com/knowledge-capture/console/internal/strategy"
	"github.com/knowledge-capture/console/pkg/identity"
)

type fakeQuerier struct {
	mu       sync.Mutex
	requests []backend.QueryRequest
	resp     *backend.QueryResponse
	err      error
	// block, when set, holds the call until closed.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeQuerier) Query(ctx context.Context, req backend.QueryRequest) (*backend.QueryResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.resp, f.err
}

func (f *fakeQuerier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestOrchestrator(t *testing.T, q Querier, opts ...Option) *Orchestrator {
	t.Helper()
	sel, err := strategy.NewSelector(strategy.Vector)
	require.NoError(t, err)
	return NewOrchestrator(q, identity.Static("varun@example.com"), sel, opts...)
}

func TestSendMessageIgnoresBlankQueries(t *testing.T) {
	q := &fakeQuerier{resp: &backend.QueryResponse{Answer: "x"}}
	o := newTestOrchestrator(t, q)

	for _, query := range []string{"", " ", "\t\n", "   \r\n  "} {
		err := o.SendMessage(context.Background(), query, strategy.Vector)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
	assert.Zero(t, o.Len())
	assert.Zero(t, q.calls())
}

func TestSendMessageSuccess(t *testing.T) {
	sources := []models.SourceCitation{
		{Content: "Refunds within 30 days", Score: 0.92, Metadata: models.SourceMetadata{Source: "policy.pdf"}},
		{Content: "Contact support", Score: 0.41},
	}
	q := &fakeQuerier{resp: &backend.QueryResponse{Answer: "You can get a refund within **30 days**.", Sources: sources}}
	o := newTestOrchestrator(t, q)

	o.SetDraft("What is the refund policy?")
	err := o.SendMessage(context.Background(), "What is the refund policy?", strategy.Hybrid)
	require.NoError(t, err)

	require.Equal(t, 1, q.calls())
	assert.Equal(t, backend.QueryRequest{
		Query:     "What is the refund policy?",
		UserEmail: "varun@example.com",
		Strategy:  strategy.Hybrid,
	}, q.requests[0])

	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "What is the refund policy?", msgs[0].Content)
	assert.Nil(t, msgs[0].Sources)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "You can get a refund within **30 days**.", msgs[1].Content)
	assert.Equal(t, sources, msgs[1].Sources)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)

	assert.False(t, o.Awaiting())
	assert.Empty(t, o.Draft())
}

func TestSendMessageEmptySources(t *testing.T) {
	q := &fakeQuerier{resp: &backend.QueryResponse{Answer: "nothing found"}}
	o := newTestOrchestrator(t, q)

	require.NoError(t, o.SendMessage(context.Background(), "anything?", strategy.Keyword))

	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.NotNil(t, msgs[1].Sources)
	assert.Empty(t, msgs[1].Sources)
}

func TestSendMessageFailureAppendsFallback(t *testing.T) {
	q := &fakeQuerier{err: &backend.StatusError{Operation: backend.OpQuery, StatusCode: 500}}
	o := newTestOrchestrator(t, q)

	require.NoError(t, o.SendMessage(context.Background(), "hello", strategy.Vector))

	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, FallbackAnswer, msgs[1].Content)
	assert.Nil(t, msgs[1].Sources)
	assert.False(t, o.Awaiting())
	assert.Equal(t, 1, q.calls())

	q.err = nil
	q.resp = &backend.QueryResponse{Answer: "back again"}
	require.NoError(t, o.SendMessage(context.Background(), "retry by hand", strategy.Vector))
	assert.Equal(t, 4, o.Len())
	assert.Equal(t, 2, q.calls())
}

func TestSendMessageIdentityFailure(t *testing.T) {
	q := &fakeQuerier{resp: &backend.QueryResponse{Answer: "x"}}
	sel, _ := strategy.NewSelector("")
	o := NewOrchestrator(q, identity.Static(""), sel)

	require.NoError(t, o.SendMessage(context.Background(), "hi", strategy.Vector))
	assert.Zero(t, q.calls())
	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, FallbackAnswer, msgs[1].Content)
}

func TestSendMessageRejectsUnknownStrategy(t *testing.T) {
	q := &fakeQuerier{resp: &backend.QueryResponse{Answer: "x"}}
	o := newTestOrchestrator(t, q)

	err := o.SendMessage(context.Background(), "hi", "bm25")
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
	assert.Zero(t, o.Len())
	assert.Zero(t, q.calls())
}

func TestSendMessageRejectsWhileInFlight(t *testing.T) {
	q := &fakeQuerier{
		resp:    &backend.QueryResponse{Answer: "slow answer"},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	o := newTestOrchestrator(t, q)

	done := make(chan error, 1)
	go func() {
		done <- o.SendMessage(context.Background(), "first", strategy.Vector)
	}()
	<-q.entered

	assert.True(t, o.Awaiting())
	err := o.SendMessage(context.Background(), "second", strategy.Vector)
	assert.ErrorIs(t, err, ErrRequestInFlight)
	assert.Equal(t, 1, o.Len())

	close(q.block)
	require.NoError(t, <-done)
	assert.False(t, o.Awaiting())
	assert.Equal(t, 2, o.Len())
	assert.Equal(t, 1, q.calls())
}

func TestSendMessageSurvivesCallerCancellation(t *testing.T) {
	q := &fakeQuerier{resp: &backend.QueryResponse{Answer: "done"}}
	o := newTestOrchestrator(t, q)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, o.SendMessage(ctx, "still runs", strategy.Vector))
	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "done", msgs[1].Content)
}

func TestSubmitUsesDraftAndSelection(t *testing.T) {
	q := &fakeQuerier{resp: &backend.QueryResponse{Answer: "ok"}}
	o := newTestOrchestrator(t, q)
	require.NoError(t, o.selector.Select(strategy.QueryDecomposeHybrid))

	o.SetDraft("break this down")
	require.NoError(t, o.Submit(context.Background()))

	require.Equal(t, 1, q.calls())
	assert.Equal(t, strategy.QueryDecomposeHybrid, q.requests[0].Strategy)
	assert.Equal(t, "break this down", q.requests[0].Query)
	assert.Empty(t, o.Draft())

	assert.ErrorIs(t, o.Submit(context.Background()), ErrEmptyQuery)
}

func TestGreetingAndEvents(t *testing.T) {
	hub := events.NewHub(8)
	sub, cancel := hub.Subscribe()
	defer cancel()

	q := &fakeQuerier{err: errors.New("connection refused")}
	o := newTestOrchestrator(t, q, WithGreeting("Hello! Ask me anything about your documents."), WithPublisher(hub))
	require.Equal(t, 1, o.Len())

	require.NoError(t, o.SendMessage(context.Background(), "hi", strategy.Vector))

	first := (<-sub).Payload.(Snapshot)
	assert.True(t, first.Awaiting)
	assert.Len(t, first.Messages, 2)

	second := (<-sub).Payload.(Snapshot)
	assert.False(t, second.Awaiting)
	assert.Len(t, second.Messages, 3)
}

func TestSnapshotIsACopy(t *testing.T) {
	q := &fakeQuerier{resp: &backend.QueryResponse{Answer: "a"}}
	o := newTestOrchestrator(t, q)
	require.NoError(t, o.SendMessage(context.Background(), "q", strategy.Vector))

	msgs := o.Messages()
	msgs[0].Content = "tampered"
	assert.Equal(t, "q", o.Messages()[0].Content)
}
