// Package app assembles the orchestration core from configuration. Both the
// console gateway and the CLI start here.
package app

import (
	"fmt"
	"time"

	"github.com/knowledge-capture/console/internal/backend"
	"github.com/knowledge-capture/console/internal/chat"
	"github.com/knowledge-capture/console/internal/endpoints"
	"github.com/knowledge-capture/console/internal/events"
	"github.com/knowledge-capture/console/internal/metrics"
	"github.com/knowledge-capture/console/internal/strategy"
	"github.com/knowledge-capture/console/internal/upload"
	"github.com/knowledge-capture/console/pkg/circuitbreaker"
	"github.com/knowledge-capture/console/pkg/config"
	"github.com/knowledge-capture/console/pkg/identity"
	"github.com/knowledge-capture/console/pkg/logger"
)

type App struct {
	Config    *config.Config
	Endpoints *endpoints.Registry
	Backend   *backend.Client
	Selector  *strategy.Selector
	Hub       *events.Hub
	Chat      *chat.Orchestrator
	Upload    *upload.Orchestrator
}

// New wires every component. id overrides the configured identity when
// non-nil, which is how an auth layer would plug in.
func New(cfg *config.Config, id identity.Provider) (*App, error) {
	if id == nil {
		id = identity.Static(cfg.Identity.Email)
	}

	registry, err := endpoints.New(cfg.Backend.BaseURL)
	if err != nil {
		return nil, err
	}

	var opts []backend.Option
	if cfg.Breaker.Enabled {
		opts = append(opts, backend.WithBreaker(newBreaker(cfg.Breaker)))
	}
	client := backend.NewClient(registry, cfg.Backend.Timeout(), opts...)

	selector, err := strategy.NewSelector(strategy.ID(cfg.Chat.DefaultStrategy))
	if err != nil {
		return nil, fmt.Errorf("chat.defaultStrategy: %w", err)
	}

	hub := events.NewHub(32)

	return &App{
		Config:    cfg,
		Endpoints: registry,
		Backend:   client,
		Selector:  selector,
		Hub:       hub,
		Chat: chat.NewOrchestrator(client, id, selector,
			chat.WithGreeting(cfg.Chat.Greeting),
			chat.WithPublisher(hub),
		),
		Upload: upload.NewOrchestrator(client, id,
			upload.WithResetDelay(cfg.Upload.SuccessReset()),
			upload.WithPublisher(hub),
		),
	}, nil
}

// SelectStrategy changes the current strategy and tells observers.
func (a *App) SelectStrategy(id strategy.ID) error {
	if err := a.Selector.Select(id); err != nil {
		return err
	}
	a.Hub.Publish(events.Event{Type: events.TypeStrategy, Payload: a.Selector.Current()})
	return nil
}

func newBreaker(cfg config.BreakerConfig) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New("backend", circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		OpenTimeout:      time.Duration(cfg.OpenTimeoutSec) * time.Second,
		IsFailure: func(err error) bool {
			return err != nil && !backend.IsClientError(err)
		},
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			metrics.BreakerStateChanges.WithLabelValues(name, to.String()).Inc()
		},
		Logger: logger.GetLogger(),
	})
}
