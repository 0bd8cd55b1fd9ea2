package gocommand

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	webhookcommand "github.com/goliatone/go-identity-webhooks/command"
	webhookquery "github.com/goliatone/go-identity-webhooks/query"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ReplayQueueKey names the resolver that mirrors replay commands into a
// job queue registry for asynchronous execution.
const ReplayQueueKey = "webhooks.replay"

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// RegistryAdapter wraps a go-command registry so the replay surface can be
// registered and resolved without callers touching the registry directly.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// ReplaySurface bundles the replay commands and delivery queries after they
// have been registered. Subscribe wires them onto the process dispatcher.
type ReplaySurface struct {
	ReplayDelivery    *webhookcommand.ReplayDeliveryCommand
	ReplayRetryReady  *webhookcommand.ReplayRetryReadyCommand
	MarkDeliveryDead  *webhookcommand.MarkDeliveryDeadCommand
	GetDelivery       *webhookquery.GetDeliveryQuery
	ListRetryReady    *webhookquery.ListRetryReadyQuery
	GetDeliveryStatus *webhookquery.GetDeliveryStatusQuery

	subscriptions []commanddispatcher.Subscription
}

// RegisterReplaySurface builds the replay commands and delivery queries and
// registers them on the adapter. A non-nil queueRegistry also installs the
// queue resolver under ReplayQueueKey so commands mirror into the job queue
// when the registry initializes.
func RegisterReplaySurface(
	adapter *RegistryAdapter,
	service webhookcommand.ReplayService,
	reader webhookquery.DeliveryReader,
	queueRegistry *jobqueuecommand.Registry,
) (*ReplaySurface, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}

	// Missing collaborators surface as dependency errors when a command or
	// query executes, matching how the handlers behave when built directly.
	surface := &ReplaySurface{
		ReplayDelivery:    webhookcommand.NewReplayDeliveryCommand(service),
		ReplayRetryReady:  webhookcommand.NewReplayRetryReadyCommand(service),
		MarkDeliveryDead:  webhookcommand.NewMarkDeliveryDeadCommand(service),
		GetDelivery:       webhookquery.NewGetDeliveryQuery(reader),
		ListRetryReady:    webhookquery.NewListRetryReadyQuery(reader),
		GetDeliveryStatus: webhookquery.NewGetDeliveryStatusQuery(reader),
	}

	if queueRegistry != nil {
		if err := adapter.AddQueueResolver(ReplayQueueKey, queueRegistry); err != nil {
			return nil, err
		}
	}
	for _, cmd := range []any{surface.ReplayDelivery, surface.ReplayRetryReady, surface.MarkDeliveryDead} {
		if err := adapter.RegisterCommand(cmd); err != nil {
			return nil, err
		}
	}
	for _, qry := range []any{surface.GetDelivery, surface.ListRetryReady, surface.GetDeliveryStatus} {
		if err := adapter.RegisterQuery(qry); err != nil {
			return nil, err
		}
	}
	if err := adapter.Initialize(); err != nil {
		return nil, err
	}
	return surface, nil
}

// Subscribe attaches every command and query to the process dispatcher so
// Dispatch and Query route to them by message type.
func (s *ReplaySurface) Subscribe(runnerOpts ...runner.Option) []commanddispatcher.Subscription {
	if s == nil {
		return nil
	}
	subs := []commanddispatcher.Subscription{
		commanddispatcher.SubscribeCommand(s.ReplayDelivery, runnerOpts...),
		commanddispatcher.SubscribeCommand(s.ReplayRetryReady, runnerOpts...),
		commanddispatcher.SubscribeCommand(s.MarkDeliveryDead, runnerOpts...),
		commanddispatcher.SubscribeQuery(s.GetDelivery, runnerOpts...),
		commanddispatcher.SubscribeQuery(s.ListRetryReady, runnerOpts...),
		commanddispatcher.SubscribeQuery(s.GetDeliveryStatus, runnerOpts...),
	}
	s.subscriptions = append(s.subscriptions, subs...)
	return subs
}

func (s *ReplaySurface) Unsubscribe() {
	if s == nil {
		return
	}
	for _, sub := range s.subscriptions {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	s.subscriptions = nil
}
