package identitywebhooks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goliatone/go-identity-webhooks/adapters/gocommand"
	webhookcommand "github.com/goliatone/go-identity-webhooks/command"
	"github.com/goliatone/go-identity-webhooks/core"
	"github.com/goliatone/go-identity-webhooks/inbound"
	webhookquery "github.com/goliatone/go-identity-webhooks/query"
	"github.com/goliatone/go-identity-webhooks/receiver"
	"github.com/goliatone/go-identity-webhooks/signature"
)

type Commands struct {
	ReplayDelivery   *webhookcommand.ReplayDeliveryCommand
	ReplayRetryReady *webhookcommand.ReplayRetryReadyCommand
	MarkDeliveryDead *webhookcommand.MarkDeliveryDeadCommand
}

type Queries struct {
	GetDelivery       *webhookquery.GetDeliveryQuery
	ListRetryReady    *webhookquery.ListRetryReadyQuery
	GetDeliveryStatus *webhookquery.GetDeliveryStatusQuery
}

// Facade composes the receiving pipeline end to end: runtime, verifier,
// dispatcher, HTTP receiver, and the replay command/query surface. Handlers
// registered through it participate in alias routing and dedupe exactly as
// if they were wired by hand.
type Facade struct {
	runtime    *core.Runtime
	dispatcher *inbound.Dispatcher
	receiver   *receiver.Receiver
	replayer   *inbound.Replayer
	registry   *gocommand.RegistryAdapter
	commands   Commands
	queries    Queries
}

func NewFacade(cfg Config, opts ...Option) (*Facade, error) {
	runtime, err := core.NewRuntime(cfg, opts...)
	if err != nil {
		return nil, err
	}
	resolved := runtime.Config()

	verifier := runtime.Verifier()
	if verifier == nil {
		if resolved.Receiver.AllowUnsigned {
			skip, skipErr := signature.NewInsecureSkipVerifier("allow_unsigned set by configuration")
			if skipErr != nil {
				return nil, skipErr
			}
			verifier = skip
		} else {
			verifier = signature.SourceHMACVerifier{
				Header: resolved.Receiver.SignatureHeader,
				Prefix: resolved.Receiver.SignaturePrefix,
				Source: runtime.SecretSource(),
			}
		}
	}

	dispatcher := inbound.NewDispatcher(resolved.Dispatch.Source)
	dispatcher.Store = runtime.ClaimStore()
	dispatcher.Ledger = runtime.Ledger()
	dispatcher.Logger = runtime.Logger()
	if resolved.Dispatch.ClaimLease > 0 {
		dispatcher.ClaimLease = resolved.Dispatch.ClaimLease
	}
	if resolved.Dispatch.MaxAttempts > 0 {
		dispatcher.MaxAttempts = resolved.Dispatch.MaxAttempts
	}

	rcv := receiver.New(resolved.Dispatch.Source, verifier, dispatcher).FromConfig(resolved)
	rcv.Logger = runtime.Logger()
	rcv.Metrics = runtime.Metrics()
	rcv.ErrorMapper = runtime.ErrorMapper()
	rcv.Observer = runtime

	replayer := inbound.NewReplayer(runtime.Ledger(), dispatcher)
	replayer.Logger = runtime.Logger()

	facade := &Facade{
		runtime:    runtime,
		dispatcher: dispatcher,
		receiver:   rcv,
		replayer:   replayer,
	}
	facade.registry = gocommand.NewRegistryAdapter(nil)
	surface, err := gocommand.RegisterReplaySurface(facade.registry, replayer, runtime.Ledger(), nil)
	if err != nil {
		return nil, err
	}
	facade.commands = Commands{
		ReplayDelivery:   surface.ReplayDelivery,
		ReplayRetryReady: surface.ReplayRetryReady,
		MarkDeliveryDead: surface.MarkDeliveryDead,
	}
	facade.queries = Queries{
		GetDelivery:       surface.GetDelivery,
		ListRetryReady:    surface.ListRetryReady,
		GetDeliveryStatus: surface.GetDeliveryStatus,
	}

	return facade, nil
}

// Register binds handler to every event type it reports.
func (f *Facade) Register(handler EventHandler) error {
	if f == nil || f.dispatcher == nil {
		return fmt.Errorf("webhooks: facade is not configured")
	}
	return f.dispatcher.Register(handler)
}

// RegisterFunc binds fn to the given event types.
func (f *Facade) RegisterFunc(fn func(ctx context.Context, env Envelope) error, types ...string) error {
	if f == nil || f.dispatcher == nil {
		return fmt.Errorf("webhooks: facade is not configured")
	}
	return f.dispatcher.RegisterFunc(fn, types...)
}

// Handler is the HTTP endpoint that receives deliveries.
func (f *Facade) Handler() http.Handler {
	if f == nil {
		return nil
	}
	return f.receiver
}

func (f *Facade) Runtime() *core.Runtime {
	if f == nil {
		return nil
	}
	return f.runtime
}

func (f *Facade) Dispatcher() *inbound.Dispatcher {
	if f == nil {
		return nil
	}
	return f.dispatcher
}

func (f *Facade) Replayer() *inbound.Replayer {
	if f == nil {
		return nil
	}
	return f.replayer
}

// CommandRegistry exposes the registry the replay surface is registered on
// so callers can attach resolvers or mirror commands into a job queue.
func (f *Facade) CommandRegistry() *gocommand.RegistryAdapter {
	if f == nil {
		return nil
	}
	return f.registry
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

// Wait blocks until all in-flight asynchronous dispatches have finished.
func (f *Facade) Wait() {
	if f == nil || f.receiver == nil {
		return
	}
	f.receiver.Wait()
}
