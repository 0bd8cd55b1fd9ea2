package core

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

var ErrSigningSecretRequired = errors.New("core: signing secret is required unless receiver.allow_unsigned is set")

// Runtime is the resolved composition root: validated configuration plus
// the collaborators every receiving component shares. It is built once at
// process start; nothing in it mutates afterwards.
type Runtime struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	secretSource    SecretSource
	claimStore      IdempotencyClaimStore
	ledger          DeliveryLedger
	verifier        Verifier
}

func NewRuntime(cfg Config, options ...Option) (*Runtime, error) {
	builder := defaultRuntimeBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("identity-webhooks", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("identity-webhooks"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.errorMapper == nil {
		builder.errorMapper = webhookErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	// A runtime with no verifier and no key material must not come up
	// verifying nothing; missing secrets fail closed at construction.
	if builder.verifier == nil && builder.secretSource == nil && !finalConfig.Receiver.AllowUnsigned {
		return nil, mapBuildError(builder.errorMapper, ErrSigningSecretRequired)
	}
	if finalConfig.Receiver.AllowUnsigned {
		logger.Warn("signature verification is disabled by configuration",
			"service_name", finalConfig.ServiceName,
		)
	}

	return &Runtime{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		secretSource:    builder.secretSource,
		claimStore:      builder.claimStore,
		ledger:          builder.ledger,
		verifier:        builder.verifier,
	}, nil
}

func (r *Runtime) Config() Config {
	if r == nil {
		return Config{}
	}
	return r.config
}

func (r *Runtime) Logger() Logger {
	if r == nil || r.logger == nil {
		return glog.Nop()
	}
	return r.logger
}

func (r *Runtime) LoggerProvider() LoggerProvider {
	if r == nil {
		return nil
	}
	return r.loggerProvider
}

func (r *Runtime) Metrics() MetricsRecorder {
	if r == nil || r.metricsRecorder == nil {
		return NopMetricsRecorder{}
	}
	return r.metricsRecorder
}

func (r *Runtime) ErrorMapper() ErrorMapper {
	if r == nil || r.errorMapper == nil {
		return webhookErrorMapper
	}
	return r.errorMapper
}

func (r *Runtime) SecretSource() SecretSource {
	if r == nil {
		return nil
	}
	return r.secretSource
}

func (r *Runtime) ClaimStore() IdempotencyClaimStore {
	if r == nil {
		return nil
	}
	return r.claimStore
}

func (r *Runtime) Ledger() DeliveryLedger {
	if r == nil {
		return nil
	}
	return r.ledger
}

func (r *Runtime) Verifier() Verifier {
	if r == nil {
		return nil
	}
	return r.verifier
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}
