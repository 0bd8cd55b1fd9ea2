package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type runtimeBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	secretSource    SecretSource
	claimStore      IdempotencyClaimStore
	ledger          DeliveryLedger
	verifier        Verifier
}

type Option func(*runtimeBuilder)

func WithLogger(logger Logger) Option {
	return func(b *runtimeBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *runtimeBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *runtimeBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *runtimeBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *runtimeBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *runtimeBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *runtimeBuilder) {
		b.optionsResolver = resolver
	}
}

func WithSecretSource(source SecretSource) Option {
	return func(b *runtimeBuilder) {
		b.secretSource = source
	}
}

func WithClaimStore(store IdempotencyClaimStore) Option {
	return func(b *runtimeBuilder) {
		b.claimStore = store
	}
}

func WithDeliveryLedger(ledger DeliveryLedger) Option {
	return func(b *runtimeBuilder) {
		b.ledger = ledger
	}
}

func WithVerifier(verifier Verifier) Option {
	return func(b *runtimeBuilder) {
		b.verifier = verifier
	}
}

func defaultRuntimeBuilder(runtime Config) runtimeBuilder {
	loggerProvider, logger := glog.Resolve("identity-webhooks", nil, nil)
	return runtimeBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     webhookErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	receiver := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Receiver.SignatureHeader) != "" {
		receiver["signature_header"] = cfg.Receiver.SignatureHeader
	}
	if includeZero || strings.TrimSpace(cfg.Receiver.SignaturePrefix) != "" {
		receiver["signature_prefix"] = cfg.Receiver.SignaturePrefix
	}
	if includeZero || cfg.Receiver.MaxBodyBytes > 0 {
		receiver["max_body_bytes"] = cfg.Receiver.MaxBodyBytes
	}
	if includeZero || cfg.Receiver.AllowUnsigned {
		receiver["allow_unsigned"] = cfg.Receiver.AllowUnsigned
	}
	if len(receiver) > 0 {
		layer["receiver"] = receiver
	}

	dispatch := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Dispatch.Source) != "" {
		dispatch["source"] = cfg.Dispatch.Source
	}
	if includeZero || cfg.Dispatch.ClaimLease > 0 {
		dispatch["claim_lease"] = cfg.Dispatch.ClaimLease
	}
	if includeZero || cfg.Dispatch.MaxAttempts > 0 {
		dispatch["max_attempts"] = cfg.Dispatch.MaxAttempts
	}
	if len(dispatch) > 0 {
		layer["dispatch"] = dispatch
	}
	return layer
}
