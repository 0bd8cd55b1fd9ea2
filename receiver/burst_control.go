package receiver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-identity-webhooks/core"
)

type BurstMode string

const (
	BurstModeNone     BurstMode = "none"
	BurstModeCoalesce BurstMode = "coalesce"
	BurstModeDebounce BurstMode = "debounce"
)

// BurstDecision reports whether a delivery should dispatch. A disallowed
// delivery is still acknowledged; it just skips handler execution.
type BurstDecision struct {
	Allow    bool
	Metadata map[string]any
}

type BurstController interface {
	Allow(ctx context.Context, env core.Envelope) (BurstDecision, error)
}

// BurstKeyExtractor derives the coalescing key for an event. Returning
// ok=false exempts the event from burst control.
type BurstKeyExtractor func(env core.Envelope) (string, bool)

type BurstOptions struct {
	Mode       BurstMode
	Window     time.Duration
	MaxEntries int
	ExtractKey BurstKeyExtractor
	Now        func() time.Time
}

// DefaultBurstController suppresses rapid repeats of the same event key
// inside a sliding window. The identity service can emit a flurry of
// user.update notices while an admin edits a profile; coalescing keeps the
// handler from reprocessing the same user on every keystroke.
type DefaultBurstController struct {
	mode       BurstMode
	window     time.Duration
	maxEntries int
	extractKey BurstKeyExtractor
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewBurstController(opts BurstOptions) *DefaultBurstController {
	mode := normalizeBurstMode(opts.Mode)
	window := opts.Window
	if window <= 0 {
		window = 2 * time.Second
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	extractKey := opts.ExtractKey
	if extractKey == nil {
		extractKey = DefaultBurstKeyExtractor
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DefaultBurstController{
		mode:       mode,
		window:     window,
		maxEntries: maxEntries,
		extractKey: extractKey,
		now:        now,
		entries:    map[string]time.Time{},
	}
}

func (c *DefaultBurstController) Allow(_ context.Context, env core.Envelope) (BurstDecision, error) {
	if c == nil || c.mode == BurstModeNone {
		return BurstDecision{Allow: true}, nil
	}
	key, ok := c.extractKey(env)
	if !ok {
		return BurstDecision{Allow: true}, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return BurstDecision{Allow: true}, nil
	}

	now := c.now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()

	lastSeen, exists := c.entries[key]
	c.entries[key] = now
	c.cleanup(now)
	if !exists || now.Sub(lastSeen) >= c.window {
		return BurstDecision{Allow: true}, nil
	}

	metadata := map[string]any{
		"burst_mode":      string(c.mode),
		"burst_key":       key,
		"burst_window_ms": c.window.Milliseconds(),
	}
	switch c.mode {
	case BurstModeCoalesce:
		metadata["coalesced"] = true
	case BurstModeDebounce:
		metadata["debounced"] = true
	default:
		return BurstDecision{Allow: true}, nil
	}
	return BurstDecision{Allow: false, Metadata: metadata}, nil
}

func (c *DefaultBurstController) cleanup(now time.Time) {
	if len(c.entries) <= c.maxEntries {
		for key, seenAt := range c.entries {
			if now.Sub(seenAt) > c.window*4 {
				delete(c.entries, key)
			}
		}
		return
	}
	for key, seenAt := range c.entries {
		if now.Sub(seenAt) > c.window {
			delete(c.entries, key)
		}
		if len(c.entries) <= c.maxEntries {
			break
		}
	}
}

// DefaultBurstKeyExtractor keys update-style events by event type plus
// subject so distinct users never coalesce with each other. Events without
// a subject are exempt.
func DefaultBurstKeyExtractor(env core.Envelope) (string, bool) {
	eventType := strings.TrimSpace(strings.ToLower(env.Type))
	if eventType == "" {
		return "", false
	}
	if env.User != nil && strings.TrimSpace(env.User.ID) != "" {
		return eventType + ":" + strings.TrimSpace(env.User.ID), true
	}
	if env.Token != nil && strings.TrimSpace(env.Token.TokenID) != "" {
		return eventType + ":" + strings.TrimSpace(env.Token.TokenID), true
	}
	return "", false
}

func normalizeBurstMode(mode BurstMode) BurstMode {
	switch BurstMode(strings.TrimSpace(strings.ToLower(string(mode)))) {
	case BurstModeCoalesce:
		return BurstModeCoalesce
	case BurstModeDebounce:
		return BurstModeDebounce
	default:
		return BurstModeNone
	}
}
