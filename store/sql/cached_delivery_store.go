package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-identity-webhooks/core"
)

const deliveryCacheKeyPrefix = "go-identity-webhooks::delivery::v1"

// CachedDeliveryStore layers a read cache over a delivery ledger. Replay
// tooling polls Get far more often than the ledger changes; every write
// path invalidates the affected key so reads never serve a stale status.
type CachedDeliveryStore struct {
	base  core.DeliveryLedger
	cache repositorycache.CacheService

	mu        sync.Mutex
	claimKeys map[string]string
}

func NewCachedDeliveryStore(
	base core.DeliveryLedger,
	cacheService repositorycache.CacheService,
) (*CachedDeliveryStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base delivery ledger is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: delivery cache service is required")
	}
	return &CachedDeliveryStore{
		base:      base,
		cache:     cacheService,
		claimKeys: map[string]string{},
	}, nil
}

// DeliveryCacheKey returns the deterministic cache key contract for
// delivery reads: go-identity-webhooks::delivery::v1::<source>::<delivery_id>
// with each segment URL-path escaped.
func DeliveryCacheKey(source, deliveryID string) (string, error) {
	source = strings.TrimSpace(source)
	deliveryID = strings.TrimSpace(deliveryID)
	if source == "" || deliveryID == "" {
		return "", fmt.Errorf("sqlstore: source and delivery id are required")
	}
	return strings.Join([]string{
		deliveryCacheKeyPrefix,
		url.PathEscape(source),
		url.PathEscape(deliveryID),
	}, "::"), nil
}

func (s *CachedDeliveryStore) Claim(
	ctx context.Context,
	source string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (core.DeliveryRecord, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.DeliveryRecord{}, false, fmt.Errorf("sqlstore: cached delivery store is not configured")
	}
	record, claimed, err := s.base.Claim(ctx, source, deliveryID, payload, lease)
	if err != nil {
		return core.DeliveryRecord{}, false, err
	}
	cacheKey, keyErr := DeliveryCacheKey(source, deliveryID)
	if keyErr == nil {
		_ = s.cache.Delete(ctx, cacheKey)
		if claimed && record.ClaimID != "" {
			s.mu.Lock()
			s.claimKeys[record.ClaimID] = cacheKey
			s.mu.Unlock()
		}
	}
	return record, claimed, nil
}

func (s *CachedDeliveryStore) Get(
	ctx context.Context,
	source string,
	deliveryID string,
) (core.DeliveryRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.DeliveryRecord{}, fmt.Errorf("sqlstore: cached delivery store is not configured")
	}
	cacheKey, err := DeliveryCacheKey(source, deliveryID)
	if err != nil {
		return core.DeliveryRecord{}, err
	}
	record, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.DeliveryRecord, error) {
		fetched, fetchErr := s.base.Get(ctx, source, deliveryID)
		if fetchErr != nil {
			return core.DeliveryRecord{}, fetchErr
		}
		return cloneDeliveryRecord(fetched), nil
	})
	if err != nil {
		return core.DeliveryRecord{}, err
	}
	return cloneDeliveryRecord(record), nil
}

func (s *CachedDeliveryStore) ListRetryReady(
	ctx context.Context,
	source string,
	limit int,
) ([]core.DeliveryRecord, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached delivery store is not configured")
	}
	// Retry scans are time-sensitive and never cached.
	return s.base.ListRetryReady(ctx, source, limit)
}

func (s *CachedDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached delivery store is not configured")
	}
	if err := s.base.Complete(ctx, claimID); err != nil {
		return err
	}
	s.invalidateClaim(ctx, claimID)
	return nil
}

func (s *CachedDeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached delivery store is not configured")
	}
	if err := s.base.Fail(ctx, claimID, cause, nextAttemptAt, maxAttempts); err != nil {
		return err
	}
	s.invalidateClaim(ctx, claimID)
	return nil
}

func (s *CachedDeliveryStore) MarkDead(
	ctx context.Context,
	source string,
	deliveryID string,
	reason string,
) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached delivery store is not configured")
	}
	if err := s.base.MarkDead(ctx, source, deliveryID, reason); err != nil {
		return err
	}
	if cacheKey, err := DeliveryCacheKey(source, deliveryID); err == nil {
		_ = s.cache.Delete(ctx, cacheKey)
	}
	return nil
}

func (s *CachedDeliveryStore) invalidateClaim(ctx context.Context, claimID string) {
	s.mu.Lock()
	cacheKey, ok := s.claimKeys[claimID]
	if ok {
		delete(s.claimKeys, claimID)
	}
	s.mu.Unlock()
	if ok {
		_ = s.cache.Delete(ctx, cacheKey)
	}
}

func cloneDeliveryRecord(record core.DeliveryRecord) core.DeliveryRecord {
	cloned := record
	cloned.Payload = append([]byte(nil), record.Payload...)
	if record.NextAttemptAt != nil {
		value := record.NextAttemptAt.UTC()
		cloned.NextAttemptAt = &value
	}
	return cloned
}

var _ core.DeliveryLedger = (*CachedDeliveryStore)(nil)
