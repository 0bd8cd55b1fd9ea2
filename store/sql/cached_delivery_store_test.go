package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-identity-webhooks/core"
)

type stubDeliveryLedger struct {
	mu       sync.Mutex
	record   core.DeliveryRecord
	getCalls int
	getErr   error
}

func (s *stubDeliveryLedger) Claim(_ context.Context, source, deliveryID string, _ []byte, _ time.Duration) (core.DeliveryRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Source = source
	s.record.DeliveryID = deliveryID
	return cloneDeliveryRecord(s.record), true, nil
}

func (s *stubDeliveryLedger) Get(_ context.Context, _, _ string) (core.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.DeliveryRecord{}, s.getErr
	}
	return cloneDeliveryRecord(s.record), nil
}

func (s *stubDeliveryLedger) ListRetryReady(context.Context, string, int) ([]core.DeliveryRecord, error) {
	return nil, nil
}

func (s *stubDeliveryLedger) Complete(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Status = core.DeliveryStatusProcessed
	return nil
}

func (s *stubDeliveryLedger) Fail(_ context.Context, _ string, cause error, nextAttemptAt time.Time, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Status = core.DeliveryStatusRetryReady
	if cause != nil {
		s.record.LastError = cause.Error()
	}
	value := nextAttemptAt.UTC()
	s.record.NextAttemptAt = &value
	return nil
}

func (s *stubDeliveryLedger) MarkDead(_ context.Context, _, _, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.Status = core.DeliveryStatusDead
	s.record.LastError = reason
	return nil
}

func newTestDeliveryCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedDeliveryStore_Get_MissFetchThenHit(t *testing.T) {
	base := &stubDeliveryLedger{
		record: core.DeliveryRecord{
			ID:         "row-1",
			ClaimID:    "claim-1",
			Source:     "identity",
			DeliveryID: "evt-1",
			Status:     core.DeliveryStatusProcessing,
			Attempts:   1,
		},
	}
	store, err := NewCachedDeliveryStore(base, newTestDeliveryCacheService(t))
	if err != nil {
		t.Fatalf("new cached delivery store: %v", err)
	}

	if _, err := store.Get(context.Background(), "identity", "evt-1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected first get to fetch base ledger once, got %d", base.getCalls)
	}

	if _, err := store.Get(context.Background(), "identity", "evt-1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}
}

func TestCachedDeliveryStore_CompleteInvalidatesCachedKey(t *testing.T) {
	base := &stubDeliveryLedger{
		record: core.DeliveryRecord{
			ID:         "row-2",
			ClaimID:    "claim-2",
			Source:     "identity",
			DeliveryID: "evt-2",
			Status:     core.DeliveryStatusProcessing,
			Attempts:   1,
		},
	}
	store, err := NewCachedDeliveryStore(base, newTestDeliveryCacheService(t))
	if err != nil {
		t.Fatalf("new cached delivery store: %v", err)
	}

	record, claimed, err := store.Claim(context.Background(), "identity", "evt-2", []byte(`{"type":"user.create","id":"evt-2"}`), time.Minute)
	if err != nil || !claimed {
		t.Fatalf("claim: claimed=%v err=%v", claimed, err)
	}
	if _, err := store.Get(context.Background(), "identity", "evt-2"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	reads := base.getCalls

	if err := store.Complete(context.Background(), record.ClaimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	refreshed, err := store.Get(context.Background(), "identity", "evt-2")
	if err != nil {
		t.Fatalf("get after complete: %v", err)
	}
	if base.getCalls != reads+1 {
		t.Fatalf("expected complete to invalidate the cached key, base get calls=%d", base.getCalls)
	}
	if refreshed.Status != core.DeliveryStatusProcessed {
		t.Fatalf("expected refreshed status processed, got %s", refreshed.Status)
	}
}

func TestDeliveryCacheKey_Contract(t *testing.T) {
	key, err := DeliveryCacheKey("identity", "evt/weird id")
	if err != nil {
		t.Fatalf("build cache key: %v", err)
	}
	const expected = "go-identity-webhooks::delivery::v1::identity::evt%2Fweird%20id"
	if key != expected {
		t.Fatalf("unexpected cache key contract: got %q want %q", key, expected)
	}
}

func TestCachedDeliveryStore_PropagatesBaseErrors(t *testing.T) {
	notFound := errors.New("sqlstore: delivery not found")
	base := &stubDeliveryLedger{getErr: notFound}
	store, err := NewCachedDeliveryStore(base, newTestDeliveryCacheService(t))
	if err != nil {
		t.Fatalf("new cached delivery store: %v", err)
	}
	if _, err := store.Get(context.Background(), "identity", "missing"); !errors.Is(err, notFound) {
		t.Fatalf("expected base error propagation, got %v", err)
	}
}
