package inbound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-identity-webhooks/core"
)

type claimStatus string

const (
	claimStatusProcessing claimStatus = "processing"
	claimStatusRetryReady claimStatus = "retry_ready"
	claimStatusComplete   claimStatus = "complete"
)

type claimEntry struct {
	Key            string
	Status         claimStatus
	ClaimID        string
	Attempts       int
	KeyTTL         time.Duration
	LeaseExpiresAt time.Time
	RetryAt        time.Time
}

// InMemoryClaimStore implements claim/complete/fail idempotency for a
// single process. Completed keys stay suppressed for their lease, failed
// keys become claimable again at their retry time, and stalled processing
// claims expire with their lease.
type InMemoryClaimStore struct {
	mu      sync.Mutex
	entries map[string]claimEntry
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{
		entries: map[string]claimEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *InMemoryClaimStore) Claim(
	_ context.Context,
	key string,
	lease time.Duration,
) (string, bool, error) {
	if s == nil {
		return "", false, inboundInternal("inbound: claim store is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, inboundBadInput("inbound: claim key is required", nil)
	}
	now := s.now()
	if lease <= 0 {
		lease = core.DefaultClaimLease
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	entry, exists := s.entries[key]
	if !exists {
		claimID := s.nextClaimID()
		s.entries[key] = claimEntry{
			Key:            key,
			Status:         claimStatusProcessing,
			ClaimID:        claimID,
			Attempts:       1,
			KeyTTL:         lease,
			LeaseExpiresAt: now.Add(lease),
		}
		s.claims[claimID] = key
		return claimID, true, nil
	}

	switch entry.Status {
	case claimStatusComplete:
		if !entry.LeaseExpiresAt.IsZero() && now.Before(entry.LeaseExpiresAt) {
			return "", false, nil
		}
	case claimStatusProcessing:
		if now.Before(entry.LeaseExpiresAt) {
			return "", false, nil
		}
	case claimStatusRetryReady:
		if !entry.RetryAt.IsZero() && now.Before(entry.RetryAt) {
			return "", false, nil
		}
	}

	if entry.ClaimID != "" {
		delete(s.claims, entry.ClaimID)
	}
	claimID := s.nextClaimID()
	entry.Status = claimStatusProcessing
	entry.ClaimID = claimID
	entry.Attempts++
	entry.KeyTTL = lease
	entry.LeaseExpiresAt = now.Add(lease)
	entry.RetryAt = time.Time{}
	s.entries[key] = entry
	s.claims[claimID] = key
	return claimID, true, nil
}

func (s *InMemoryClaimStore) Complete(_ context.Context, claimID string) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.claims[claimID]
	if !ok {
		return nil
	}
	entry, exists := s.entries[key]
	if !exists || entry.ClaimID != claimID || entry.Status != claimStatusProcessing {
		delete(s.claims, claimID)
		return nil
	}
	ttl := entry.KeyTTL
	if ttl <= 0 {
		ttl = core.DefaultClaimLease
	}
	now := s.now()
	entry.Status = claimStatusComplete
	entry.LeaseExpiresAt = now.Add(ttl)
	entry.RetryAt = time.Time{}
	s.entries[key] = entry
	delete(s.claims, claimID)
	return nil
}

func (s *InMemoryClaimStore) Fail(
	_ context.Context,
	claimID string,
	_ error,
	retryAt time.Time,
) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.claims[claimID]
	if !ok {
		return nil
	}
	entry, exists := s.entries[key]
	if !exists || entry.ClaimID != claimID || entry.Status != claimStatusProcessing {
		delete(s.claims, claimID)
		return nil
	}
	if retryAt.IsZero() {
		retryAt = s.now()
	}
	entry.Status = claimStatusRetryReady
	entry.RetryAt = retryAt.UTC()
	entry.LeaseExpiresAt = time.Time{}
	s.entries[key] = entry
	delete(s.claims, claimID)
	return nil
}

func (s *InMemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *InMemoryClaimStore) nextClaimID() string {
	s.nextID++
	return fmt.Sprintf("claim_%d", s.nextID)
}

func (s *InMemoryClaimStore) evictExpiredLocked(now time.Time) {
	for key, entry := range s.entries {
		if entry.Status != claimStatusComplete {
			continue
		}
		if entry.LeaseExpiresAt.IsZero() || !now.Before(entry.LeaseExpiresAt) {
			if entry.ClaimID != "" {
				delete(s.claims, entry.ClaimID)
			}
			delete(s.entries, key)
		}
	}
}
