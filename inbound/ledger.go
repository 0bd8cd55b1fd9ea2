package inbound

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/goliatone/go-identity-webhooks/core"
)

// InMemoryDeliveryLedger keeps delivery records and their raw payloads in
// process memory. It carries the same claim semantics as the SQL ledger so
// tests and single-node deployments can run without a database.
type InMemoryDeliveryLedger struct {
	mu      sync.Mutex
	records map[string]*core.DeliveryRecord
	claims  map[string]string
	Now     func() time.Time
}

func NewInMemoryDeliveryLedger() *InMemoryDeliveryLedger {
	return &InMemoryDeliveryLedger{
		records: map[string]*core.DeliveryRecord{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *InMemoryDeliveryLedger) Claim(
	_ context.Context,
	source string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (core.DeliveryRecord, bool, error) {
	if l == nil {
		return core.DeliveryRecord{}, false, inboundInternal("inbound: delivery ledger is nil", nil)
	}
	source = strings.TrimSpace(source)
	deliveryID = strings.TrimSpace(deliveryID)
	if source == "" || deliveryID == "" {
		return core.DeliveryRecord{}, false, inboundBadInput("inbound: source and delivery id are required", nil)
	}
	if lease <= 0 {
		lease = core.DefaultClaimLease
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(source, deliveryID)
	record, exists := l.records[key]
	if !exists {
		claimID := uuid.NewString()
		record = &core.DeliveryRecord{
			ID:         uuid.NewString(),
			ClaimID:    claimID,
			Source:     source,
			DeliveryID: deliveryID,
			Status:     core.DeliveryStatusProcessing,
			Attempts:   1,
			Payload:    append([]byte(nil), payload...),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		l.records[key] = record
		l.claims[claimID] = key
		return *record, true, nil
	}

	switch record.Status {
	case core.DeliveryStatusProcessed, core.DeliveryStatusDead:
		return *record, false, nil
	case core.DeliveryStatusProcessing:
		if now.Sub(record.UpdatedAt) < lease {
			return *record, false, nil
		}
	case core.DeliveryStatusRetryReady:
		if record.NextAttemptAt != nil && now.Before(*record.NextAttemptAt) {
			return *record, false, nil
		}
	}

	if record.ClaimID != "" {
		delete(l.claims, record.ClaimID)
	}
	claimID := uuid.NewString()
	record.ClaimID = claimID
	record.Status = core.DeliveryStatusProcessing
	record.Attempts++
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	if len(record.Payload) == 0 && len(payload) > 0 {
		record.Payload = append([]byte(nil), payload...)
	}
	l.claims[claimID] = key
	return *record, true, nil
}

func (l *InMemoryDeliveryLedger) Get(
	_ context.Context,
	source string,
	deliveryID string,
) (core.DeliveryRecord, error) {
	if l == nil {
		return core.DeliveryRecord{}, inboundInternal("inbound: delivery ledger is nil", nil)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, exists := l.records[ledgerKey(strings.TrimSpace(source), strings.TrimSpace(deliveryID))]
	if !exists {
		return core.DeliveryRecord{}, inboundError(
			fmt.Sprintf("inbound: delivery %q not found for source %q", deliveryID, source),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.WebhookErrorNotFound,
			map[string]any{"source": source, "delivery_id": deliveryID},
		)
	}
	return *record, nil
}

func (l *InMemoryDeliveryLedger) ListRetryReady(
	_ context.Context,
	source string,
	limit int,
) ([]core.DeliveryRecord, error) {
	if l == nil {
		return nil, inboundInternal("inbound: delivery ledger is nil", nil)
	}
	source = strings.TrimSpace(source)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	var ready []core.DeliveryRecord
	for _, record := range l.records {
		if source != "" && record.Source != source {
			continue
		}
		if record.Status != core.DeliveryStatusRetryReady {
			continue
		}
		if record.NextAttemptAt != nil && now.Before(*record.NextAttemptAt) {
			continue
		}
		ready = append(ready, *record)
		if limit > 0 && len(ready) >= limit {
			break
		}
	}
	return ready, nil
}

func (l *InMemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return inboundInternal("inbound: delivery ledger is nil", nil)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record := l.recordForClaimLocked(claimID)
	if record == nil {
		return nil
	}
	record.Status = core.DeliveryStatusProcessed
	record.LastError = ""
	record.NextAttemptAt = nil
	record.UpdatedAt = l.now()
	delete(l.claims, claimID)
	return nil
}

func (l *InMemoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if l == nil {
		return inboundInternal("inbound: delivery ledger is nil", nil)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record := l.recordForClaimLocked(claimID)
	if record == nil {
		return nil
	}
	now := l.now()
	if cause != nil {
		record.LastError = cause.Error()
	}
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = core.DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		if nextAttemptAt.IsZero() {
			nextAttemptAt = now
		}
		nextAttemptAt = nextAttemptAt.UTC()
		record.Status = core.DeliveryStatusRetryReady
		record.NextAttemptAt = &nextAttemptAt
	}
	record.UpdatedAt = now
	delete(l.claims, claimID)
	return nil
}

func (l *InMemoryDeliveryLedger) MarkDead(
	_ context.Context,
	source string,
	deliveryID string,
	reason string,
) error {
	if l == nil {
		return inboundInternal("inbound: delivery ledger is nil", nil)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, exists := l.records[ledgerKey(strings.TrimSpace(source), strings.TrimSpace(deliveryID))]
	if !exists {
		return inboundError(
			fmt.Sprintf("inbound: delivery %q not found for source %q", deliveryID, source),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.WebhookErrorNotFound,
			map[string]any{"source": source, "delivery_id": deliveryID},
		)
	}
	if record.ClaimID != "" {
		delete(l.claims, record.ClaimID)
		record.ClaimID = ""
	}
	record.Status = core.DeliveryStatusDead
	record.LastError = reason
	record.NextAttemptAt = nil
	record.UpdatedAt = l.now()
	return nil
}

func (l *InMemoryDeliveryLedger) recordForClaimLocked(claimID string) *core.DeliveryRecord {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil
	}
	key, ok := l.claims[claimID]
	if !ok {
		return nil
	}
	record, exists := l.records[key]
	if !exists || record.ClaimID != claimID || record.Status != core.DeliveryStatusProcessing {
		return nil
	}
	return record
}

func (l *InMemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func ledgerKey(source, deliveryID string) string {
	return source + ":" + deliveryID
}
